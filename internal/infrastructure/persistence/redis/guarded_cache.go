package redis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/pkg/circuitbreaker"
)

// GuardedSummaryCache puts a circuit breaker in front of a summary cache.
// Misses do not count as failures.
//
// An invalidation that fails or is rejected marks the cache dirty. While
// dirty, Get retries the invalidation and reports a miss, so a summary
// written before the change is never served once Redis is back.
type GuardedSummaryCache struct {
	inner transcript.SummaryCache
	cb    *circuitbreaker.CircuitBreaker
	dirty atomic.Bool
}

// NewGuardedSummaryCache wraps inner with cb.
func NewGuardedSummaryCache(inner transcript.SummaryCache, cb *circuitbreaker.CircuitBreaker) *GuardedSummaryCache {
	return &GuardedSummaryCache{inner: inner, cb: cb}
}

// NewCacheBreaker returns a breaker tuned for the summary cache.
func NewCacheBreaker(onStateChange func(name string, from, to circuitbreaker.State)) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New("summary_cache",
		circuitbreaker.WithFailureThreshold(3),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(30*time.Second),
		circuitbreaker.WithIsFailure(func(err error) bool { return !IsMiss(err) }),
		circuitbreaker.WithOnStateChange(onStateChange),
	)
}

// Get returns the cached summary, ErrCacheMiss, or a breaker rejection.
func (g *GuardedSummaryCache) Get(ctx context.Context) (*transcript.Summary, error) {
	if g.dirty.Load() {
		if err := g.Invalidate(ctx); err != nil {
			return nil, err
		}
		return nil, ErrCacheMiss
	}

	var s *transcript.Summary
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		s, err = g.inner.Get(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Set stores the summary.
func (g *GuardedSummaryCache) Set(ctx context.Context, s transcript.Summary) error {
	return g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, s)
	})
}

// Invalidate drops the cached summary.
func (g *GuardedSummaryCache) Invalidate(ctx context.Context) error {
	err := g.cb.Execute(ctx, g.inner.Invalidate)
	g.dirty.Store(err != nil)
	return err
}
