package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

// SummaryCache stores the transcript read model under a single key.
type SummaryCache struct {
	cache *Cache
	key   string
	ttl   time.Duration
}

// NewSummaryCache creates a summary cache for the named workspace.
func NewSummaryCache(cache *Cache, name string, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = TTLSummaryCache
	}
	return &SummaryCache{cache: cache, key: SummaryKey(name), ttl: ttl}
}

// Get returns the cached summary or ErrCacheMiss.
func (c *SummaryCache) Get(ctx context.Context) (*transcript.Summary, error) {
	var s transcript.Summary
	if err := c.cache.Get(ctx, c.key, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Set stores the summary.
func (c *SummaryCache) Set(ctx context.Context, s transcript.Summary) error {
	return c.cache.Set(ctx, c.key, s, c.ttl)
}

// Invalidate drops the cached summary.
func (c *SummaryCache) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, c.key)
}

// IsMiss reports whether err means the summary is not cached.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
