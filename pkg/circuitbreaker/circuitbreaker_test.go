package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(c *clock, opts ...Option) *CircuitBreaker {
	opts = append([]Option{func(cfg *Config) { cfg.now = c.now }}, opts...)
	return New("test", opts...)
}

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(c, WithFailureThreshold(3), WithOnStateChange(func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	cb := newTestBreaker(c, WithFailureThreshold(1), WithSuccessThreshold(2), WithMaxHalfOpenRequests(2), WithTimeout(time.Second))
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	require.Equal(t, StateOpen, cb.State())

	c.advance(time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	cb := newTestBreaker(c, WithFailureThreshold(1), WithTimeout(time.Second))
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	c.advance(time.Second)
	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	// The open period restarts from the failed probe.
	c.advance(500 * time.Millisecond)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestBreaker_ProbeBudget(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	cb := newTestBreaker(c, WithFailureThreshold(1), WithTimeout(time.Second))
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	c.advance(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		// A second caller during the probe is turned away.
		assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	benign := errors.New("miss")
	cb := newTestBreaker(c, WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, benign)
	}))

	assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return benign }), benign)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)

	cb.Reset()
	assert.Zero(t, cb.Counts().Requests)
	assert.Equal(t, "test", cb.Name())
}
