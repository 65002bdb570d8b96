package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clock *fakeClock, transitions *[]string) *Breaker {
	return New("llm", Config{
		FailureThreshold: 2,
		Cooldown:         10 * time.Second,
		Probes:           1,
		Now:              clock.now,
		OnStateChange: func(_ string, from, to State) {
			if transitions != nil {
				*transitions = append(*transitions, from.String()+">"+to.String())
			}
		},
	})
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock, nil)
	boom := errors.New("upstream 503")
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return boom }), boom)
	assert.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.ErrorIs(t, cb.Execute(ctx, func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.State(), "a success resets the streak")

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()
	boom := errors.New("timeout")

	_ = cb.Execute(ctx, func() error { return boom })
	_ = cb.Execute(ctx, func() error { return boom })

	clock.advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State(), "a failed probe reopens")

	clock.advance(10 * time.Second)
	assert.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{
		"closed>open", "open>half-open", "half-open>open", "open>half-open", "half-open>closed",
	}, transitions)
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := newTestBreaker(clock, nil)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("a") })
	_ = cb.Execute(ctx, func() error { return errors.New("b") })
	clock.advance(time.Minute)

	err := cb.Execute(ctx, func() error {
		return cb.Execute(ctx, func() error { return nil })
	})
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := newTestBreaker(clock, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func() error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.State())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	called := false
	assert.ErrorIs(t, cb.Execute(cancelled, func() error { called = true; return nil }), context.Canceled)
	assert.False(t, called)
}

func TestDo(t *testing.T) {
	cb := New("llm", Config{})
	got, err := Do(context.Background(), cb, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	_, err = Do(context.Background(), cb, func() (int, error) { return 0, errors.New("nope") })
	assert.EqualError(t, err, "nope")
}
