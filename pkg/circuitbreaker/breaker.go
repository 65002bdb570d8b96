// Package circuitbreaker stops calling a failing upstream for a cool-down
// period and then lets a bounded number of probe calls through before
// closing again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen is returned without calling the upstream while the breaker is
// open or all half-open probe slots are taken.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold is the number of consecutive failures that trips a
	// closed breaker. Default 5.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open. Default 30s.
	Cooldown time.Duration
	// Probes is both the number of concurrent half-open calls and the number
	// of successful ones needed to close. Default 1.
	Probes uint32
	// IsFailure reports whether an error counts against the breaker. Nil
	// counts every error except caller cancellation.
	IsFailure     func(error) bool
	OnStateChange func(name string, from, to State)
	Now           func() time.Time
	Logger        *zap.Logger
}

type Breaker struct {
	name string
	cfg  Config

	mu        sync.Mutex
	state     State
	epoch     uint64
	failures  uint32
	inFlight  uint32
	successes uint32
	openedAt  time.Time
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes == 0 {
		cfg.Probes = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Breaker{name: name, cfg: cfg}
}

// Execute runs fn unless the breaker rejects the call. The outcome of fn
// is only counted if the breaker has not changed state in the meantime.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	epoch, err := b.acquire()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.release(epoch, true)
			panic(r)
		}
	}()

	err = fn()
	b.release(epoch, err != nil && b.cfg.IsFailure(err))
	return err
}

// Do is Execute for calls that produce a value.
func Do[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(b.cfg.Now())
	return b.state
}

func (b *Breaker) acquire() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh(b.cfg.Now())
	switch b.state {
	case StateOpen:
		return 0, ErrOpen
	case StateHalfOpen:
		if b.inFlight >= b.cfg.Probes {
			return 0, ErrOpen
		}
		b.inFlight++
	}
	return b.epoch, nil
}

func (b *Breaker) release(epoch uint64, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if epoch != b.epoch {
		return
	}

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.inFlight--
		if failed {
			b.transition(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.cfg.Probes {
			b.transition(StateClosed)
		}
	}
}

// refresh moves an open breaker to half-open once the cool-down is over.
func (b *Breaker) refresh(now time.Time) {
	if b.state == StateOpen && !now.Before(b.openedAt.Add(b.cfg.Cooldown)) {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	failures := b.failures

	b.state = to
	b.epoch++
	b.failures, b.inFlight, b.successes = 0, 0, 0
	if to == StateOpen {
		b.openedAt = b.cfg.Now()
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
	b.cfg.Logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Uint32("failures", failures),
	)
}
