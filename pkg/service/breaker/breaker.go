package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
)

// State is the circuit breaker state
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned when the circuit rejects a call without
// attempting it
var ErrOpen = goerr.New("circuit breaker is open",
	goerr.T(apperr.ErrTagCircuitOpen))

// StateChange describes one transition for subscribers
type StateChange struct {
	From State
	To   State
	At   time.Time
}

// Subscriber receives state transitions. Callbacks run synchronously
// under the breaker lock and must not call back into the breaker.
type Subscriber func(change StateChange)

// Breaker trips after a run of consecutive failures and probes the
// downstream again after a cooldown. One probe is admitted in the
// half-open state; its outcome decides between closing and re-opening.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	halfOpenSuccess  int
	probeInFlight    bool
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
	subscribers      []Subscriber
}

// Option is a functional option for Breaker
type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failure count that trips the circuit
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		b.failureThreshold = n
	}
}

// WithSuccessThreshold sets the consecutive probe successes required to close
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		b.successThreshold = n
	}
}

// WithCooldown sets how long the circuit stays open before probing
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		b.cooldown = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithSubscriber registers a state change callback
func WithSubscriber(s Subscriber) Option {
	return func(b *Breaker) {
		b.subscribers = append(b.subscribers, s)
	}
}

// New creates a new circuit breaker in the closed state
func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         60 * time.Second,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// State returns the current state, promoting open to half-open when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeProbeLocked()
	return b.state
}

// Allow reports whether a call may proceed. In the half-open state only
// a single probe is admitted until its outcome is reported.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeProbeLocked()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RetryAfter returns the remaining cooldown while the circuit is open,
// zero otherwise.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return 0
	}

	remaining := b.cooldown - b.now().Sub(b.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Execute wraps fn with circuit admission and outcome reporting
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return goerr.Wrap(ErrOpen, "service unavailable, retry later",
			goerr.TV(apperr.RetryAfterKey, b.RetryAfter().String()),
			goerr.TV(apperr.ReasonKey, "circuit open"),
		)
	}

	err := fn(ctx)
	if err != nil {
		b.RecordFailure(ctx)
		return err
	}

	b.RecordSuccess(ctx)
	return nil
}

// RecordSuccess reports a successful call
func (b *Breaker) RecordSuccess(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.probeInFlight = false
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.successThreshold {
			b.transitionLocked(ctx, StateClosed)
		}
	}
}

// RecordFailure reports a failed call
func (b *Breaker) RecordFailure(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.transitionLocked(ctx, StateOpen)
		}
	case StateHalfOpen:
		// A failed probe restarts the cooldown
		b.probeInFlight = false
		b.transitionLocked(ctx, StateOpen)
	}
}

// maybeProbeLocked promotes open to half-open once the cooldown elapsed
func (b *Breaker) maybeProbeLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.transitionLocked(context.Background(), StateHalfOpen)
	}
}

func (b *Breaker) transitionLocked(ctx context.Context, to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.halfOpenSuccess = 0
	case StateHalfOpen:
		b.halfOpenSuccess = 0
		b.probeInFlight = false
	case StateClosed:
		b.failures = 0
		b.halfOpenSuccess = 0
		b.probeInFlight = false
	}

	change := StateChange{From: from, To: to, At: b.now()}
	ctxlog.From(ctx).Info("circuit breaker state changed",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	for _, s := range b.subscribers {
		s(change)
	}
}
