package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/utils/logging"
)

// Policy holds the exponential backoff parameters and the transient
// error markers the classifier falls back to for untagged errors.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	JitterRatio float64
	Transient   []string
}

// DefaultPolicy returns the standard backoff policy
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2.0,
		JitterRatio: 0.2,
		Transient:   DefaultTransientMarkers(),
	}
}

// DefaultTransientMarkers returns the baseline transient set:
// throttling, timeouts, and 5xx-class provider failures.
func DefaultTransientMarkers() []string {
	return []string{
		"429",
		"rate limit",
		"rate_limit",
		"too many requests",
		"overloaded",
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"unavailable",
		"internal server error",
		"500",
		"502",
		"503",
		"504",
	}
}

// Validate checks policy parameters
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return goerr.New("max attempts must be at least 1", goerr.V("max_attempts", p.MaxAttempts))
	}
	if p.BaseDelay <= 0 {
		return goerr.New("base delay must be positive", goerr.V("base_delay", p.BaseDelay))
	}
	if p.Factor < 1 {
		return goerr.New("backoff factor must be at least 1", goerr.V("factor", p.Factor))
	}
	if p.JitterRatio < 0 || p.JitterRatio >= 1 {
		return goerr.New("jitter ratio must be in [0, 1)", goerr.V("jitter_ratio", p.JitterRatio))
	}
	return nil
}

// Delay returns the pre-jitter backoff duration for a 1-based attempt
// number. Delays grow geometrically and cap at MaxDelay, so the
// sequence is non-decreasing.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Strategy retries retryable completion failures with exponential
// backoff. Terminal failures return immediately.
type Strategy struct {
	policy Policy
	rand   *rand.Rand
}

// Option is a functional option for Strategy
type Option func(*Strategy)

// WithPolicy overrides the default backoff policy
func WithPolicy(policy Policy) Option {
	return func(s *Strategy) {
		s.policy = policy
	}
}

// New creates a new retry strategy
func New(opts ...Option) (*Strategy, error) {
	s := &Strategy{
		policy: DefaultPolicy(),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.policy.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Policy returns the active backoff policy
func (s *Strategy) Policy() Policy {
	return s.policy
}

// IsRetryable reports whether an error is worth another attempt. Tags
// are the fast path; untagged errors are classified by an attached
// HTTP status when present, then by the policy's transient marker set
// against the error text.
func (p Policy) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if goerr.HasTag(err, apperr.ErrTagTerminal) {
		return false
	}
	if goerr.HasTag(err, apperr.ErrTagRetryable) {
		return true
	}

	// A carried status code is decisive: throttling and server errors
	// resolve by retrying, everything else does not. 501 is the one
	// server error that never does.
	if code, ok := apperr.StatusCodeFromError(err); ok {
		if code == http.StatusTooManyRequests {
			return true
		}
		return code >= 500 && code != http.StatusNotImplemented
	}

	return p.matchesTransient(err.Error())
}

// matchesTransient scans the error text for configured transient markers
func (p Policy) matchesTransient(msg string) bool {
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "501") || strings.Contains(lowered, "not implemented") {
		return false
	}

	for _, marker := range p.Transient {
		if strings.Contains(lowered, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// IsRetryable classifies an error with the default policy
func IsRetryable(err error) bool {
	return DefaultPolicy().IsRetryable(err)
}

// Do runs fn until it succeeds, returns a terminal error, or attempts
// run out. The returned attempt count includes the final try.
func (s *Strategy) Do(ctx context.Context, fn func(ctx context.Context) (*completion.Result, error)) (*completion.Result, int, error) {
	logger := ctxlog.From(ctx)

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if !s.policy.IsRetryable(err) {
			return nil, attempt, goerr.Wrap(err, "completion failed with terminal error",
				goerr.TV(apperr.AttemptKey, attempt),
			)
		}

		if attempt == s.policy.MaxAttempts {
			break
		}

		delay := s.jittered(s.policy.Delay(attempt))
		logger.Warn("completion attempt failed, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			logging.ErrAttr(err),
		)

		select {
		case <-ctx.Done():
			return nil, attempt, goerr.Wrap(ctx.Err(), "retry aborted by context",
				goerr.T(apperr.ErrTagTimeout),
				goerr.TV(apperr.AttemptKey, attempt),
			)
		case <-time.After(delay):
		}
	}

	return nil, s.policy.MaxAttempts, goerr.Wrap(lastErr, "retry attempts exhausted",
		goerr.TV(apperr.AttemptKey, s.policy.MaxAttempts),
	)
}

// jittered lengthens the delay by uniform(0, JitterRatio) so jittered
// delays never undercut the backoff curve.
func (s *Strategy) jittered(d time.Duration) time.Duration {
	if s.policy.JitterRatio == 0 {
		return d
	}

	return time.Duration(float64(d) * (1 + s.rand.Float64()*s.policy.JitterRatio))
}
