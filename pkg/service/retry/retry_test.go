package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/service/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Factor:      2.0,
		JitterRatio: 0,
	}
}

func TestDelaySequenceMonotonic(t *testing.T) {
	policy := retry.DefaultPolicy()

	// Pre-jitter delays never decrease and never exceed the cap
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := policy.Delay(attempt)
		gt.True(t, d >= prev)
		gt.True(t, d <= policy.MaxDelay)
		prev = d
	}

	gt.Equal(t, policy.Delay(1), time.Second)
	gt.Equal(t, policy.Delay(2), 2*time.Second)
	gt.Equal(t, policy.Delay(3), 4*time.Second)
	gt.Equal(t, policy.Delay(10), 30*time.Second)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	ctx := context.Background()
	strategy, err := retry.New(retry.WithPolicy(fastPolicy(3)))
	gt.NoError(t, err)

	calls := 0
	result, attempts, err := strategy.Do(ctx, func(ctx context.Context) (*completion.Result, error) {
		calls++
		if calls < 3 {
			return nil, goerr.New("service unavailable", goerr.T(apperr.ErrTagRetryable))
		}
		return &completion.Result{Text: "ok"}, nil
	})

	gt.NoError(t, err)
	gt.Equal(t, attempts, 3)
	gt.Equal(t, result.Text, "ok")
}

func TestRetryStopsOnTerminalError(t *testing.T) {
	ctx := context.Background()
	strategy, err := retry.New(retry.WithPolicy(fastPolicy(5)))
	gt.NoError(t, err)

	calls := 0
	_, attempts, err := strategy.Do(ctx, func(ctx context.Context) (*completion.Result, error) {
		calls++
		return nil, goerr.New("invalid request", goerr.T(apperr.ErrTagTerminal))
	})

	gt.Error(t, err)
	gt.Equal(t, calls, 1)
	gt.Equal(t, attempts, 1)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	strategy, err := retry.New(retry.WithPolicy(fastPolicy(3)))
	gt.NoError(t, err)

	calls := 0
	_, attempts, err := strategy.Do(ctx, func(ctx context.Context) (*completion.Result, error) {
		calls++
		return nil, goerr.New("rate limited", goerr.T(apperr.ErrTagRetryable), goerr.T(apperr.ErrTagRateLimit))
	})

	gt.Error(t, err)
	gt.Equal(t, calls, 3)
	gt.Equal(t, attempts, 3)
	gt.True(t, goerr.HasTag(err, apperr.ErrTagRateLimit))
}

func TestRetryAbortsOnContextCancel(t *testing.T) {
	strategy, err := retry.New(retry.WithPolicy(retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
		Factor:      2.0,
		JitterRatio: 0,
	}))
	gt.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err = strategy.Do(ctx, func(ctx context.Context) (*completion.Result, error) {
		return nil, goerr.New("transient", goerr.T(apperr.ErrTagRetryable))
	})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, apperr.ErrTagTimeout))
}

func TestIsRetryable(t *testing.T) {
	gt.False(t, retry.IsRetryable(nil))
	gt.False(t, retry.IsRetryable(goerr.New("plain failure")))
	gt.True(t, retry.IsRetryable(goerr.New("transient", goerr.T(apperr.ErrTagRetryable))))

	// A terminal tag overrides a retryable one
	mixed := goerr.New("conflicted", goerr.T(apperr.ErrTagRetryable), goerr.T(apperr.ErrTagTerminal))
	gt.False(t, retry.IsRetryable(mixed))
}

func TestClassifierMatchesTransientMessages(t *testing.T) {
	policy := retry.DefaultPolicy()

	// Untagged errors fall back to the transient marker set
	gt.True(t, policy.IsRetryable(errors.New("503 service unavailable")))
	gt.True(t, policy.IsRetryable(errors.New("connection reset by peer")))
	gt.True(t, policy.IsRetryable(errors.New("Too Many Requests")))
	gt.False(t, policy.IsRetryable(errors.New("invalid api key")))
	gt.False(t, policy.IsRetryable(errors.New("501 not implemented")))

	// An empty transient set restores tag-only classification
	bare := policy
	bare.Transient = nil
	gt.False(t, bare.IsRetryable(errors.New("503 service unavailable")))
	gt.True(t, bare.IsRetryable(goerr.New("down", goerr.T(apperr.ErrTagRetryable))))
}

func TestClassifierHonorsCarriedStatusCode(t *testing.T) {
	policy := retry.DefaultPolicy()

	gt.True(t, policy.IsRetryable(goerr.New("throttled", goerr.TV(apperr.StatusCodeKey, 429))))
	gt.True(t, policy.IsRetryable(goerr.New("upstream broke", goerr.TV(apperr.StatusCodeKey, 503))))
	gt.False(t, policy.IsRetryable(goerr.New("unsupported", goerr.TV(apperr.StatusCodeKey, 501))))
	gt.False(t, policy.IsRetryable(goerr.New("bad request", goerr.TV(apperr.StatusCodeKey, 400))))
}

func TestRetriesUntaggedTransientFailure(t *testing.T) {
	ctx := context.Background()
	policy := fastPolicy(3)
	policy.Transient = retry.DefaultTransientMarkers()

	strategy, err := retry.New(retry.WithPolicy(policy))
	gt.NoError(t, err)

	calls := 0
	result, attempts, err := strategy.Do(ctx, func(ctx context.Context) (*completion.Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("502 bad gateway")
		}
		return &completion.Result{Text: "ok"}, nil
	})

	gt.NoError(t, err)
	gt.Equal(t, attempts, 3)
	gt.Equal(t, result.Text, "ok")
}

func TestPolicyValidation(t *testing.T) {
	_, err := retry.New(retry.WithPolicy(retry.Policy{MaxAttempts: 0, BaseDelay: time.Second, Factor: 2}))
	gt.Error(t, err)

	_, err = retry.New(retry.WithPolicy(retry.Policy{MaxAttempts: 1, BaseDelay: 0, Factor: 2}))
	gt.Error(t, err)

	_, err = retry.New(retry.WithPolicy(retry.Policy{MaxAttempts: 1, BaseDelay: time.Second, Factor: 0.5}))
	gt.Error(t, err)
}
