package config

import (
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/service/breaker"
	"github.com/m-mizutani/komainu/pkg/service/retry"
	"github.com/urfave/cli/v3"
)

// Policy contains tuning for retry, circuit breaking, and alerting
type Policy struct {
	// Retry
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Circuit breaker
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration

	// Alert thresholds
	MinSuccessRate        float64
	MaxHallucinationsRate float64
	MaxAvgLatency         time.Duration
}

// Flags returns CLI flags for pipeline policy configuration
func (p *Policy) Flags() []cli.Flag {
	defaults := retry.DefaultPolicy()
	thresholds := metrics.DefaultThresholds()

	return []cli.Flag{
		&cli.IntFlag{
			Name:        "retry-max-attempts",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_RETRY_MAX_ATTEMPTS"),
			Usage:       "Maximum completion attempts per call",
			Value:       defaults.MaxAttempts,
			Destination: &p.MaxAttempts,
		},
		&cli.DurationFlag{
			Name:        "retry-base-delay",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_RETRY_BASE_DELAY"),
			Usage:       "Initial retry backoff delay",
			Value:       defaults.BaseDelay,
			Destination: &p.BaseDelay,
		},
		&cli.DurationFlag{
			Name:        "retry-max-delay",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_RETRY_MAX_DELAY"),
			Usage:       "Backoff delay ceiling",
			Value:       defaults.MaxDelay,
			Destination: &p.MaxDelay,
		},
		&cli.IntFlag{
			Name:        "breaker-failure-threshold",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_BREAKER_FAILURE_THRESHOLD"),
			Usage:       "Consecutive failures before the circuit opens",
			Value:       5,
			Destination: &p.FailureThreshold,
		},
		&cli.IntFlag{
			Name:        "breaker-success-threshold",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_BREAKER_SUCCESS_THRESHOLD"),
			Usage:       "Probe successes required to close the circuit",
			Value:       1,
			Destination: &p.SuccessThreshold,
		},
		&cli.DurationFlag{
			Name:        "breaker-cooldown",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_BREAKER_COOLDOWN"),
			Usage:       "Wait before probing an open circuit",
			Value:       60 * time.Second,
			Destination: &p.Cooldown,
		},
		&cli.FloatFlag{
			Name:        "alert-min-success-rate",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_ALERT_MIN_SUCCESS_RATE"),
			Usage:       "Success rate below which the pipeline is unhealthy",
			Value:       thresholds.MinSuccessRate,
			Destination: &p.MinSuccessRate,
		},
		&cli.FloatFlag{
			Name:        "alert-max-hallucinations",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_ALERT_MAX_HALLUCINATIONS"),
			Usage:       "Hallucinations per 1000 calls above which the pipeline is unhealthy",
			Value:       thresholds.MaxHallucinationsRate,
			Destination: &p.MaxHallucinationsRate,
		},
		&cli.DurationFlag{
			Name:        "alert-max-avg-latency",
			Category:    "policy",
			Sources:     cli.EnvVars("KOMAINU_ALERT_MAX_AVG_LATENCY"),
			Usage:       "Average latency above which the pipeline is unhealthy",
			Value:       thresholds.MaxAvgLatency,
			Destination: &p.MaxAvgLatency,
		},
	}
}

// RetryStrategy builds the configured retry strategy
func (p *Policy) RetryStrategy() (*retry.Strategy, error) {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = p.MaxAttempts
	policy.BaseDelay = p.BaseDelay
	policy.MaxDelay = p.MaxDelay

	return retry.New(retry.WithPolicy(policy))
}

// CircuitBreaker builds the configured circuit breaker
func (p *Policy) CircuitBreaker(opts ...breaker.Option) *breaker.Breaker {
	base := []breaker.Option{
		breaker.WithFailureThreshold(p.FailureThreshold),
		breaker.WithSuccessThreshold(p.SuccessThreshold),
		breaker.WithCooldown(p.Cooldown),
	}
	return breaker.New(append(base, opts...)...)
}

// Thresholds returns the configured alert thresholds
func (p *Policy) Thresholds() metrics.Thresholds {
	return metrics.Thresholds{
		MinSuccessRate:        p.MinSuccessRate,
		MaxHallucinationsRate: p.MaxHallucinationsRate,
		MaxAvgLatency:         p.MaxAvgLatency,
	}
}
