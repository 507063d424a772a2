package metrics

import "time"

// Trend classifies the direction of a metric between the most recent
// window and the one before it.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// Metrics is the rolling aggregate derived from the snapshot log
type Metrics struct {
	TotalCalls            int           `json:"total_calls"`
	SuccessRate           float64       `json:"success_rate"`
	HallucinationsPer1000 float64       `json:"hallucinations_per_1000"`
	ValidationFailureRate float64       `json:"validation_failure_rate"`
	FallbackRate          float64       `json:"fallback_rate"`
	AvgLatency            time.Duration `json:"avg_latency"`
	P95Latency            time.Duration `json:"p95_latency"`
	P99Latency            time.Duration `json:"p99_latency"`
	MaxLatency            time.Duration `json:"max_latency"`
	AvgCost               float64       `json:"avg_cost"`
	TotalCost             float64       `json:"total_cost"`
	TotalTokens           int           `json:"total_tokens"`

	SuccessTrend Trend `json:"success_trend"`
	LatencyTrend Trend `json:"latency_trend"`
	CostTrend    Trend `json:"cost_trend"`
}

// Thresholds configures when the monitor raises alerts
type Thresholds struct {
	MinSuccessRate        float64       `json:"min_success_rate"`
	MaxHallucinationsRate float64       `json:"max_hallucinations_per_1000"`
	MaxAvgLatency         time.Duration `json:"max_avg_latency"`
}

// DefaultThresholds returns the alert thresholds used when none are configured
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSuccessRate:        0.9,
		MaxHallucinationsRate: 50,
		MaxAvgLatency:         10 * time.Second,
	}
}

// Health is the reduced alert state: a boolean plus human-readable issues
type Health struct {
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues,omitempty"`
}

// Export bundles the raw snapshots with the aggregate for external dashboards
type Export struct {
	ExportedAt time.Time   `json:"exported_at"`
	Snapshots  []*Snapshot `json:"snapshots"`
	Metrics    *Metrics    `json:"metrics"`
}
