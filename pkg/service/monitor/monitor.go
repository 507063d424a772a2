package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/utils/async"
)

const (
	defaultCapacity = 1000
	trendWindow     = 100
	trendBand       = 0.05
)

// Monitor keeps the rolling snapshot log and derives aggregate metrics,
// trends, and health alerts from it. Unhealthy transitions are pushed
// to the notifier asynchronously.
type Monitor struct {
	mu         sync.RWMutex
	snapshots  []*metrics.Snapshot
	capacity   int
	thresholds metrics.Thresholds
	notifier   interfaces.AlertNotifier
	unhealthy  bool
}

// Option is a functional option for Monitor
type Option func(*Monitor)

// WithCapacity overrides the sliding window size
func WithCapacity(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithThresholds overrides the alert thresholds
func WithThresholds(t metrics.Thresholds) Option {
	return func(m *Monitor) {
		m.thresholds = t
	}
}

// WithNotifier registers an alert delivery channel
func WithNotifier(n interfaces.AlertNotifier) Option {
	return func(m *Monitor) {
		m.notifier = n
	}
}

// New creates a new monitor
func New(opts ...Option) *Monitor {
	m := &Monitor{
		capacity:   defaultCapacity,
		thresholds: metrics.DefaultThresholds(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Record appends a snapshot, evicting the oldest entry past capacity.
// When the health state flips to unhealthy, the notifier fires once
// until health recovers.
func (m *Monitor) Record(ctx context.Context, snapshot *metrics.Snapshot) {
	if snapshot == nil {
		return
	}

	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.snapshots = append(m.snapshots, snapshot)
	if len(m.snapshots) > m.capacity {
		m.snapshots = m.snapshots[len(m.snapshots)-m.capacity:]
	}

	health := m.healthLocked()
	becameUnhealthy := !health.Healthy && !m.unhealthy
	m.unhealthy = !health.Healthy
	m.mu.Unlock()

	if becameUnhealthy && m.notifier != nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return m.notifier.NotifyHealth(ctx, health)
		})
	}
}

// GetMetrics aggregates the snapshot log, optionally filtered to one
// prompt. An empty prompt ID aggregates everything.
func (m *Monitor) GetMetrics(promptID types.PromptID) *metrics.Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return aggregate(m.filteredLocked(promptID))
}

// CheckHealth reduces the current alerts to a boolean and issue list
func (m *Monitor) CheckHealth() *metrics.Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.healthLocked()
}

// Export bundles the raw snapshots with the aggregate
func (m *Monitor) Export() *metrics.Export {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshots := make([]*metrics.Snapshot, len(m.snapshots))
	for i, s := range m.snapshots {
		copied := *s
		snapshots[i] = &copied
	}

	return &metrics.Export{
		ExportedAt: time.Now().UTC(),
		Snapshots:  snapshots,
		Metrics:    aggregate(snapshots),
	}
}

// Import replaces the snapshot log with an exported one
func (m *Monitor) Import(export *metrics.Export) {
	if export == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = make([]*metrics.Snapshot, 0, len(export.Snapshots))
	for _, s := range export.Snapshots {
		copied := *s
		m.snapshots = append(m.snapshots, &copied)
	}
	if len(m.snapshots) > m.capacity {
		m.snapshots = m.snapshots[len(m.snapshots)-m.capacity:]
	}
}

// Len returns the current snapshot count
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

func (m *Monitor) filteredLocked(promptID types.PromptID) []*metrics.Snapshot {
	if promptID.IsEmpty() {
		return m.snapshots
	}

	var filtered []*metrics.Snapshot
	for _, s := range m.snapshots {
		if s.PromptID == promptID {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func (m *Monitor) healthLocked() *metrics.Health {
	agg := aggregate(m.snapshots)
	health := &metrics.Health{Healthy: true}

	if agg.TotalCalls == 0 {
		return health
	}

	if agg.SuccessRate < m.thresholds.MinSuccessRate {
		health.Healthy = false
		health.Issues = append(health.Issues, "success rate below threshold")
	}
	if agg.HallucinationsPer1000 > m.thresholds.MaxHallucinationsRate {
		health.Healthy = false
		health.Issues = append(health.Issues, "hallucination rate above threshold")
	}
	if agg.AvgLatency > m.thresholds.MaxAvgLatency {
		health.Healthy = false
		health.Issues = append(health.Issues, "mean latency above threshold")
	}
	if agg.CostTrend == metrics.TrendDegrading {
		health.Healthy = false
		health.Issues = append(health.Issues, "cost trend is degrading")
	}

	return health
}

// aggregate computes the rolling metrics over a snapshot list
func aggregate(snapshots []*metrics.Snapshot) *metrics.Metrics {
	agg := &metrics.Metrics{
		TotalCalls:   len(snapshots),
		SuccessTrend: metrics.TrendStable,
		LatencyTrend: metrics.TrendStable,
		CostTrend:    metrics.TrendStable,
	}

	if len(snapshots) == 0 {
		return agg
	}

	var (
		successes     int
		hallucination int
		valFailures   int
		fallbacks     int
		latencySum    time.Duration
		latencies     []time.Duration
	)

	for _, s := range snapshots {
		if s.Success {
			successes++
		}
		if s.ValidationFailed {
			valFailures++
		}
		if s.FallbackUsed {
			fallbacks++
		}
		hallucination += s.HallucinationCount
		latencySum += s.Latency
		latencies = append(latencies, s.Latency)
		agg.TotalCost += s.Cost
		agg.TotalTokens += s.TokenCount
		if s.Latency > agg.MaxLatency {
			agg.MaxLatency = s.Latency
		}
	}

	n := float64(len(snapshots))
	agg.SuccessRate = float64(successes) / n
	agg.HallucinationsPer1000 = float64(hallucination) / n * 1000
	agg.ValidationFailureRate = float64(valFailures) / n
	agg.FallbackRate = float64(fallbacks) / n
	agg.AvgLatency = time.Duration(float64(latencySum) / n)
	agg.AvgCost = agg.TotalCost / n

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	agg.P95Latency = percentile(latencies, 0.95)
	agg.P99Latency = percentile(latencies, 0.99)

	agg.SuccessTrend, agg.LatencyTrend, agg.CostTrend = trends(snapshots)

	return agg
}

// percentile picks from sorted latencies by nearest-rank
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	idx := int(float64(len(sorted))*p) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// trends compares the mean of the most recent window against the prior
// window. A relative change under the band is stable; otherwise the
// direction of the metric decides improving versus degrading.
func trends(snapshots []*metrics.Snapshot) (success, latency, cost metrics.Trend) {
	success, latency, cost = metrics.TrendStable, metrics.TrendStable, metrics.TrendStable

	if len(snapshots) < 2*trendWindow {
		return
	}

	recent := snapshots[len(snapshots)-trendWindow:]
	prior := snapshots[len(snapshots)-2*trendWindow : len(snapshots)-trendWindow]

	success = classify(meanSuccess(recent), meanSuccess(prior), true)
	latency = classify(meanLatency(recent), meanLatency(prior), false)
	cost = classify(meanCost(recent), meanCost(prior), false)
	return
}

// classify maps a relative change to a trend. higherIsBetter flips the
// direction for metrics like success rate.
func classify(recent, prior float64, higherIsBetter bool) metrics.Trend {
	if prior == 0 {
		if recent == 0 {
			return metrics.TrendStable
		}
		if higherIsBetter {
			return metrics.TrendImproving
		}
		return metrics.TrendDegrading
	}

	change := (recent - prior) / prior
	if change < 0 {
		change = -change
	}
	if change < trendBand {
		return metrics.TrendStable
	}

	if recent > prior == higherIsBetter {
		return metrics.TrendImproving
	}
	return metrics.TrendDegrading
}

func meanSuccess(snapshots []*metrics.Snapshot) float64 {
	n := 0
	for _, s := range snapshots {
		if s.Success {
			n++
		}
	}
	return float64(n) / float64(len(snapshots))
}

func meanLatency(snapshots []*metrics.Snapshot) float64 {
	var sum time.Duration
	for _, s := range snapshots {
		sum += s.Latency
	}
	return float64(sum) / float64(len(snapshots))
}

func meanCost(snapshots []*metrics.Snapshot) float64 {
	sum := 0.0
	for _, s := range snapshots {
		sum += s.Cost
	}
	return sum / float64(len(snapshots))
}
