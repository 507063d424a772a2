package monitor_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/service/monitor"
	"github.com/m-mizutani/komainu/pkg/utils/async"
)

func snapshot(promptID types.PromptID, success bool, latency time.Duration) *metrics.Snapshot {
	return &metrics.Snapshot{
		CallID:    types.NewCallID(context.Background()),
		Timestamp: time.Now(),
		PromptID:  promptID,
		Success:   success,
		Latency:   latency,
		Cost:      0.01,
	}
}

func TestSlidingWindowCap(t *testing.T) {
	ctx := context.Background()
	m := monitor.New(monitor.WithCapacity(10))

	for i := 0; i < 25; i++ {
		m.Record(ctx, snapshot("gen-summary", true, time.Second))
	}

	gt.Equal(t, m.Len(), 10)
	gt.Equal(t, m.GetMetrics("").TotalCalls, 10)
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	m := monitor.New()

	m.Record(ctx, snapshot("gen-summary", true, 100*time.Millisecond))
	m.Record(ctx, snapshot("gen-summary", true, 200*time.Millisecond))
	m.Record(ctx, snapshot("gen-summary", false, 300*time.Millisecond))
	m.Record(ctx, &metrics.Snapshot{
		PromptID:           "gen-summary",
		Success:            true,
		Latency:            400 * time.Millisecond,
		HallucinationCount: 2,
		FallbackUsed:       true,
		FallbackTier:       "cache",
		TokenCount:         100,
		Cost:               0.02,
	})

	agg := m.GetMetrics("gen-summary")
	gt.Equal(t, agg.TotalCalls, 4)
	gt.Equal(t, agg.SuccessRate, 0.75)
	gt.Equal(t, agg.ValidationFailureRate, 0.0)
	gt.Equal(t, agg.FallbackRate, 0.25)
	gt.Equal(t, agg.HallucinationsPer1000, 500.0)
	gt.Equal(t, agg.MaxLatency, 400*time.Millisecond)
	gt.Equal(t, agg.AvgLatency, 250*time.Millisecond)
	gt.Equal(t, agg.TotalTokens, 100)
}

func TestPromptFilter(t *testing.T) {
	ctx := context.Background()
	m := monitor.New()

	m.Record(ctx, snapshot("gen-summary", true, time.Second))
	m.Record(ctx, snapshot("gen-triage", false, time.Second))

	gt.Equal(t, m.GetMetrics("gen-summary").TotalCalls, 1)
	gt.Equal(t, m.GetMetrics("gen-summary").SuccessRate, 1.0)
	gt.Equal(t, m.GetMetrics("").TotalCalls, 2)
}

func TestTrendClassification(t *testing.T) {
	ctx := context.Background()
	m := monitor.New()

	// Prior window: all successes, low latency
	for i := 0; i < 100; i++ {
		m.Record(ctx, snapshot("gen-summary", true, 100*time.Millisecond))
	}
	// Recent window: half failures, triple latency
	for i := 0; i < 100; i++ {
		m.Record(ctx, snapshot("gen-summary", i%2 == 0, 300*time.Millisecond))
	}

	agg := m.GetMetrics("")
	gt.Equal(t, agg.SuccessTrend, metrics.TrendDegrading)
	gt.Equal(t, agg.LatencyTrend, metrics.TrendDegrading)
}

func TestTrendStableWithinBand(t *testing.T) {
	ctx := context.Background()
	m := monitor.New()

	for i := 0; i < 100; i++ {
		m.Record(ctx, snapshot("gen-summary", true, 100*time.Millisecond))
	}
	// 3% latency change stays inside the 5% band
	for i := 0; i < 100; i++ {
		m.Record(ctx, snapshot("gen-summary", true, 103*time.Millisecond))
	}

	agg := m.GetMetrics("")
	gt.Equal(t, agg.SuccessTrend, metrics.TrendStable)
	gt.Equal(t, agg.LatencyTrend, metrics.TrendStable)
	gt.Equal(t, agg.CostTrend, metrics.TrendStable)
}

func TestTrendImproving(t *testing.T) {
	ctx := context.Background()
	m := monitor.New()

	for i := 0; i < 100; i++ {
		m.Record(ctx, snapshot("gen-summary", i%2 == 0, 300*time.Millisecond))
	}
	for i := 0; i < 100; i++ {
		m.Record(ctx, snapshot("gen-summary", true, 100*time.Millisecond))
	}

	agg := m.GetMetrics("")
	gt.Equal(t, agg.SuccessTrend, metrics.TrendImproving)
	gt.Equal(t, agg.LatencyTrend, metrics.TrendImproving)
}

func TestHealthAlerts(t *testing.T) {
	ctx := context.Background()
	m := monitor.New(monitor.WithThresholds(metrics.Thresholds{
		MinSuccessRate:        0.9,
		MaxHallucinationsRate: 50,
		MaxAvgLatency:         time.Second,
	}))

	gt.True(t, m.CheckHealth().Healthy)

	for i := 0; i < 10; i++ {
		m.Record(ctx, snapshot("gen-summary", i != 0, 100*time.Millisecond))
	}

	// 90% success is at the floor, not below it
	gt.True(t, m.CheckHealth().Healthy)

	m.Record(ctx, snapshot("gen-summary", false, 100*time.Millisecond))
	health := m.CheckHealth()
	gt.False(t, health.Healthy)
	gt.Equal(t, len(health.Issues), 1)
}

func TestLatencyAlert(t *testing.T) {
	ctx := context.Background()
	m := monitor.New(monitor.WithThresholds(metrics.Thresholds{
		MinSuccessRate:        0.5,
		MaxHallucinationsRate: 1000,
		MaxAvgLatency:         time.Second,
	}))

	m.Record(ctx, snapshot("gen-summary", true, 5*time.Second))

	health := m.CheckHealth()
	gt.False(t, health.Healthy)
}

type captureNotifier struct {
	healths []*metrics.Health
}

func (n *captureNotifier) NotifyHealth(ctx context.Context, health *metrics.Health) error {
	n.healths = append(n.healths, health)
	return nil
}

func TestNotifierFiresOnceOnTransition(t *testing.T) {
	ctx := async.WithSyncMode(context.Background())

	notifier := &captureNotifier{}
	m := monitor.New(
		monitor.WithNotifier(notifier),
		monitor.WithThresholds(metrics.Thresholds{
			MinSuccessRate:        0.9,
			MaxHallucinationsRate: 1000,
			MaxAvgLatency:         time.Hour,
		}),
	)

	m.Record(ctx, snapshot("gen-summary", false, time.Second))
	m.Record(ctx, snapshot("gen-summary", false, time.Second))
	m.Record(ctx, snapshot("gen-summary", false, time.Second))

	// Still unhealthy, but only the transition notifies
	gt.Equal(t, len(notifier.healths), 1)
	gt.False(t, notifier.healths[0].Healthy)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := monitor.New()

	src.Record(ctx, snapshot("gen-summary", true, 100*time.Millisecond))
	src.Record(ctx, snapshot("gen-summary", false, 200*time.Millisecond))

	export := src.Export()
	gt.Equal(t, len(export.Snapshots), 2)
	gt.Equal(t, export.Metrics.TotalCalls, 2)

	dst := monitor.New()
	dst.Import(export)

	gt.Equal(t, dst.Len(), 2)
	gt.Equal(t, dst.GetMetrics("").SuccessRate, 0.5)
}

func TestFormatReport(t *testing.T) {
	ctx := context.Background()
	m := monitor.New()

	m.Record(ctx, snapshot("gen-summary", true, 100*time.Millisecond))

	report := m.FormatReport("")
	gt.True(t, strings.Contains(report, "total calls"))
	gt.True(t, strings.Contains(report, "success rate"))
	gt.True(t, strings.Contains(report, "health"))
}
