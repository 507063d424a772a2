package monitor

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// FormatReport renders a human-readable summary of the current metrics
func (m *Monitor) FormatReport(promptID types.PromptID) string {
	agg := m.GetMetrics(promptID)
	health := m.CheckHealth()

	var sb strings.Builder

	scope := "all prompts"
	if !promptID.IsEmpty() {
		scope = string(promptID)
	}
	fmt.Fprintf(&sb, "Call Safety Report (%s)\n", scope)
	fmt.Fprintf(&sb, "  total calls:        %d\n", agg.TotalCalls)
	fmt.Fprintf(&sb, "  success rate:       %.1f%% (%s)\n", agg.SuccessRate*100, agg.SuccessTrend)
	fmt.Fprintf(&sb, "  validation failures: %.1f%%\n", agg.ValidationFailureRate*100)
	fmt.Fprintf(&sb, "  hallucinations:     %.1f per 1000 calls\n", agg.HallucinationsPer1000)
	fmt.Fprintf(&sb, "  fallback usage:     %.1f%%\n", agg.FallbackRate*100)
	fmt.Fprintf(&sb, "  latency:            avg %s / p95 %s / p99 %s / max %s (%s)\n",
		agg.AvgLatency, agg.P95Latency, agg.P99Latency, agg.MaxLatency, agg.LatencyTrend)
	fmt.Fprintf(&sb, "  cost:               avg $%.4f / total $%.4f (%s)\n",
		agg.AvgCost, agg.TotalCost, agg.CostTrend)
	fmt.Fprintf(&sb, "  tokens:             %d\n", agg.TotalTokens)

	if health.Healthy {
		sb.WriteString("  health:             OK\n")
	} else {
		sb.WriteString("  health:             DEGRADED\n")
		for _, issue := range health.Issues {
			fmt.Fprintf(&sb, "    - %s\n", issue)
		}
	}

	return sb.String()
}
