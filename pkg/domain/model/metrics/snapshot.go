package metrics

import (
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// Snapshot is one recorded call outcome. The monitor keeps an
// append-only log of these, capped by a sliding window.
type Snapshot struct {
	CallID             types.CallID   `json:"call_id"`
	Timestamp          time.Time      `json:"timestamp"`
	PromptID           types.PromptID `json:"prompt_id"`
	Success            bool           `json:"success"`
	Latency            time.Duration  `json:"latency"`
	TokenCount         int            `json:"token_count"`
	Cost               float64        `json:"cost"`
	FallbackUsed       bool           `json:"fallback_used"`
	FallbackTier       string         `json:"fallback_tier,omitempty"`
	HallucinationCount int            `json:"hallucination_count"`
	ValidationFailed   bool           `json:"validation_failed"`
	Reason             string         `json:"reason,omitempty"`
}
