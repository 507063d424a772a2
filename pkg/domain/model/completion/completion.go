package completion

import (
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// Request carries one rendered instruction to the completion service
type Request struct {
	CallID   types.CallID      `json:"call_id"`
	PromptID types.PromptID    `json:"prompt_id"`
	Version  string            `json:"version"`
	Provider types.LLMProvider `json:"provider"`
	Sampling sampling.Config   `json:"sampling"`
	Rendered string            `json:"rendered"`
	// StructuredOutput requests a JSON object response when the prompt
	// declares an output schema
	StructuredOutput bool `json:"structured_output"`
}

// Result is one raw completion outcome before validation
type Result struct {
	Text       string            `json:"text"`
	Fields     map[string]any    `json:"fields,omitempty"`
	Provider   types.LLMProvider `json:"provider"`
	Model      string            `json:"model"`
	Latency    time.Duration     `json:"latency"`
	TokenCount int               `json:"token_count"`
	Cost       float64           `json:"cost"`
}

// charsPerToken is the rough estimation factor used for accounting.
// Exact counts would need provider tokenizers; the monitor only needs
// stable relative numbers.
const charsPerToken = 4

// EstimateTokens estimates the token count of a text
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// costPer1KTokens maps providers to a flat per-1000-token USD rate for
// cost estimation
var costPer1KTokens = map[types.LLMProvider]float64{
	types.LLMProviderOpenAI: 0.01,
	types.LLMProviderClaude: 0.015,
	types.LLMProviderGemini: 0.005,
}

// EstimateCost estimates the USD cost of a call from its token count
func EstimateCost(provider types.LLMProvider, tokens int) float64 {
	rate, ok := costPer1KTokens[provider]
	if !ok {
		rate = 0.01
	}
	return float64(tokens) / 1000 * rate
}
