package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/validation"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// CallRequest is one invocation of the call-safety pipeline
type CallRequest struct {
	PromptID types.PromptID    `json:"prompt_id"`
	Version  string            `json:"version,omitempty"`
	Input    map[string]string `json:"input"`
}

// CallResponse is the validated (or degraded) outcome of a safe call
type CallResponse struct {
	CallID       types.CallID       `json:"call_id"`
	Result       *completion.Result `json:"result"`
	Validation   *validation.Result `json:"validation,omitempty"`
	FallbackUsed bool               `json:"fallback_used"`
	FallbackTier string             `json:"fallback_tier,omitempty"`
}

// CallUseCases is the orchestrator surface: resolve, execute with
// retry/breaker, validate, degrade through the fallback chain, record
// to the monitor.
type CallUseCases interface {
	CallWithSafety(ctx context.Context, req *CallRequest) (*CallResponse, error)
}

// RegistryUseCases manages prompt versions with validation on top of
// the repository.
type RegistryUseCases interface {
	RegisterPrompt(ctx context.Context, version *prompt.Version) error
	GetPrompt(ctx context.Context, id types.PromptID, version string) (*prompt.Version, error)
	ListPromptVersions(ctx context.Context, id types.PromptID) ([]*prompt.Version, error)
	DeprecatePrompt(ctx context.Context, id types.PromptID, version string, sunset time.Time) error
	RetirePrompt(ctx context.Context, id types.PromptID, version string) error
	ListActivePrompts(ctx context.Context) ([]types.PromptID, error)
	ExportPrompts(ctx context.Context) (*prompt.StoreDocument, error)
	ImportPrompts(ctx context.Context, doc *prompt.StoreDocument) error
}

// MetricsUseCases exposes the monitor for dashboards and health checks
type MetricsUseCases interface {
	GetMetrics(ctx context.Context, promptID types.PromptID) (*metrics.Metrics, error)
	ExportMetrics(ctx context.Context) (*metrics.Export, error)
	CheckHealth(ctx context.Context) *metrics.Health
	FormatReport(ctx context.Context, promptID types.PromptID) string
}
