package interfaces

import (
	"context"

	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
)

// CompletionClient invokes the external generative completion service.
// Transient failures (network, timeout, rate limit, 5xx) carry a
// retryable error tag; terminal failures (authentication, malformed
// request) do not.
type CompletionClient interface {
	Generate(ctx context.Context, req *completion.Request) (*completion.Result, error)
}

// TemplateGenerator produces a structurally valid but generic result
// from a static per-prompt template, or from the version's output
// schema when no template is registered. Bypasses the completion
// service entirely. Pure and synchronous.
type TemplateGenerator interface {
	Generate(ctx context.Context, version *prompt.Version, input map[string]string) (*completion.Result, error)
}

// AlertNotifier delivers monitor health alerts to an external channel
type AlertNotifier interface {
	NotifyHealth(ctx context.Context, health *metrics.Health) error
}
