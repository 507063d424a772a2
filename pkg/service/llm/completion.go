package llm

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
)

// CompletionClient adapts a gollem LLM client to the completion call
// path. Errors from the provider are classified into retryable and
// terminal before they reach the retry strategy.
type CompletionClient struct {
	factory   *Factory
	secondary bool
}

// CompletionOption is a functional option for CompletionClient
type CompletionOption func(*CompletionClient)

// WithSecondary routes all calls through the degraded-path model
// instead of the one the request names.
func WithSecondary() CompletionOption {
	return func(c *CompletionClient) {
		c.secondary = true
	}
}

// NewCompletionClient creates a new completion client backed by the factory
func NewCompletionClient(factory *Factory, opts ...CompletionOption) *CompletionClient {
	c := &CompletionClient{
		factory: factory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate invokes the completion service once
func (c *CompletionClient) Generate(ctx context.Context, req *completion.Request) (*completion.Result, error) {
	client, model, err := c.resolveClient(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Sampling.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Sampling.Timeout)
		defer cancel()
	}

	var sessionOpts []gollem.SessionOption
	if req.StructuredOutput {
		sessionOpts = append(sessionOpts, gollem.WithSessionContentType(gollem.ContentTypeJSON))
	}

	session, err := client.NewSession(ctx, sessionOpts...)
	if err != nil {
		return nil, classifyCallError(err, req)
	}

	start := time.Now()
	resp, err := session.GenerateContent(ctx, gollem.Text(req.Rendered))
	latency := time.Since(start)
	if err != nil {
		return nil, classifyCallError(err, req)
	}

	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.New("completion service returned empty response",
			goerr.T(apperr.ErrTagLLMError), goerr.T(apperr.ErrTagRetryable),
			goerr.TV(apperr.CallIDKey, req.CallID),
			goerr.TV(apperr.PromptIDKey, req.PromptID),
		)
	}

	text := strings.Join(resp.Texts, "\n")
	tokens := completion.EstimateTokens(req.Rendered) + completion.EstimateTokens(text)

	return &completion.Result{
		Text:       text,
		Provider:   req.Provider,
		Model:      model,
		Latency:    latency,
		TokenCount: tokens,
		Cost:       completion.EstimateCost(req.Provider, tokens),
	}, nil
}

// resolveClient picks the gollem client and model for the request
func (c *CompletionClient) resolveClient(ctx context.Context, req *completion.Request) (gollem.LLMClient, string, error) {
	cfg := c.factory.GetConfig()

	if c.secondary {
		client, err := c.factory.GetSecondaryClient(ctx)
		if err != nil {
			return nil, "", goerr.Wrap(err, "secondary model unavailable",
				goerr.T(apperr.ErrTagTerminal))
		}
		return client, cfg.Secondary.Model, nil
	}

	model := req.Sampling.Model
	provider := req.Provider.String()
	if model == "" {
		provider = cfg.Defaults.Provider
		model = cfg.Defaults.Model
	}

	client, err := c.factory.CreateClient(ctx, provider, model)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to create completion client",
			goerr.T(apperr.ErrTagTerminal),
			goerr.V("provider", provider),
			goerr.V("model", model),
		)
	}

	return client, model, nil
}

// retryableFragments are error text markers of transient provider
// failures. Provider SDKs do not expose structured status codes through
// gollem, so classification falls back to message inspection.
var retryableFragments = []string{
	"429",
	"rate limit",
	"rate_limit",
	"overloaded",
	"too many requests",
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"unavailable",
	"internal server error",
	"500",
	"502",
	"503",
	"504",
}

// classifyCallError wraps a provider error with retryable or terminal tags
func classifyCallError(err error, req *completion.Request) error {
	opts := []goerr.Option{
		goerr.T(apperr.ErrTagLLMError),
		goerr.TV(apperr.CallIDKey, req.CallID),
		goerr.TV(apperr.PromptIDKey, req.PromptID),
	}

	msg := strings.ToLower(err.Error())

	switch {
	case err == context.DeadlineExceeded || strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		opts = append(opts, goerr.T(apperr.ErrTagTimeout), goerr.T(apperr.ErrTagRetryable))
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests"):
		opts = append(opts, goerr.T(apperr.ErrTagRateLimit), goerr.T(apperr.ErrTagRetryable))
	case isRetryableMessage(msg):
		opts = append(opts, goerr.T(apperr.ErrTagRetryable))
	default:
		opts = append(opts, goerr.T(apperr.ErrTagTerminal))
	}

	return goerr.Wrap(err, "completion call failed", opts...)
}

func isRetryableMessage(msg string) bool {
	// 501 is the one server error that never resolves by retrying
	if strings.Contains(msg, "501") || strings.Contains(msg, "not implemented") {
		return false
	}
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Ensure CompletionClient implements the interface
var _ interfaces.CompletionClient = (*CompletionClient)(nil)
