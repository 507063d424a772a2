package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/model/schema"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/repository/database/memory"
	"github.com/m-mizutani/komainu/pkg/service/breaker"
	"github.com/m-mizutani/komainu/pkg/service/fallback"
	"github.com/m-mizutani/komainu/pkg/service/retry"
	"github.com/m-mizutani/komainu/pkg/service/template"
	"github.com/m-mizutani/komainu/pkg/service/validate"
	"github.com/m-mizutani/komainu/pkg/usecase"
)

type scriptClient struct {
	responses []func(req *completion.Request) (*completion.Result, error)
	calls     int
}

func (c *scriptClient) Generate(ctx context.Context, req *completion.Request) (*completion.Result, error) {
	idx := c.calls
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	c.calls++
	return c.responses[idx](req)
}

func respond(text string) func(req *completion.Request) (*completion.Result, error) {
	return func(req *completion.Request) (*completion.Result, error) {
		return &completion.Result{
			Text:       text,
			Provider:   req.Provider,
			Latency:    20 * time.Millisecond,
			TokenCount: 10,
			Cost:       0.001,
		}, nil
	}
}

func fail(tags ...goerr.Option) func(req *completion.Request) (*completion.Result, error) {
	return func(req *completion.Request) (*completion.Result, error) {
		opts := append([]goerr.Option{}, tags...)
		return nil, goerr.New("completion failed", opts...)
	}
}

func fastRetry(t *testing.T) *retry.Strategy {
	t.Helper()
	s, err := retry.New(retry.WithPolicy(retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Factor:      2.0,
		JitterRatio: 0,
	}))
	gt.NoError(t, err)
	return s
}

func summarySchema() *schema.Schema {
	return &schema.Schema{
		Kind:       schema.KindObject,
		Properties: map[string]*schema.Schema{"summary": {Kind: schema.KindString}},
		Required:   []string{"summary"},
	}
}

func registerPrompt(t *testing.T, repo *memory.PromptRepository, withSchema bool) {
	t.Helper()

	v := &prompt.Version{
		ID:       "gen-summary",
		Version:  "1.0.0",
		Provider: types.LLMProviderClaude,
		Sampling: sampling.Config{Temperature: 0.2, TopP: 0.9, Model: "claude-sonnet-4-20250514"},
		Template: "Summarize: {{text}}",
	}
	if withSchema {
		v.OutputSchema = summarySchema()
	}
	gt.NoError(t, repo.Register(context.Background(), v))
}

func newPipeline(t *testing.T, client interfaces.CompletionClient, withSchema bool, opts ...usecase.Option) *usecase.UseCases {
	t.Helper()

	repo := memory.New()
	registerPrompt(t, repo, withSchema)

	base := []usecase.Option{
		usecase.WithPromptRepository(repo),
		usecase.WithCompletionClient(client),
		usecase.WithRetryStrategy(fastRetry(t)),
	}
	return usecase.New(append(base, opts...)...)
}

func TestCallSuccess(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		respond(`{"summary":"all good"}`),
	}}

	uc := newPipeline(t, client, true)
	resp, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})

	gt.NoError(t, err)
	gt.False(t, resp.FallbackUsed)
	gt.True(t, resp.Validation.Valid)
	gt.Equal(t, resp.Result.Text, `{"summary":"all good"}`)

	agg := uc.Monitor().GetMetrics("")
	gt.Equal(t, agg.TotalCalls, 1)
	gt.Equal(t, agg.SuccessRate, 1.0)
}

func TestUnknownPromptIsFatal(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		respond("unused"),
	}}

	uc := newPipeline(t, client, false)
	_, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
		PromptID: "no-such-prompt",
		Input:    map[string]string{},
	})

	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, apperr.ErrTagPromptNotFound))
	// Resolution errors never reach the completion client
	gt.Equal(t, client.calls, 0)
}

func TestTransientFailureRetriedThenSucceeds(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		fail(goerr.T(apperr.ErrTagRetryable)),
		respond("recovered"),
	}}

	uc := newPipeline(t, client, false)
	resp, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})

	gt.NoError(t, err)
	gt.False(t, resp.FallbackUsed)
	gt.Equal(t, client.calls, 2)
}

func TestTerminalFailureFallsBackToTemplate(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		fail(goerr.T(apperr.ErrTagTerminal)),
	}}

	repo := memory.New()
	registerPrompt(t, repo, false)

	validator := validate.New()
	chain := fallback.New(repo, client, validator,
		fallback.WithTemplateGenerator(template.New(
			template.WithTemplate("gen-summary", template.Template{Text: "generic summary"}),
		)),
	)

	uc := usecase.New(
		usecase.WithPromptRepository(repo),
		usecase.WithCompletionClient(client),
		usecase.WithRetryStrategy(fastRetry(t)),
		usecase.WithValidator(validator),
		usecase.WithFallbackChain(chain),
	)

	resp, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})

	gt.NoError(t, err)
	gt.True(t, resp.FallbackUsed)
	gt.Equal(t, resp.FallbackTier, string(fallback.TierTemplate))

	// Terminal errors skip the remaining retry attempts: one primary
	// call plus one tier-1 fallback call.
	gt.Equal(t, client.calls, 2)

	agg := uc.Monitor().GetMetrics("")
	gt.Equal(t, agg.FallbackRate, 1.0)
}

func TestValidationFailureDrivesFallback(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		respond("not json"),
	}}

	repo := memory.New()
	registerPrompt(t, repo, true)

	validator := validate.New()
	chain := fallback.New(repo, client, validator,
		fallback.WithTemplateGenerator(template.New(
			template.WithTemplate("gen-summary", template.Template{Schema: summarySchema()}),
		)),
	)

	uc := usecase.New(
		usecase.WithPromptRepository(repo),
		usecase.WithCompletionClient(client),
		usecase.WithRetryStrategy(fastRetry(t)),
		usecase.WithValidator(validator),
		usecase.WithFallbackChain(chain),
	)

	resp, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})

	gt.NoError(t, err)
	gt.True(t, resp.FallbackUsed)
	gt.Equal(t, resp.FallbackTier, string(fallback.TierTemplate))

	agg := uc.Monitor().GetMetrics("")
	gt.Equal(t, agg.ValidationFailureRate, 1.0)
}

func TestExhaustionSurfacesSingleError(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		fail(goerr.T(apperr.ErrTagTerminal)),
	}}

	uc := newPipeline(t, client, false)
	_, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})

	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, apperr.ErrTagFallbackExhausted))

	agg := uc.Monitor().GetMetrics("")
	gt.Equal(t, agg.TotalCalls, 1)
	gt.Equal(t, agg.SuccessRate, 0.0)
}

func TestSuccessfulResultsFeedTheCache(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		respond("a fine summary"),
		fail(goerr.T(apperr.ErrTagTerminal)),
	}}

	uc := newPipeline(t, client, false)

	req := &interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	}

	first, err := uc.CallWithSafety(ctx, req)
	gt.NoError(t, err)
	gt.False(t, first.FallbackUsed)

	// Primary and tier 1/2 now fail; the cached result serves tier 4
	second, err := uc.CallWithSafety(ctx, req)
	gt.NoError(t, err)
	gt.True(t, second.FallbackUsed)
	gt.Equal(t, second.FallbackTier, string(fallback.TierCache))
	gt.Equal(t, second.Result.Text, "a fine summary")
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	ctx := context.Background()
	client := &scriptClient{responses: []func(req *completion.Request) (*completion.Result, error){
		respond("never called"),
	}}

	b := breaker.New(breaker.WithFailureThreshold(1))
	b.RecordFailure(ctx)

	uc := newPipeline(t, client, false, usecase.WithCircuitBreaker(b))
	_, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})

	// Primary path rejected; tier-1 fallback bypasses the breaker and succeeds
	gt.NoError(t, err)
	gt.Equal(t, client.calls, 1)
}
