package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/validation"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/service/validate"
	"github.com/m-mizutani/komainu/pkg/utils/logging"
)

// Tier names the four degradation levels in execution order
type Tier string

const (
	TierAlternatePrompt Tier = "alternate_prompt"
	TierSecondaryModel  Tier = "secondary_model"
	TierTemplate        Tier = "template"
	TierCache           Tier = "cache"
)

// ErrExhausted is returned when every tier failed or was unconfigured
var ErrExhausted = goerr.New("all fallback tiers exhausted",
	goerr.T(apperr.ErrTagFallbackExhausted))

// Request carries everything a tier needs to retry the call
type Request struct {
	CallID  types.CallID
	Version *prompt.Version
	Input   map[string]string
}

// Outcome is a successful fallback result and the tier that produced it
type Outcome struct {
	Tier       Tier
	Result     *completion.Result
	Validation *validation.Result
}

// Chain executes the four degradation tiers strictly in order and
// returns at the first success. Tier failures are logged and swallowed;
// only total exhaustion propagates.
type Chain struct {
	repo      interfaces.PromptRepository
	primary   interfaces.CompletionClient
	secondary interfaces.CompletionClient
	templates interfaces.TemplateGenerator
	cache     *ResultCache
	validator *validate.Validator
}

// Option is a functional option for Chain
type Option func(*Chain)

// WithSecondaryClient configures the tier-2 degraded-model client
func WithSecondaryClient(client interfaces.CompletionClient) Option {
	return func(c *Chain) {
		c.secondary = client
	}
}

// WithTemplateGenerator configures the tier-3 static generator
func WithTemplateGenerator(g interfaces.TemplateGenerator) Option {
	return func(c *Chain) {
		c.templates = g
	}
}

// WithCache configures the tier-4 result cache
func WithCache(cache *ResultCache) Option {
	return func(c *Chain) {
		c.cache = cache
	}
}

// New creates a new fallback chain. The repository and primary client
// serve tier 1; the remaining tiers stay unconfigured unless options
// provide them.
func New(repo interfaces.PromptRepository, primary interfaces.CompletionClient, validator *validate.Validator, opts ...Option) *Chain {
	c := &Chain{
		repo:      repo,
		primary:   primary,
		validator: validator,
		cache:     NewResultCache(0),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Cache exposes the tier-4 cache so the orchestrator can store
// successful primary-path results.
func (c *Chain) Cache() *ResultCache {
	return c.cache
}

// Execute runs the tiers in order and returns the first success
func (c *Chain) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	logger := ctxlog.From(ctx)

	tiers := []struct {
		tier Tier
		run  func(ctx context.Context, req *Request) (*Outcome, error)
	}{
		{TierAlternatePrompt, c.alternatePrompt},
		{TierSecondaryModel, c.secondaryModel},
		{TierTemplate, c.template},
		{TierCache, c.cacheLookup},
	}

	for _, t := range tiers {
		outcome, err := t.run(ctx, req)
		if err != nil {
			logger.Warn("fallback tier failed",
				slog.String("tier", string(t.tier)),
				slog.String("prompt_id", req.Version.ID.String()),
				logging.ErrAttr(err),
			)
			continue
		}

		logger.Info("fallback tier succeeded",
			slog.String("tier", string(t.tier)),
			slog.String("prompt_id", req.Version.ID.String()),
		)
		return outcome, nil
	}

	return nil, goerr.Wrap(ErrExhausted, "no fallback tier produced a result",
		goerr.TV(apperr.CallIDKey, req.CallID),
		goerr.TV(apperr.PromptIDKey, req.Version.ID),
	)
}

// alternatePrompt re-invokes the same prompt with stricter sampling.
// When an older active version exists it is used in place of the one
// that just failed.
func (c *Chain) alternatePrompt(ctx context.Context, req *Request) (*Outcome, error) {
	version := req.Version
	if alt := c.findAlternateVersion(ctx, req.Version); alt != nil {
		version = alt
	}

	derived := version.Clone()
	derived.Sampling = derived.Sampling.MoreDeterministic()

	result, err := c.invoke(ctx, c.primary, derived, req)
	if err != nil {
		return nil, err
	}

	return c.validated(ctx, TierAlternatePrompt, derived, result)
}

// secondaryModel re-invokes equivalent semantics against the configured
// cheaper model
func (c *Chain) secondaryModel(ctx context.Context, req *Request) (*Outcome, error) {
	if c.secondary == nil {
		return nil, goerr.New("secondary model is not configured")
	}

	result, err := c.invoke(ctx, c.secondary, req.Version, req)
	if err != nil {
		return nil, err
	}

	return c.validated(ctx, TierSecondaryModel, req.Version, result)
}

// template produces a generic structurally valid result without calling
// the completion service
func (c *Chain) template(ctx context.Context, req *Request) (*Outcome, error) {
	if c.templates == nil {
		return nil, goerr.New("template generator is not configured")
	}

	result, err := c.templates.Generate(ctx, req.Version, req.Input)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Tier:       TierTemplate,
		Result:     result,
		Validation: &validation.Result{Valid: true, Confidence: 1.0},
	}, nil
}

// cacheLookup returns a previously cached successful result
func (c *Chain) cacheLookup(ctx context.Context, req *Request) (*Outcome, error) {
	key := CacheKey(req.Version.ID, req.Input)
	result, ok := c.cache.Get(key)
	if !ok {
		return nil, goerr.Wrap(apperr.ErrCacheMiss, "no cached result",
			goerr.TV(apperr.PromptIDKey, req.Version.ID),
		)
	}

	return &Outcome{
		Tier:       TierCache,
		Result:     result,
		Validation: &validation.Result{Valid: true, Confidence: 1.0},
	}, nil
}

// findAlternateVersion returns the highest active version older than
// the failing one, if any exists.
func (c *Chain) findAlternateVersion(ctx context.Context, failing *prompt.Version) *prompt.Version {
	versions, err := c.repo.ListVersions(ctx, failing.ID)
	if err != nil {
		return nil
	}

	now := time.Now()
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if v.Version == failing.Version || v.IsDeprecated(now) {
			continue
		}
		if prompt.CompareVersions(v.Version, failing.Version) < 0 {
			return v
		}
	}

	return nil
}

// invoke renders a version and calls the completion client once
func (c *Chain) invoke(ctx context.Context, client interfaces.CompletionClient, version *prompt.Version, req *Request) (*completion.Result, error) {
	rendered, err := version.RenderFull(req.Input)
	if err != nil {
		return nil, err
	}

	return client.Generate(ctx, &completion.Request{
		CallID:           req.CallID,
		PromptID:         version.ID,
		Version:          version.Version,
		Provider:         version.Provider,
		Sampling:         version.Sampling,
		Rendered:         rendered,
		StructuredOutput: version.OutputSchema != nil,
	})
}

// validated rejects tier results that fail output validation
func (c *Chain) validated(ctx context.Context, tier Tier, version *prompt.Version, result *completion.Result) (*Outcome, error) {
	v := c.validator.Validate(ctx, result, version.OutputSchema)
	if !v.Valid {
		return nil, goerr.New("fallback result failed validation",
			goerr.T(apperr.ErrTagValidation),
			goerr.TV(apperr.TierKey, string(tier)),
			goerr.TV(apperr.PromptIDKey, version.ID),
		)
	}

	return &Outcome{Tier: tier, Result: result, Validation: v}, nil
}
