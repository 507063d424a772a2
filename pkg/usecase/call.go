package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/validation"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/service/breaker"
	"github.com/m-mizutani/komainu/pkg/service/fallback"
	"github.com/m-mizutani/komainu/pkg/utils/logging"
)

// CallWithSafety runs one guarded completion call: resolve the prompt,
// execute under retry and the circuit breaker, validate, and degrade
// through the fallback chain on any unrecoverable failure. The only
// error a caller sees after a failure path is fallback exhaustion;
// everything upstream is absorbed and recorded.
func (uc *UseCases) CallWithSafety(ctx context.Context, req *interfaces.CallRequest) (*interfaces.CallResponse, error) {
	callID := types.NewCallID(ctx)
	logger := ctxlog.From(ctx)

	// Resolution failures are fatal and never retried
	version, err := uc.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	rendered, err := version.RenderFull(req.Input)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to render prompt",
			goerr.T(apperr.ErrTagInvalidInput),
			goerr.TV(apperr.PromptIDKey, version.ID),
		)
	}

	result, attempts, callErr := uc.executeGuarded(ctx, &completion.Request{
		CallID:           callID,
		PromptID:         version.ID,
		Version:          version.Version,
		Provider:         version.Provider,
		Sampling:         version.Sampling,
		Rendered:         rendered,
		StructuredOutput: version.OutputSchema != nil,
	})

	if callErr == nil {
		v := uc.validator.Validate(ctx, result, version.OutputSchema)
		if v.Valid {
			uc.recordSuccess(ctx, callID, version, result, v)
			uc.cacheResult(version, req.Input, result)
			return &interfaces.CallResponse{
				CallID:     callID,
				Result:     result,
				Validation: v,
			}, nil
		}

		logger.Warn("completion result failed validation",
			slog.String("prompt_id", version.ID.String()),
			slog.Int("errors", len(v.Errors())),
		)
		callErr = goerr.New("output validation failed",
			goerr.T(apperr.ErrTagValidation),
			goerr.TV(apperr.PromptIDKey, version.ID),
			goerr.TV(apperr.ReasonKey, "schema violation"),
		)
	} else {
		logger.Warn("completion call failed",
			slog.String("prompt_id", version.ID.String()),
			slog.Int("attempts", attempts),
			logging.ErrAttr(callErr),
		)
	}

	return uc.degrade(ctx, callID, version, req.Input, callErr)
}

// resolve returns the requested exact version or the highest active one
func (uc *UseCases) resolve(ctx context.Context, req *interfaces.CallRequest) (*prompt.Version, error) {
	if err := prompt.ValidatePromptID(req.PromptID); err != nil {
		return nil, goerr.Wrap(err, "invalid prompt ID",
			goerr.T(apperr.ErrTagInvalidInput))
	}

	if req.Version != "" {
		return uc.repo.GetVersion(ctx, req.PromptID, req.Version)
	}
	return uc.repo.Get(ctx, req.PromptID)
}

// executeGuarded runs the completion through the circuit breaker and
// retry strategy. The breaker guards each individual attempt so a
// half-open probe admits exactly one call.
func (uc *UseCases) executeGuarded(ctx context.Context, req *completion.Request) (*completion.Result, int, error) {
	return uc.retry.Do(ctx, func(ctx context.Context) (*completion.Result, error) {
		if !uc.breaker.Allow() {
			return nil, goerr.Wrap(breaker.ErrOpen, "completion call rejected",
				goerr.T(apperr.ErrTagTerminal),
				goerr.TV(apperr.PromptIDKey, req.PromptID),
				goerr.TV(apperr.RetryAfterKey, uc.breaker.RetryAfter().String()),
			)
		}

		result, err := uc.client.Generate(ctx, req)
		if err != nil {
			uc.breaker.RecordFailure(ctx)
			return nil, err
		}

		uc.breaker.RecordSuccess(ctx)
		return result, nil
	})
}

// degrade drives the fallback chain and records the outcome
func (uc *UseCases) degrade(ctx context.Context, callID types.CallID, version *prompt.Version, input map[string]string, cause error) (*interfaces.CallResponse, error) {
	if uc.chain == nil {
		uc.recordFailure(ctx, callID, version, "", reason(cause))
		return nil, goerr.Wrap(apperr.ErrFallbackExhausted, "fallback chain is not configured",
			goerr.TV(apperr.CallIDKey, callID),
			goerr.TV(apperr.PromptIDKey, version.ID),
		)
	}

	outcome, err := uc.chain.Execute(ctx, &fallback.Request{
		CallID:  callID,
		Version: version,
		Input:   input,
	})
	if err != nil {
		uc.recordFailure(ctx, callID, version, "", reason(cause))
		return nil, goerr.Wrap(err, "call failed and all fallback tiers exhausted",
			goerr.TV(apperr.CallIDKey, callID),
			goerr.TV(apperr.PromptIDKey, version.ID),
		)
	}

	uc.recordFallback(ctx, callID, version, outcome, reason(cause))

	return &interfaces.CallResponse{
		CallID:       callID,
		Result:       outcome.Result,
		Validation:   outcome.Validation,
		FallbackUsed: true,
		FallbackTier: string(outcome.Tier),
	}, nil
}

// cacheResult stores a validated primary-path result for tier-4 reuse
func (uc *UseCases) cacheResult(version *prompt.Version, input map[string]string, result *completion.Result) {
	if uc.chain == nil {
		return
	}
	uc.chain.Cache().Put(fallback.CacheKey(version.ID, input), result)
}

func (uc *UseCases) recordSuccess(ctx context.Context, callID types.CallID, version *prompt.Version, result *completion.Result, v *validation.Result) {
	uc.monitor.Record(ctx, &metrics.Snapshot{
		CallID:             callID,
		Timestamp:          time.Now(),
		PromptID:           version.ID,
		Success:            true,
		Latency:            result.Latency,
		TokenCount:         result.TokenCount,
		Cost:               result.Cost,
		HallucinationCount: v.HallucinationCount(),
	})
}

func (uc *UseCases) recordFallback(ctx context.Context, callID types.CallID, version *prompt.Version, outcome *fallback.Outcome, cause string) {
	snapshot := &metrics.Snapshot{
		CallID:           callID,
		Timestamp:        time.Now(),
		PromptID:         version.ID,
		Success:          true,
		FallbackUsed:     true,
		FallbackTier:     string(outcome.Tier),
		ValidationFailed: cause == "validation_failed",
		Reason:           cause,
	}
	if outcome.Result != nil {
		snapshot.Latency = outcome.Result.Latency
		snapshot.TokenCount = outcome.Result.TokenCount
		snapshot.Cost = outcome.Result.Cost
	}
	if outcome.Validation != nil {
		snapshot.HallucinationCount = outcome.Validation.HallucinationCount()
	}

	uc.monitor.Record(ctx, snapshot)
}

func (uc *UseCases) recordFailure(ctx context.Context, callID types.CallID, version *prompt.Version, tier, cause string) {
	uc.monitor.Record(ctx, &metrics.Snapshot{
		CallID:           callID,
		Timestamp:        time.Now(),
		PromptID:         version.ID,
		Success:          false,
		FallbackUsed:     tier != "",
		FallbackTier:     tier,
		ValidationFailed: cause == "validation_failed",
		Reason:           cause,
	})
}

// reason reduces an error chain to a short snapshot annotation
func reason(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerr.HasTag(err, apperr.ErrTagValidation):
		return "validation_failed"
	case goerr.HasTag(err, apperr.ErrTagCircuitOpen):
		return "circuit_open"
	case goerr.HasTag(err, apperr.ErrTagRateLimit):
		return "rate_limited"
	case goerr.HasTag(err, apperr.ErrTagTimeout):
		return "timeout"
	case goerr.HasTag(err, apperr.ErrTagTerminal):
		return "terminal_error"
	case goerr.HasTag(err, apperr.ErrTagRetryable):
		return "retry_exhausted"
	default:
		return "call_failed"
	}
}
