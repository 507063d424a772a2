package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
)

// RegisterPrompt validates and stores a prompt version
func (uc *UseCases) RegisterPrompt(ctx context.Context, version *prompt.Version) error {
	if err := uc.repo.Register(ctx, version); err != nil {
		return err
	}

	ctxlog.From(ctx).Info("registered prompt version",
		slog.String("prompt_id", version.ID.String()),
		slog.String("version", version.Version),
	)
	return nil
}

// GetPrompt returns an exact version, or the highest active one when
// version is empty.
func (uc *UseCases) GetPrompt(ctx context.Context, id types.PromptID, version string) (*prompt.Version, error) {
	if version != "" {
		return uc.repo.GetVersion(ctx, id, version)
	}
	return uc.repo.Get(ctx, id)
}

// ListPromptVersions returns every version of a prompt in ascending order
func (uc *UseCases) ListPromptVersions(ctx context.Context, id types.PromptID) ([]*prompt.Version, error) {
	return uc.repo.ListVersions(ctx, id)
}

// DeprecatePrompt soft-deletes a version with a sunset timestamp
func (uc *UseCases) DeprecatePrompt(ctx context.Context, id types.PromptID, version string, sunset time.Time) error {
	if sunset.IsZero() {
		sunset = time.Now()
	}

	if err := uc.repo.Deprecate(ctx, id, version, sunset); err != nil {
		return err
	}

	ctxlog.From(ctx).Info("deprecated prompt version",
		slog.String("prompt_id", id.String()),
		slog.String("version", version),
		slog.Time("sunset", sunset),
	)
	return nil
}

// RetirePrompt removes a version entirely
func (uc *UseCases) RetirePrompt(ctx context.Context, id types.PromptID, version string) error {
	if err := uc.repo.Retire(ctx, id, version); err != nil {
		return err
	}

	ctxlog.From(ctx).Info("retired prompt version",
		slog.String("prompt_id", id.String()),
		slog.String("version", version),
	)
	return nil
}

// ListActivePrompts returns the prompt IDs with at least one active version
func (uc *UseCases) ListActivePrompts(ctx context.Context) ([]types.PromptID, error) {
	return uc.repo.ListActive(ctx)
}

// ExportPrompts serializes the full store, archiving a copy when a
// storage repository is configured.
func (uc *UseCases) ExportPrompts(ctx context.Context) (*prompt.StoreDocument, error) {
	doc, err := uc.repo.Export(ctx)
	if err != nil {
		return nil, err
	}

	if uc.storageRepo != nil {
		if err := uc.storageRepo.SaveRegistry(ctx, doc); err != nil {
			return nil, goerr.Wrap(err, "failed to archive registry export",
				goerr.T(apperr.ErrTagStorage))
		}
	}

	return doc, nil
}

// ImportPrompts replaces the store contents with a previously exported document
func (uc *UseCases) ImportPrompts(ctx context.Context, doc *prompt.StoreDocument) error {
	if err := uc.repo.Import(ctx, doc); err != nil {
		return err
	}

	ctxlog.From(ctx).Info("imported prompt store",
		slog.Int("prompts", len(doc.Prompts)),
	)
	return nil
}
