package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// PromptRepository manages the versioned prompt store. Within one
// prompt ID versions are totally ordered by semantic version; the
// resolution target of Get without a version is the highest version
// without a retirement timestamp.
type PromptRepository interface {
	// Register inserts or replaces a version and re-sorts the version list
	Register(ctx context.Context, version *prompt.Version) error

	// Get returns the highest non-deprecated version of the prompt
	Get(ctx context.Context, id types.PromptID) (*prompt.Version, error)

	// GetVersion returns the exact version
	GetVersion(ctx context.Context, id types.PromptID, version string) (*prompt.Version, error)

	// ListVersions returns all versions of a prompt, ascending by semantic version
	ListVersions(ctx context.Context, id types.PromptID) ([]*prompt.Version, error)

	// Deprecate sets the retirement timestamp of a version (soft delete)
	Deprecate(ctx context.Context, id types.PromptID, version string, sunset time.Time) error

	// Retire removes the version entry entirely
	Retire(ctx context.Context, id types.PromptID, version string) error

	// ListActive returns all prompt IDs having at least one non-deprecated version
	ListActive(ctx context.Context) ([]types.PromptID, error)

	// Export serializes the full versioned store
	Export(ctx context.Context) (*prompt.StoreDocument, error)

	// Import restores the full versioned store, replacing current contents
	Import(ctx context.Context, doc *prompt.StoreDocument) error
}
