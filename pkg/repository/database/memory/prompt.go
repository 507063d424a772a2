package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/repository/storage"
	"github.com/m-mizutani/komainu/pkg/utils/errors"
)

// PromptRepository is the in-memory implementation of the versioned
// prompt store. Version lists are kept sorted ascending by semantic
// version so resolution of the highest active version is a reverse
// scan. All returned versions are deep copies.
type PromptRepository struct {
	mu      sync.RWMutex
	prompts map[types.PromptID][]*prompt.Version
	flush   *storage.Client
}

// Option is a functional option for PromptRepository
type Option func(*PromptRepository)

// WithFlushStorage enables best-effort persistence: every mutation
// writes the full store document through the given storage client, and
// construction restores the last saved document when one exists.
func WithFlushStorage(client *storage.Client) Option {
	return func(r *PromptRepository) {
		r.flush = client
	}
}

// New creates a new in-memory prompt repository
func New(opts ...Option) *PromptRepository {
	r := &PromptRepository{
		prompts: make(map[types.PromptID][]*prompt.Version),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.flush != nil {
		doc, err := r.flush.LoadRegistry(context.Background())
		if err == nil {
			r.restore(doc)
		} else if err != interfaces.ErrStorageKeyNotFound {
			errors.Handle(context.Background(), goerr.Wrap(err, "failed to restore prompt registry"))
		}
	}

	return r
}

// Register inserts or replaces a version and re-sorts the version list
func (r *PromptRepository) Register(ctx context.Context, version *prompt.Version) error {
	if err := prompt.ValidateVersion(version); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := version.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	versions := r.prompts[stored.ID]
	replaced := false
	for i, v := range versions {
		if v.Version == stored.Version {
			stored.CreatedAt = v.CreatedAt
			versions[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		versions = append(versions, stored)
	}

	sortVersions(versions)
	r.prompts[stored.ID] = versions

	r.flushLocked(ctx)
	return nil
}

// Get returns the highest non-deprecated version of the prompt
func (r *PromptRepository) Get(ctx context.Context, id types.PromptID) (*prompt.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.prompts[id]
	if !ok || len(versions) == 0 {
		return nil, goerr.Wrap(prompt.ErrPromptNotFound, "prompt not registered",
			goerr.V("prompt_id", id),
		)
	}

	now := time.Now()
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].IsDeprecated(now) {
			return versions[i].Clone(), nil
		}
	}

	return nil, goerr.Wrap(prompt.ErrNoActiveVersion, "all versions are deprecated",
		goerr.V("prompt_id", id),
	)
}

// GetVersion returns the exact version
func (r *PromptRepository) GetVersion(ctx context.Context, id types.PromptID, version string) (*prompt.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := r.findLocked(id, version)
	if v == nil {
		return nil, goerr.Wrap(prompt.ErrVersionNotFound, "version not registered",
			goerr.V("prompt_id", id),
			goerr.V("version", version),
		)
	}

	return v.Clone(), nil
}

// ListVersions returns all versions of a prompt, ascending by semantic version
func (r *PromptRepository) ListVersions(ctx context.Context, id types.PromptID) ([]*prompt.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.prompts[id]
	if !ok {
		return nil, goerr.Wrap(prompt.ErrPromptNotFound, "prompt not registered",
			goerr.V("prompt_id", id),
		)
	}

	result := make([]*prompt.Version, len(versions))
	for i, v := range versions {
		result[i] = v.Clone()
	}

	return result, nil
}

// Deprecate sets the retirement timestamp of a version (soft delete)
func (r *PromptRepository) Deprecate(ctx context.Context, id types.PromptID, version string, sunset time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.findLocked(id, version)
	if v == nil {
		return goerr.Wrap(prompt.ErrVersionNotFound, "version not registered",
			goerr.V("prompt_id", id),
			goerr.V("version", version),
		)
	}

	v.DeprecatedAt = &sunset
	v.UpdatedAt = time.Now()

	r.flushLocked(ctx)
	return nil
}

// Retire removes the version entry entirely
func (r *PromptRepository) Retire(ctx context.Context, id types.PromptID, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.prompts[id]
	if !ok {
		return goerr.Wrap(prompt.ErrPromptNotFound, "prompt not registered",
			goerr.V("prompt_id", id),
		)
	}

	for i, v := range versions {
		if v.Version == version {
			versions = append(versions[:i], versions[i+1:]...)
			if len(versions) == 0 {
				delete(r.prompts, id)
			} else {
				r.prompts[id] = versions
			}

			r.flushLocked(ctx)
			return nil
		}
	}

	return goerr.Wrap(prompt.ErrVersionNotFound, "version not registered",
		goerr.V("prompt_id", id),
		goerr.V("version", version),
	)
}

// ListActive returns all prompt IDs having at least one non-deprecated version
func (r *PromptRepository) ListActive(ctx context.Context) ([]types.PromptID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	ids := make([]types.PromptID, 0, len(r.prompts))
	for id, versions := range r.prompts {
		for _, v := range versions {
			if !v.IsDeprecated(now) {
				ids = append(ids, id)
				break
			}
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Export serializes the full versioned store
func (r *PromptRepository) Export(ctx context.Context) (*prompt.StoreDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.exportLocked(), nil
}

// Import restores the full versioned store, replacing current contents
func (r *PromptRepository) Import(ctx context.Context, doc *prompt.StoreDocument) error {
	if doc == nil {
		return goerr.New("store document cannot be nil")
	}

	for id, versions := range doc.Prompts {
		for _, v := range versions {
			if v.ID != id {
				return goerr.New("version prompt ID does not match store key",
					goerr.V("key", id),
					goerr.V("prompt_id", v.ID),
				)
			}
			if err := prompt.ValidateVersion(v); err != nil {
				return goerr.Wrap(err, "invalid version in store document",
					goerr.V("prompt_id", id),
				)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.restore(doc)
	r.flushLocked(ctx)
	return nil
}

func (r *PromptRepository) findLocked(id types.PromptID, version string) *prompt.Version {
	for _, v := range r.prompts[id] {
		if v.Version == version {
			return v
		}
	}
	return nil
}

func (r *PromptRepository) exportLocked() *prompt.StoreDocument {
	doc := &prompt.StoreDocument{
		ExportedAt: time.Now().UTC(),
		Prompts:    make(map[types.PromptID][]*prompt.Version, len(r.prompts)),
	}

	for id, versions := range r.prompts {
		copied := make([]*prompt.Version, len(versions))
		for i, v := range versions {
			copied[i] = v.Clone()
		}
		doc.Prompts[id] = copied
	}

	return doc
}

// restore replaces current contents with the document. Caller must hold
// the write lock (or be the constructor before publication).
func (r *PromptRepository) restore(doc *prompt.StoreDocument) {
	r.prompts = make(map[types.PromptID][]*prompt.Version, len(doc.Prompts))
	for id, versions := range doc.Prompts {
		copied := make([]*prompt.Version, len(versions))
		for i, v := range versions {
			copied[i] = v.Clone()
		}
		sortVersions(copied)
		r.prompts[id] = copied
	}
}

// flushLocked persists the store document best-effort. Failures are
// logged, not returned: the in-memory state is authoritative.
func (r *PromptRepository) flushLocked(ctx context.Context) {
	if r.flush == nil {
		return
	}

	if err := r.flush.SaveRegistry(ctx, r.exportLocked()); err != nil {
		errors.Handle(ctx, goerr.Wrap(err, "failed to flush prompt registry"))
	}
}

func sortVersions(versions []*prompt.Version) {
	sort.Slice(versions, func(i, j int) bool {
		return prompt.CompareVersions(versions[i].Version, versions[j].Version) < 0
	})
}

// Ensure PromptRepository implements the interface
var _ interfaces.PromptRepository = (*PromptRepository)(nil)
