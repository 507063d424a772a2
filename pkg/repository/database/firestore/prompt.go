package firestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// versionDocID builds the document ID for one prompt version
func versionDocID(id types.PromptID, version string) string {
	return fmt.Sprintf("%s@%s", id, version)
}

// Register inserts or replaces a version
func (c *Client) Register(ctx context.Context, version *prompt.Version) error {
	if err := prompt.ValidateVersion(version); err != nil {
		return err
	}

	stored := version.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	// Preserve the original creation time when replacing
	docRef := c.client.Collection(collectionPromptVersions).Doc(versionDocID(stored.ID, stored.Version))
	if snap, err := docRef.Get(ctx); err == nil {
		var existing promptVersionDoc
		if err := snap.DataTo(&existing); err == nil && !existing.CreatedAt.IsZero() {
			stored.CreatedAt = existing.CreatedAt
		}
	} else if status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to check existing prompt version",
			goerr.V("prompt_id", stored.ID),
			goerr.V("version", stored.Version))
	}

	doc, err := versionToDoc(stored)
	if err != nil {
		return err
	}

	if _, err := docRef.Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to register prompt version",
			goerr.V("prompt_id", stored.ID),
			goerr.V("version", stored.Version))
	}

	return nil
}

// Get returns the highest non-deprecated version of the prompt
func (c *Client) Get(ctx context.Context, id types.PromptID) (*prompt.Version, error) {
	versions, err := c.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].IsDeprecated(now) {
			return versions[i], nil
		}
	}

	return nil, goerr.Wrap(prompt.ErrNoActiveVersion, "all versions are deprecated",
		goerr.V("prompt_id", id))
}

// GetVersion returns the exact version
func (c *Client) GetVersion(ctx context.Context, id types.PromptID, version string) (*prompt.Version, error) {
	snap, err := c.client.Collection(collectionPromptVersions).Doc(versionDocID(id, version)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(prompt.ErrVersionNotFound, "version not registered",
				goerr.V("prompt_id", id),
				goerr.V("version", version))
		}
		return nil, goerr.Wrap(err, "failed to get prompt version",
			goerr.V("prompt_id", id),
			goerr.V("version", version))
	}

	var doc promptVersionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal prompt version",
			goerr.V("prompt_id", id),
			goerr.V("version", version))
	}

	return docToVersion(&doc)
}

// ListVersions returns all versions of a prompt, ascending by semantic version
func (c *Client) ListVersions(ctx context.Context, id types.PromptID) ([]*prompt.Version, error) {
	iter := c.client.Collection(collectionPromptVersions).
		Where("prompt_id", "==", id.String()).
		Documents(ctx)
	defer iter.Stop()

	var versions []*prompt.Version
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list prompt versions",
				goerr.V("prompt_id", id))
		}

		var doc promptVersionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal prompt version",
				goerr.V("prompt_id", id))
		}

		v, err := docToVersion(&doc)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	if len(versions) == 0 {
		return nil, goerr.Wrap(prompt.ErrPromptNotFound, "prompt not registered",
			goerr.V("prompt_id", id))
	}

	sort.Slice(versions, func(i, j int) bool {
		return prompt.CompareVersions(versions[i].Version, versions[j].Version) < 0
	})

	return versions, nil
}

// Deprecate sets the retirement timestamp of a version (soft delete)
func (c *Client) Deprecate(ctx context.Context, id types.PromptID, version string, sunset time.Time) error {
	docRef := c.client.Collection(collectionPromptVersions).Doc(versionDocID(id, version))

	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "deprecated_at", Value: sunset},
		{Path: "updated_at", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(prompt.ErrVersionNotFound, "version not registered",
				goerr.V("prompt_id", id),
				goerr.V("version", version))
		}
		return goerr.Wrap(err, "failed to deprecate prompt version",
			goerr.V("prompt_id", id),
			goerr.V("version", version))
	}

	return nil
}

// Retire removes the version entry entirely
func (c *Client) Retire(ctx context.Context, id types.PromptID, version string) error {
	docRef := c.client.Collection(collectionPromptVersions).Doc(versionDocID(id, version))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(prompt.ErrVersionNotFound, "version not registered",
				goerr.V("prompt_id", id),
				goerr.V("version", version))
		}
		return goerr.Wrap(err, "failed to check prompt version",
			goerr.V("prompt_id", id),
			goerr.V("version", version))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to retire prompt version",
			goerr.V("prompt_id", id),
			goerr.V("version", version))
	}

	return nil
}

// ListActive returns all prompt IDs having at least one non-deprecated version
func (c *Client) ListActive(ctx context.Context) ([]types.PromptID, error) {
	iter := c.client.Collection(collectionPromptVersions).Documents(ctx)
	defer iter.Stop()

	now := time.Now()
	active := make(map[types.PromptID]bool)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list prompt versions")
		}

		var doc promptVersionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal prompt version")
		}

		v, err := docToVersion(&doc)
		if err != nil {
			return nil, err
		}
		if !v.IsDeprecated(now) {
			active[v.ID] = true
		}
	}

	ids := make([]types.PromptID, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// Export serializes the full versioned store
func (c *Client) Export(ctx context.Context) (*prompt.StoreDocument, error) {
	iter := c.client.Collection(collectionPromptVersions).Documents(ctx)
	defer iter.Stop()

	out := &prompt.StoreDocument{
		ExportedAt: time.Now().UTC(),
		Prompts:    make(map[types.PromptID][]*prompt.Version),
	}

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to export prompt versions")
		}

		var doc promptVersionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal prompt version")
		}

		v, err := docToVersion(&doc)
		if err != nil {
			return nil, err
		}
		out.Prompts[v.ID] = append(out.Prompts[v.ID], v)
	}

	for id := range out.Prompts {
		versions := out.Prompts[id]
		sort.Slice(versions, func(i, j int) bool {
			return prompt.CompareVersions(versions[i].Version, versions[j].Version) < 0
		})
	}

	return out, nil
}

// Import restores the full versioned store, replacing current contents
func (c *Client) Import(ctx context.Context, doc *prompt.StoreDocument) error {
	if doc == nil {
		return goerr.New("store document cannot be nil")
	}

	// Remove current contents first
	iter := c.client.Collection(collectionPromptVersions).Documents(ctx)
	defer iter.Stop()

	bw := c.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to enumerate prompt versions for import")
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to schedule delete for import")
		}
	}

	for id, versions := range doc.Prompts {
		for _, v := range versions {
			if v.ID != id {
				return goerr.New("version prompt ID does not match store key",
					goerr.V("key", id),
					goerr.V("prompt_id", v.ID))
			}
			if err := prompt.ValidateVersion(v); err != nil {
				return goerr.Wrap(err, "invalid version in store document",
					goerr.V("prompt_id", id))
			}

			stored, err := versionToDoc(v)
			if err != nil {
				return err
			}

			ref := c.client.Collection(collectionPromptVersions).Doc(versionDocID(id, v.Version))
			if _, err := bw.Set(ref, stored); err != nil {
				return goerr.Wrap(err, "failed to schedule import write",
					goerr.V("prompt_id", id),
					goerr.V("version", v.Version))
			}
		}
	}

	bw.End()
	return nil
}

// Ensure Client implements the interface
var _ interfaces.PromptRepository = (*Client)(nil)
