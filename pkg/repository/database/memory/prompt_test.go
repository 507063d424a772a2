package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	storageadapter "github.com/m-mizutani/komainu/pkg/adapters/memory"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/model/schema"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/repository/database/memory"
	"github.com/m-mizutani/komainu/pkg/repository/storage"
)

func newVersion(id types.PromptID, version string) *prompt.Version {
	return &prompt.Version{
		ID:       id,
		Version:  version,
		Provider: types.LLMProviderClaude,
		Sampling: sampling.Config{
			Temperature: 0.2,
			TopP:        0.9,
			Model:       "claude-sonnet-4-20250514",
		},
		Template: "Summarize the following incident: {{incident}}",
	}
}

func TestResolveHighestVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	// Registration order must not matter
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.0.0")))
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "2.1.0")))
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.5.3")))

	got, err := repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, got.Version, "2.1.0")

	versions, err := repo.ListVersions(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, len(versions), 3)
	gt.Equal(t, versions[0].Version, "1.0.0")
	gt.Equal(t, versions[1].Version, "1.5.3")
	gt.Equal(t, versions[2].Version, "2.1.0")
}

func TestDeprecatedVersionsExcludedFromResolution(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.0.0")))
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.5.3")))
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "2.1.0")))

	gt.NoError(t, repo.Deprecate(ctx, "gen-summary", "2.1.0", time.Now().Add(-time.Minute)))

	got, err := repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, got.Version, "1.5.3")

	// A future sunset keeps the version active until it passes
	gt.NoError(t, repo.Deprecate(ctx, "gen-summary", "1.5.3", time.Now().Add(time.Hour)))
	got, err = repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, got.Version, "1.5.3")

	// Deprecated versions stay addressable by exact version
	exact, err := repo.GetVersion(ctx, "gen-summary", "2.1.0")
	gt.NoError(t, err)
	gt.V(t, exact.DeprecatedAt).NotNil()
}

func TestAllVersionsDeprecated(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.0.0")))
	gt.NoError(t, repo.Deprecate(ctx, "gen-summary", "1.0.0", time.Now().Add(-time.Minute)))

	_, err := repo.Get(ctx, "gen-summary")
	gt.Error(t, err)

	active, err := repo.ListActive(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(active), 0)
}

func TestRetireRemovesVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.0.0")))
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "2.0.0")))

	gt.NoError(t, repo.Retire(ctx, "gen-summary", "2.0.0"))

	_, err := repo.GetVersion(ctx, "gen-summary", "2.0.0")
	gt.Error(t, err)

	got, err := repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, got.Version, "1.0.0")

	// Retiring the last version removes the prompt entirely
	gt.NoError(t, repo.Retire(ctx, "gen-summary", "1.0.0"))
	_, err = repo.Get(ctx, "gen-summary")
	gt.Error(t, err)
}

func TestRegisterReplacesSameVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	v1 := newVersion("gen-summary", "1.0.0")
	v1.Template = "first {{x}}"
	gt.NoError(t, repo.Register(ctx, v1))

	v2 := newVersion("gen-summary", "1.0.0")
	v2.Template = "second {{x}}"
	gt.NoError(t, repo.Register(ctx, v2))

	versions, err := repo.ListVersions(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, len(versions), 1)
	gt.Equal(t, versions[0].Template, "second {{x}}")
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	bad := newVersion("gen-summary", "not-semver")
	gt.Error(t, repo.Register(ctx, bad))

	empty := newVersion("gen-summary", "1.0.0")
	empty.Template = ""
	gt.Error(t, repo.Register(ctx, empty))
}

func TestCopyOnReturn(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.0.0")))

	got, err := repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	got.Template = "mutated"

	again, err := repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, again.Template, "Summarize the following incident: {{incident}}")
}

func TestCopyOnReturnIsolatesSchema(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	v := newVersion("gen-summary", "1.0.0")
	v.OutputSchema = &schema.Schema{
		Kind: schema.KindObject,
		Properties: map[string]*schema.Schema{
			"summary": {Kind: schema.KindString},
		},
		Required: []string{"summary"},
	}
	gt.NoError(t, repo.Register(ctx, v))

	got, err := repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	got.OutputSchema.Properties["injected"] = &schema.Schema{Kind: schema.KindString}
	got.OutputSchema.Required[0] = "mutated"

	again, err := repo.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.False(t, again.OutputSchema.HasProperty("injected"))
	gt.Equal(t, again.OutputSchema.Required[0], "summary")
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := memory.New()

	gt.NoError(t, src.Register(ctx, newVersion("gen-summary", "1.0.0")))
	gt.NoError(t, src.Register(ctx, newVersion("gen-summary", "2.1.0")))
	gt.NoError(t, src.Register(ctx, newVersion("gen-triage", "0.1.0")))
	gt.NoError(t, src.Deprecate(ctx, "gen-summary", "1.0.0", time.Now().Add(-time.Minute)))

	doc, err := src.Export(ctx)
	gt.NoError(t, err)

	dst := memory.New()
	gt.NoError(t, dst.Import(ctx, doc))

	got, err := dst.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, got.Version, "2.1.0")

	old, err := dst.GetVersion(ctx, "gen-summary", "1.0.0")
	gt.NoError(t, err)
	gt.V(t, old.DeprecatedAt).NotNil()

	active, err := dst.ListActive(ctx)
	gt.NoError(t, err)
	gt.Equal(t, active, []types.PromptID{"gen-summary", "gen-triage"})
}

func TestFlushAndRestore(t *testing.T) {
	ctx := context.Background()
	adapter := storageadapter.New()
	client := storage.New(adapter)

	repo := memory.New(memory.WithFlushStorage(client))
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.0.0")))
	gt.NoError(t, repo.Register(ctx, newVersion("gen-summary", "1.2.0")))

	// A new repository over the same storage sees the flushed state
	restored := memory.New(memory.WithFlushStorage(client))
	got, err := restored.Get(ctx, "gen-summary")
	gt.NoError(t, err)
	gt.Equal(t, got.Version, "1.2.0")
}
