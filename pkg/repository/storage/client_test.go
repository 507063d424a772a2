package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/adapters/memory"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/repository/storage"
)

func TestRegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := storage.New(memory.New())

	doc := &prompt.StoreDocument{
		ExportedAt: time.Now().UTC(),
		Prompts: map[types.PromptID][]*prompt.Version{
			"gen-handler": {
				{
					ID:       "gen-handler",
					Version:  "1.0.0",
					Provider: types.LLMProviderClaude,
					Sampling: sampling.Config{Temperature: 0.2, TopP: 0.9, Model: "claude-sonnet-4-20250514"},
					System:   "You are a code generator.",
					Template: "Generate a handler for {{endpoint}}",
				},
			},
		},
	}

	gt.NoError(t, client.SaveRegistry(ctx, doc))

	loaded, err := client.LoadRegistry(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(loaded.Prompts), 1)

	versions := loaded.Prompts["gen-handler"]
	gt.Equal(t, len(versions), 1)
	gt.Equal(t, versions[0].Version, "1.0.0")
	gt.Equal(t, versions[0].Template, "Generate a handler for {{endpoint}}")
}

func TestLoadRegistryNotFound(t *testing.T) {
	ctx := context.Background()
	client := storage.New(memory.New())

	_, err := client.LoadRegistry(ctx)
	gt.Error(t, err)
	gt.Equal(t, err, interfaces.ErrStorageKeyNotFound)
}

func TestSaveMetricsExport(t *testing.T) {
	ctx := context.Background()
	adapter := memory.New()
	client := storage.New(adapter)

	export := &metrics.Export{
		ExportedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Snapshots:  []*metrics.Snapshot{},
		Metrics:    &metrics.Metrics{TotalCalls: 0},
	}

	gt.NoError(t, client.SaveMetricsExport(ctx, export))

	// Archive key is derived from the export timestamp
	_, err := adapter.Get(ctx, "metrics/20250601T120000Z.json.gz")
	gt.NoError(t, err)
}
