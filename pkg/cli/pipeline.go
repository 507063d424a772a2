package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/cli/config"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/repository/database/firestore"
	"github.com/m-mizutani/komainu/pkg/repository/database/memory"
	"github.com/m-mizutani/komainu/pkg/repository/storage"
	"github.com/m-mizutani/komainu/pkg/service/fallback"
	llmService "github.com/m-mizutani/komainu/pkg/service/llm"
	"github.com/m-mizutani/komainu/pkg/service/monitor"
	"github.com/m-mizutani/komainu/pkg/service/template"
	"github.com/m-mizutani/komainu/pkg/service/validate"
	"github.com/m-mizutani/komainu/pkg/usecase"
)

// pipelineDeps bundles the flag groups shared by commands that run the
// full call-safety pipeline.
type pipelineDeps struct {
	LLM       *config.LLMConfig
	Firestore *config.Firestore
	Storage   *config.Storage
	Policy    *config.Policy
	Notify    *config.Notify
}

// buildUseCases wires the complete pipeline from CLI configuration.
// The returned cleanup releases storage handles and must always be
// called, even on error paths after a successful return.
func buildUseCases(ctx context.Context, deps *pipelineDeps) (*usecase.UseCases, func(), error) {
	cleanup := func() {}

	providersConfig, err := deps.LLM.LoadAndValidate()
	if err != nil {
		return nil, cleanup, goerr.Wrap(err, "failed to load LLM providers config")
	}

	factory, err := deps.LLM.BuildFactory(ctx, providersConfig)
	if err != nil {
		return nil, cleanup, goerr.Wrap(err, "failed to build LLM factory")
	}

	primary := llmService.NewCompletionClient(factory)

	var secondary interfaces.CompletionClient
	if providersConfig.Secondary.Enabled {
		secondary = llmService.NewCompletionClient(factory, llmService.WithSecondary())
	}

	// Storage backend for registry flushes and metrics archives
	var storageRepo *storage.Client
	if deps.Storage.Configured() {
		adapter, release, err := deps.Storage.CreateAdapter(ctx)
		if err != nil {
			return nil, cleanup, goerr.Wrap(err, "failed to configure storage adapter")
		}
		if release != nil {
			cleanup = release
		}
		storageRepo = storage.New(adapter)
	}

	repo, err := buildRepository(ctx, deps.Firestore, storageRepo)
	if err != nil {
		return nil, cleanup, err
	}

	retryStrategy, err := deps.Policy.RetryStrategy()
	if err != nil {
		return nil, cleanup, goerr.Wrap(err, "failed to configure retry strategy")
	}

	validator := validate.New()

	monitorOpts := []monitor.Option{
		monitor.WithThresholds(deps.Policy.Thresholds()),
	}
	if deps.Notify != nil && deps.Notify.Configured() {
		notifier, err := deps.Notify.Configure()
		if err != nil {
			return nil, cleanup, goerr.Wrap(err, "failed to configure slack notifier")
		}
		monitorOpts = append(monitorOpts, monitor.WithNotifier(notifier))
	}

	chainOpts := []fallback.Option{
		fallback.WithTemplateGenerator(template.New()),
	}
	if secondary != nil {
		chainOpts = append(chainOpts, fallback.WithSecondaryClient(secondary))
	}

	ucOpts := []usecase.Option{
		usecase.WithPromptRepository(repo),
		usecase.WithCompletionClient(primary),
		usecase.WithRetryStrategy(retryStrategy),
		usecase.WithCircuitBreaker(deps.Policy.CircuitBreaker()),
		usecase.WithValidator(validator),
		usecase.WithFallbackChain(fallback.New(repo, primary, validator, chainOpts...)),
		usecase.WithMonitor(monitor.New(monitorOpts...)),
	}
	if storageRepo != nil {
		ucOpts = append(ucOpts, usecase.WithStorageRepository(storageRepo))
	}

	return usecase.New(ucOpts...), cleanup, nil
}

// resolveVersion returns the requested exact version or the highest
// active one.
func resolveVersion(ctx context.Context, repo interfaces.PromptRepository, id types.PromptID, version string) (*prompt.Version, error) {
	if version != "" {
		return repo.GetVersion(ctx, id, version)
	}
	return repo.Get(ctx, id)
}

// buildRepository selects Firestore when configured, otherwise an
// in-memory registry backed by the storage adapter for persistence.
func buildRepository(ctx context.Context, firestoreCfg *config.Firestore, storageRepo *storage.Client) (interfaces.PromptRepository, error) {
	firestoreCfg.SetDefaults()
	if firestoreCfg.IsValid() {
		client, err := firestore.New(ctx, firestoreCfg.ProjectID, firestoreCfg.DatabaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Firestore client")
		}
		return client, nil
	}

	opts := []memory.Option{}
	if storageRepo != nil {
		opts = append(opts, memory.WithFlushStorage(storageRepo))
	}
	return memory.New(opts...), nil
}
