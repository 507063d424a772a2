package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/cli/config"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/repository/storage"
	llmService "github.com/m-mizutani/komainu/pkg/service/llm"
	"github.com/m-mizutani/komainu/pkg/service/repro"
	"github.com/urfave/cli/v3"
)

func cmdRepro() *cli.Command {
	var (
		promptID     string
		version      string
		trials       int
		concurrency  int
		inputs       []string
		llmCfg       config.LLMConfig
		firestoreCfg config.Firestore
		storageCfg   config.Storage
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt-id",
			Aliases:     []string{"p"},
			Usage:       "Prompt ID to test",
			Required:    true,
			Destination: &promptID,
		},
		&cli.StringFlag{
			Name:        "version",
			Usage:       "Exact prompt version (default: highest active)",
			Destination: &version,
		},
		&cli.IntFlag{
			Name:        "trials",
			Aliases:     []string{"n"},
			Usage:       "Number of identical calls to run",
			Value:       5,
			Destination: &trials,
		},
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "Concurrent trial limit",
			Value:       2,
			Destination: &concurrency,
		},
		&cli.StringSliceFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Template input as key=value (repeatable)",
			Destination: &inputs,
		},
	}
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, firestoreCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:    "repro",
		Aliases: []string{"r"},
		Usage:   "Check output reproducibility of a prompt version",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			providersConfig, err := llmCfg.LoadAndValidate()
			if err != nil {
				return goerr.Wrap(err, "failed to load LLM providers config")
			}

			factory, err := llmCfg.BuildFactory(ctx, providersConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to build LLM factory")
			}

			var storageRepo *storage.Client
			if storageCfg.Configured() {
				adapter, cleanup, err := storageCfg.CreateAdapter(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to configure storage adapter")
				}
				if cleanup != nil {
					defer cleanup()
				}
				storageRepo = storage.New(adapter)
			}

			repo, err := buildRepository(ctx, &firestoreCfg, storageRepo)
			if err != nil {
				return err
			}

			target, err := resolveVersion(ctx, repo, types.PromptID(promptID), version)
			if err != nil {
				return err
			}

			tester := repro.New(llmService.NewCompletionClient(factory),
				repro.WithTrials(trials),
				repro.WithConcurrency(concurrency),
			)

			report, err := tester.Run(ctx, target, input)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
