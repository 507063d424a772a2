package cli

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/cli/config"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdCall() *cli.Command {
	var (
		promptID     string
		version      string
		inputs       []string
		llmCfg       config.LLMConfig
		firestoreCfg config.Firestore
		storageCfg   config.Storage
		policyCfg    config.Policy
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt-id",
			Aliases:     []string{"p"},
			Usage:       "Prompt ID to invoke",
			Required:    true,
			Destination: &promptID,
		},
		&cli.StringFlag{
			Name:        "version",
			Usage:       "Exact prompt version (default: highest active)",
			Destination: &version,
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
	flags = append(flags, policyCfg.Flags()...)

	return &cli.Command{
		Name:    "call",
		Aliases: []string{"c"},
		Usage:   "Run one guarded completion call and print the result",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			uc, cleanup, err := buildUseCases(ctx, &pipelineDeps{
				LLM:       &llmCfg,
				Firestore: &firestoreCfg,
				Storage:   &storageCfg,
				Policy:    &policyCfg,
			})
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := uc.CallWithSafety(ctx, &interfaces.CallRequest{
				PromptID: types.PromptID(promptID),
				Version:  version,
				Input:    input,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}

// parseInputs converts key=value pairs into the template input map
func parseInputs(pairs []string) (map[string]string, error) {
	input := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, goerr.New("input must be key=value", goerr.V("input", pair))
		}
		input[key] = value
	}
	return input, nil
}
