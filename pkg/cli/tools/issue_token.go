package tools

import (
	"context"
	"fmt"

	"github.com/m-mizutani/komainu/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

// CmdIssueToken returns the issue-token command
func CmdIssueToken() *cli.Command {
	var (
		subject string
		authCfg config.Auth
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "subject",
			Aliases:     []string{"s"},
			Usage:       "Subject to embed in the token",
			Required:    true,
			Destination: &subject,
		},
	}
	flags = append(flags, authCfg.Flags()...)

	return &cli.Command{
		Name:  "issue-token",
		Usage: "Issue an API bearer token",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tokens, err := authCfg.Configure()
			if err != nil {
				return err
			}

			token, err := tokens.Sign(subject)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}
