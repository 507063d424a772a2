package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/cli/config"
	server "github.com/m-mizutani/komainu/pkg/controller/http"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		addr         string
		llmCfg       config.LLMConfig
		firestoreCfg config.Firestore
		storageCfg   config.Storage
		policyCfg    config.Policy
		notifyCfg    config.Notify
		authCfg      config.Auth
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Sources:     cli.EnvVars("KOMAINU_ADDR"),
			Usage:       "Listen address (default: 127.0.0.1:8080)",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
	}
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, firestoreCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)
	flags = append(flags, notifyCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the call-safety API server",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := ctxlog.From(ctx)
			logger.Info("starting server", "addr", addr)

			uc, cleanup, err := buildUseCases(ctx, &pipelineDeps{
				LLM:       &llmCfg,
				Firestore: &firestoreCfg,
				Storage:   &storageCfg,
				Policy:    &policyCfg,
				Notify:    &notifyCfg,
			})
			if err != nil {
				return err
			}
			defer cleanup()

			serverOptions := []server.Options{
				server.WithCallUseCases(uc),
				server.WithRegistryUseCases(uc),
				server.WithMetricsUseCases(uc),
			}
			if authCfg.Enabled() {
				tokens, err := authCfg.Configure()
				if err != nil {
					return goerr.Wrap(err, "failed to configure token service")
				}
				serverOptions = append(serverOptions, server.WithTokenService(tokens))
			}

			httpServer := http.Server{
				Addr:              addr,
				Handler:           server.New(serverOptions...),
				ReadTimeout:       30 * time.Second,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			errCh := make(chan error, 1)
			go func() {
				defer close(errCh)
				ctxlog.From(ctx).Info("server started", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				ctxlog.From(ctx).Info("shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}
}
