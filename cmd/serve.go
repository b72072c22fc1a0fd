package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/server"
	"github.com/kyleking/ae-columns/internal/storage"
)

// ServeCommand runs the HTTP API
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve mappings, pastes and queries over HTTP",
		Description: `Start the HTTP API. Mapping routes live under /v1/datasets/{dataset}/mappings
and templated queries are posted to /v1/query. Stops gracefully on SIGINT or SIGTERM.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "address to listen on (defaults to server.listen_addr)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			if addr := cmd.String("listen"); addr != "" {
				cfg.Server.ListenAddr = addr
			}

			return runServe(ctx, cfg, nil)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, repo storage.Repository) error {
	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	executor, closeExecutor := newExecutor(cfg, false)
	defer closeExecutor()

	return newServer(cfg, repo, executor).Run(ctx, cfg.Server.ListenAddr)
}

func newServer(cfg *config.Config, repo storage.Repository, executor analytics.Executor) *server.Server {
	return server.New(server.Options{
		Repository:         repo,
		Provider:           providerFromConfig(cfg),
		Executor:           executor,
		Credentials:        analytics.CredentialsFromConfig(cfg.Analytics),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
	})
}
