package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/schema"
)

// Set at build time via -ldflags
var version = "dev"

type configKey struct{}

// NewApp builds the root command
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "ae-columns",
		Usage:   "Give Analytics Engine columns friendly names and run templated queries",
		Version: version,
		Description: `ae-columns keeps friendly names for the positional blob, double and index
columns of an Analytics Engine dataset in a local DuckDB database. Names can be
set one at a time or pasted as a comma-separated list, and SQL templates with
{{name}} placeholders can be rendered and run against the SQL API.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dataset",
				Aliases: []string{"d"},
				Usage:   "dataset whose mappings are read and written",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "path to the mapping database",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "directory for cached query results",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable verbose output",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug mode",
			},
		},
		Before: setup,
		After: func(_ context.Context, _ *cli.Command) error {
			return logging.GetLogger().Close()
		},
		Commands: []*cli.Command{
			MappingCommand(),
			SchemaCommand(),
			DatasetsCommand(),
			QueryCommand(),
			ServeCommand(),
			StatsCommand(),
			CacheCommand(),
			ConfigCommand(),
		},
	}
}

// Execute runs the CLI until completion or an interrupt
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewApp().Run(ctx, os.Args)
}

// setup loads configuration with flag overrides and initializes logging
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	overrides := make(map[string]any)

	for _, name := range []string{"dataset", "db-path", "cache-dir", "log-level"} {
		if cmd.IsSet(name) {
			overrides[name] = cmd.String(name)
		}
	}

	for _, name := range []string{"verbose", "debug"} {
		if cmd.IsSet(name) {
			overrides[name] = cmd.Bool(name)
		}
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		logging.SetupFallbackLogger()
		return ctx, errors.Wrap(err, errors.ErrTypeConfig, "failed to load configuration")
	}

	if cfg.Debug.Enabled || cfg.Debug.Verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
		logging.WithError(err).Warn("Falling back to stderr logging")
	}

	logging.WithField("dataset", cfg.Dataset).Debug("Configuration loaded")

	return withConfig(ctx, cfg), nil
}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// getConfigFromContext returns the configuration stored by setup, loading it
// directly when the command runs outside the root
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
		return cfg
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.WithError(err).Debug("Failed to load configuration")
		return nil
	}

	return cfg
}

// requireConfig is getConfigFromContext for commands that cannot run without one
func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := getConfigFromContext(ctx)
	if cfg == nil {
		return nil, errors.NewConfigError("failed to load configuration", "")
	}

	return cfg, nil
}

func providerFromConfig(cfg *config.Config) schema.Provider {
	return schema.AnalyticsEngine(cfg.Schema.Blobs, cfg.Schema.Doubles, cfg.Schema.Indexes)
}
