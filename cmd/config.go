package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/config"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the current active configuration including all settings from file, environment variables, and command-line flags. The API token is masked.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the configuration as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			return runConfig(cmd.Root().Writer, cfg, cmd.Bool("json"))
		},
	}
}

func runConfig(w io.Writer, cfg *config.Config, asJSON bool) error {
	if asJSON || cfg.Debug.Enabled {
		masked := *cfg
		masked.Analytics.APIToken = cfg.Analytics.MaskedToken()

		jsonData, err := json.MarshalIndent(masked, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}

		if asJSON {
			_, err = fmt.Fprintln(w, string(jsonData))
			return err
		}

		defer fmt.Fprintf(w, "\nRaw Configuration (JSON):\n%s\n", jsonData)
	}

	fmt.Fprintln(w, "Active Configuration:")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Dataset: %s\n", cfg.Dataset)

	fmt.Fprintln(w, "\nDatabase:")
	fmt.Fprintf(w, "  Path: %s\n", cfg.Database.Path)
	fmt.Fprintf(w, "  Max Connections: %d\n", cfg.Database.MaxConnections)
	fmt.Fprintf(w, "  Query Timeout: %s\n", cfg.Database.QueryTimeout)

	fmt.Fprintln(w, "\nSchema:")
	fmt.Fprintf(w, "  Blobs: %d\n", cfg.Schema.Blobs)
	fmt.Fprintf(w, "  Doubles: %d\n", cfg.Schema.Doubles)
	fmt.Fprintf(w, "  Indexes: %d\n", cfg.Schema.Indexes)

	fmt.Fprintln(w, "\nAnalytics:")
	fmt.Fprintf(w, "  Base URL: %s\n", cfg.Analytics.BaseURL)
	fmt.Fprintf(w, "  Account ID: %s\n", orNotSet(cfg.Analytics.AccountID))
	fmt.Fprintf(w, "  API Token: %s\n", cfg.Analytics.MaskedToken())
	fmt.Fprintf(w, "  Timeout: %s\n", cfg.Analytics.Timeout)

	fmt.Fprintln(w, "\nCache:")
	fmt.Fprintf(w, "  Disabled: %t\n", cfg.Cache.Disabled)
	fmt.Fprintf(w, "  Directory: %s\n", cfg.Cache.Directory)
	fmt.Fprintf(w, "  Max Size: %d MB\n", cfg.Cache.MaxSizeMB)
	fmt.Fprintf(w, "  TTL: %s\n", cfg.Cache.TTL)
	fmt.Fprintf(w, "  Cleanup Frequency: %s\n", cfg.Cache.CleanupFreq)

	fmt.Fprintln(w, "\nServer:")
	fmt.Fprintf(w, "  Listen Address: %s\n", cfg.Server.ListenAddr)
	fmt.Fprintf(w, "  CORS Origins: %s\n", strings.Join(cfg.Server.CORSAllowedOrigins, ", "))
	fmt.Fprintf(w, "  Rate Limit: %.1f req/s (burst %d)\n", cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Fprintf(w, "  File: %s\n", cfg.Logging.File)
	}

	fmt.Fprintf(w, "  Add Source: %t\n", cfg.Logging.AddSource)

	fmt.Fprintln(w, "\nDebug:")
	fmt.Fprintf(w, "  Enabled: %t\n", cfg.Debug.Enabled)
	fmt.Fprintf(w, "  Verbose: %t\n", cfg.Debug.Verbose)
	fmt.Fprintf(w, "  Trace API: %t\n", cfg.Debug.TraceAPI)

	return nil
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}

	return s
}
