package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/cache"
	"github.com/kyleking/ae-columns/internal/formatter"
	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/storage"
)

// migrationReporter is implemented by repositories that track schema migrations
type migrationReporter interface {
	MigrationStatus(ctx context.Context) (map[int]storage.MigrationStatus, error)
}

func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:        "stats",
		Usage:       "Display database statistics",
		Description: `Show statistics about the local mapping database including datasets, mappings per column type, last update, database size and result cache usage.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			repo, closeRepo, err := ensureStorage(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer closeRepo()

			fc, err := openResultCache(cfg, false)
			if err != nil {
				logging.WithError(err).Warn("Result cache unavailable")
			}

			if fc != nil {
				defer fc.Close()
			}

			return runStatsWithStorage(ctx, cmd.Root().Writer, repo, fc)
		},
	}
}

// runStatsWithStorage prints database statistics, followed by result cache
// usage when rc is not nil
func runStatsWithStorage(ctx context.Context, w io.Writer, repo storage.Repository, rc *cache.FileCache) error {
	stats, err := repo.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	f := formatter.NewFormatter()

	fmt.Fprintf(w, "Database Statistics\n")
	fmt.Fprintf(w, "===================\n\n")

	if err := f.FormatStats(w, stats, schemaVersion(ctx, repo)); err != nil {
		return err
	}

	if rc == nil {
		return nil
	}

	cacheStats, err := rc.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache statistics: %w", err)
	}

	fmt.Fprintf(w, "\nResult Cache\n")
	fmt.Fprintf(w, "============\n\n")

	return f.FormatCacheStats(w, cacheStats)
}

// schemaVersion returns the highest applied migration, or 0 when unknown
func schemaVersion(ctx context.Context, repo storage.Repository) int {
	reporter, ok := repo.(migrationReporter)
	if !ok {
		return 0
	}

	status, err := reporter.MigrationStatus(ctx)
	if err != nil {
		return 0
	}

	version := 0

	for v, s := range status {
		if s.Applied {
			version = max(version, v)
		}
	}

	return version
}
