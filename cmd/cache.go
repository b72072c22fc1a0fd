package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/cache"
	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/errors"
)

// CacheCommand manages the on-disk query result cache
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage cached query results",
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Remove every cached result",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withResultCache(ctx, func(fc *cache.FileCache) error {
						return runCacheClear(ctx, cmd.Root().Writer, fc)
					})
				},
			},
			{
				Name:  "prune",
				Usage: "Remove expired results",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withResultCache(ctx, func(fc *cache.FileCache) error {
						return runCachePrune(ctx, cmd.Root().Writer, fc)
					})
				},
			},
		},
	}
}

// openResultCache opens the configured cache, or returns nil when caching is
// disabled. Background cleanup runs only when background is set.
func openResultCache(cfg *config.Config, background bool) (*cache.FileCache, error) {
	if cfg.Cache.Disabled {
		return nil, nil
	}

	ttl, cleanupFreq := cfg.Cache.Durations()
	if !background {
		cleanupFreq = 0
	}

	fc, err := cache.NewFileCache(config.ExpandPath(cfg.Cache.Directory), cfg.Cache.MaxSizeMB, ttl, cleanupFreq)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeFileSystem, "failed to open result cache")
	}

	return fc, nil
}

func withResultCache(ctx context.Context, fn func(*cache.FileCache) error) error {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	fc, err := openResultCache(cfg, false)
	if err != nil {
		return err
	}

	if fc == nil {
		return errors.New(errors.ErrTypeConfig, "result cache is disabled").
			WithSuggestion("Unset AE_COLUMNS_CACHE_DISABLED or cache.disabled in the config file")
	}
	defer fc.Close()

	return fn(fc)
}

func runCacheClear(ctx context.Context, w io.Writer, fc *cache.FileCache) error {
	stats, err := fc.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if err := fc.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintf(w, "Removed %d cached result(s).\n", stats.Entries)

	return nil
}

func runCachePrune(ctx context.Context, w io.Writer, fc *cache.FileCache) error {
	removed, err := fc.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}

	fmt.Fprintf(w, "Removed %d expired result(s).\n", removed)

	return nil
}
