package cmd

import (
	"context"
	"fmt"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/storage"
)

// initializeStorage opens the mapping database and applies pending migrations
func initializeStorage(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	cfg.ExpandAllPaths()

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	repo, err := storage.NewDuckDBRepositoryFromConfig(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	if err := repo.Initialize(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return repo, nil
}

// ensureStorage returns repo unchanged when tests supply one, otherwise it
// opens the configured database. The returned func closes what was opened.
func ensureStorage(ctx context.Context, cfg *config.Config, repo storage.Repository) (storage.Repository, func(), error) {
	if repo != nil {
		return repo, func() {}, nil
	}

	repo, err := initializeStorage(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return repo, func() {
		if err := repo.Close(); err != nil {
			logging.WithError(err).Warn("Failed to close database")
		}
	}, nil
}
