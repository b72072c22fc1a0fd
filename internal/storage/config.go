package storage

import (
	"fmt"
	"time"

	"github.com/kyleking/ae-columns/internal/config"
)

// NewDuckDBRepositoryFromConfig creates a new DuckDB repository with settings from config
func NewDuckDBRepositoryFromConfig(cfg *config.DatabaseConfig) (*DuckDBRepository, error) {
	queryTimeout, err := time.ParseDuration(cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid query_timeout: %w", err)
	}

	repo, err := NewDuckDBRepositoryWithTimeout(config.ExpandPath(cfg.Path), queryTimeout)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		repo.db.SetMaxOpenConns(cfg.MaxConnections)
		repo.db.SetMaxIdleConns(cfg.MaxConnections)
	}

	return repo, nil
}
