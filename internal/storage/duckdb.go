package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/schema"
)

const defaultQueryTimeout = 30 * time.Second

// DuckDBRepository implements the Repository interface using DuckDB
type DuckDBRepository struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

// NewDuckDBRepository creates a new DuckDB repository instance with connection pooling
func NewDuckDBRepository(dbPath string) (*DuckDBRepository, error) {
	return NewDuckDBRepositoryWithTimeout(dbPath, defaultQueryTimeout)
}

// NewDuckDBRepositoryWithTimeout bounds every statement by queryTimeout
func NewDuckDBRepositoryWithTimeout(dbPath string, queryTimeout time.Duration) (*DuckDBRepository, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}

	return &DuckDBRepository{
		db:           db,
		path:         dbPath,
		queryTimeout: queryTimeout,
	}, nil
}

// Initialize creates the database schema using migrations
func (r *DuckDBRepository) Initialize(ctx context.Context) error {
	return NewMigrationManager(r.db).MigrateUp(ctx)
}

// MigrationStatus reports which schema migrations are applied
func (r *DuckDBRepository) MigrationStatus(ctx context.Context) (map[int]MigrationStatus, error) {
	return NewMigrationManager(r.db).GetMigrationStatus(ctx)
}

func (r *DuckDBRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

// LoadMappings returns the dataset's mappings in stored order.
// A dataset with no rows yields an empty collection.
func (r *DuckDBRepository) LoadMappings(ctx context.Context, dataset string) (mapping.Collection, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT source_column, friendly_name, column_type, description
		FROM column_mappings
		WHERE dataset = ?
		ORDER BY position`, dataset)
	if err != nil {
		return mapping.Collection{}, fmt.Errorf("failed to load mappings for %s: %w", dataset, err)
	}
	defer rows.Close()

	var mappings []mapping.ColumnMapping

	for rows.Next() {
		var (
			m          mapping.ColumnMapping
			columnType string
		)

		if err := rows.Scan(&m.SourceColumn, &m.FriendlyName, &columnType, &m.Description); err != nil {
			return mapping.Collection{}, fmt.Errorf("failed to scan mapping: %w", err)
		}

		m.ColumnType = schema.ColumnType(columnType)
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return mapping.Collection{}, fmt.Errorf("failed to iterate mappings: %w", err)
	}

	return mapping.NewCollection(mappings...), nil
}

// SaveMappings replaces the dataset's stored mappings with coll in one transaction.
// Rows for columns no longer mapped are deleted and the rest are upserted, so
// a key is never deleted and re-inserted within the same transaction.
func (r *DuckDBRepository) SaveMappings(ctx context.Context, dataset string, coll mapping.Collection) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	columns := coll.Columns()

	deleteSQL := "DELETE FROM column_mappings WHERE dataset = ?"
	args := []any{dataset}

	if len(columns) > 0 {
		deleteSQL += " AND source_column NOT IN (" + placeholders(len(columns)) + ")"
		for _, col := range columns {
			args = append(args, col)
		}
	}

	if _, err := tx.ExecContext(ctx, deleteSQL, args...); err != nil {
		return fmt.Errorf("failed to delete stale mappings: %w", err)
	}

	upsertSQL := `
	INSERT INTO column_mappings (
		dataset, position, source_column, friendly_name, column_type, description, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (dataset, source_column) DO UPDATE SET
		position = excluded.position,
		friendly_name = excluded.friendly_name,
		column_type = excluded.column_type,
		description = excluded.description,
		updated_at = excluded.updated_at`

	now := time.Now().UTC()

	for i, m := range coll.Mappings() {
		if _, err := tx.ExecContext(ctx, upsertSQL,
			dataset, i, m.SourceColumn, m.FriendlyName, string(m.ColumnType), m.Description, now,
		); err != nil {
			return fmt.Errorf("failed to save mapping for %s: %w", m.SourceColumn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mappings: %w", err)
	}

	logging.WithFields(map[string]any{
		"dataset":  dataset,
		"mappings": coll.Len(),
	}).Debug("saved mappings")

	return nil
}

// ListDatasets returns every dataset with at least one stored mapping
func (r *DuckDBRepository) ListDatasets(ctx context.Context) ([]DatasetSummary, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT dataset, COUNT(*), MAX(updated_at)
		FROM column_mappings
		GROUP BY dataset
		ORDER BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []DatasetSummary

	for rows.Next() {
		var d DatasetSummary
		if err := rows.Scan(&d.Name, &d.Mappings, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}

		datasets = append(datasets, d)
	}

	return datasets, rows.Err()
}

// ClearDataset removes all mappings for dataset and returns how many were deleted
func (r *DuckDBRepository) ClearDataset(ctx context.Context, dataset string) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, "DELETE FROM column_mappings WHERE dataset = ?", dataset)
	if err != nil {
		return 0, fmt.Errorf("failed to clear dataset %s: %w", dataset, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared mappings: %w", err)
	}

	return int(n), nil
}

// GetStats returns database statistics
func (r *DuckDBRepository) GetStats(ctx context.Context) (*Stats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	stats := &Stats{TypeBreakdown: make(map[schema.ColumnType]int)}

	var lastUpdated sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT dataset), COUNT(*), MAX(updated_at)
		FROM column_mappings`).Scan(&stats.Datasets, &stats.TotalMappings, &lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping counts: %w", err)
	}

	if lastUpdated.Valid {
		stats.LastUpdated = lastUpdated.Time
	}

	if info, err := os.Stat(r.path); err == nil {
		stats.DatabaseSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	typeRows, err := r.db.QueryContext(ctx,
		"SELECT column_type, COUNT(*) FROM column_mappings GROUP BY column_type ORDER BY column_type")
	if err != nil {
		return nil, fmt.Errorf("failed to get type breakdown: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var (
			columnType string
			count      int
		)

		if err := typeRows.Scan(&columnType, &count); err != nil {
			return nil, err
		}

		stats.TypeBreakdown[schema.ColumnType(columnType)] = count
	}

	return stats, typeRows.Err()
}

// Close closes the database connection
func (r *DuckDBRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}

	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
