package storage

import (
	"context"
	"time"

	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/schema"
)

// Repository persists mapping collections per dataset
type Repository interface {
	Initialize(ctx context.Context) error
	LoadMappings(ctx context.Context, dataset string) (mapping.Collection, error)
	SaveMappings(ctx context.Context, dataset string, coll mapping.Collection) error
	ListDatasets(ctx context.Context) ([]DatasetSummary, error)
	ClearDataset(ctx context.Context, dataset string) (int, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// DatasetSummary describes one dataset with stored mappings
type DatasetSummary struct {
	Name      string    `json:"name"`
	Mappings  int       `json:"mappings"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats represents database statistics
type Stats struct {
	Datasets       int                       `json:"datasets"`
	TotalMappings  int                       `json:"total_mappings"`
	TypeBreakdown  map[schema.ColumnType]int `json:"type_breakdown"`
	LastUpdated    time.Time                 `json:"last_updated"`
	DatabaseSizeMB float64                   `json:"database_size_mb"`
}

// Committer returns a mapping.Committer that saves into dataset
func Committer(repo Repository, dataset string) mapping.Committer {
	return mapping.CommitterFunc(func(ctx context.Context, coll mapping.Collection) error {
		return repo.SaveMappings(ctx, dataset, coll)
	})
}

// OpenStore loads dataset and returns a store that persists every transition back to repo
func OpenStore(ctx context.Context, repo Repository, dataset string) (*mapping.Store, error) {
	coll, err := repo.LoadMappings(ctx, dataset)
	if err != nil {
		return nil, err
	}

	return mapping.NewStore(coll, Committer(repo, dataset)), nil
}
