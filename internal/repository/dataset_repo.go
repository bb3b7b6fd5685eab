package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomw/raglift/internal/domain"
	"gorm.io/gorm"
)

// DatasetRepository handles dataset record operations.
type DatasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository creates a new DatasetRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DatasetRepository: repository instance bound to db.
func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Create inserts a new dataset record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - dataset: dataset record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *DatasetRepository) Create(ctx context.Context, dataset *domain.Dataset) error {
	if err := r.db.WithContext(ctx).Create(dataset).Error; err != nil {
		return fmt.Errorf("insert dataset %s: %w", dataset.ID, err)
	}
	return nil
}

// GetByID retrieves a dataset by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: dataset ID.
// Returns:
//   - *domain.Dataset: dataset record if found.
//   - error: domain.ErrDatasetNotFound if absent, otherwise a store error.
func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	var dataset domain.Dataset
	if err := r.db.WithContext(ctx).First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dataset %s: %w", id, domain.ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("lookup dataset %s: %w", id, err)
	}
	return &dataset, nil
}

// ListByName retrieves every dataset sharing a logical name, one record per
// registered version (or duplicate registration).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: logical dataset name.
// Returns:
//   - []domain.Dataset: matching records; empty when none exist.
//   - error: non-nil if the query fails.
func (r *DatasetRepository) ListByName(ctx context.Context, name string) ([]domain.Dataset, error) {
	var datasets []domain.Dataset
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at ASC").
		Find(&datasets).Error; err != nil {
		return nil, fmt.Errorf("list datasets named %q: %w", name, err)
	}
	return datasets, nil
}
