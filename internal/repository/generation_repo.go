package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomw/raglift/internal/domain"
	"gorm.io/gorm"
)

// GenerationRepository handles index generation records.
type GenerationRepository struct {
	db *gorm.DB
}

// NewGenerationRepository creates a new GenerationRepository.
func NewGenerationRepository(db *gorm.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Create inserts a new generation record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - gen: generation record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *GenerationRepository) Create(ctx context.Context, gen *domain.IndexGeneration) error {
	if err := r.db.WithContext(ctx).Create(gen).Error; err != nil {
		return fmt.Errorf("insert generation %s: %w", gen.ID, err)
	}
	return nil
}

// GetByID retrieves a generation by its logical ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: generation ID.
// Returns:
//   - *domain.IndexGeneration: generation record if found.
//   - error: domain.ErrGenerationNotFound if absent, otherwise a store error.
func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*domain.IndexGeneration, error) {
	var gen domain.IndexGeneration
	if err := r.db.WithContext(ctx).First(&gen, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("generation %s: %w", id, domain.ErrGenerationNotFound)
		}
		return nil, fmt.Errorf("lookup generation %s: %w", id, err)
	}
	return &gen, nil
}

// UpdateStatus re-resolves the generation by id and updates its status and
// updated_at in one statement. The affected-row count lets the caller detect
// a record that vanished between its lookup and this update; the returned
// timestamp is exactly what was persisted, so callers never re-derive it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: generation ID.
//   - status: new lifecycle state.
// Returns:
//   - int64: number of rows updated (0 or 1).
//   - time.Time: the updated_at value written.
//   - error: non-nil if the update fails.
func (r *GenerationRepository) UpdateStatus(ctx context.Context, id string, status domain.LifecycleState) (int64, time.Time, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.IndexGeneration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, time.Time{}, fmt.Errorf("update generation %s to %s: %w", id, status, res.Error)
	}
	return res.RowsAffected, now, nil
}

// ListProductionByDataset retrieves every PRODUCTION generation of a dataset,
// optionally excluding one generation id. Used by the demotion scan.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - datasetID: dataset whose generations to scan.
//   - excludeID: generation id to skip; empty excludes nothing.
// Returns:
//   - []domain.IndexGeneration: matching records.
//   - error: non-nil if the query fails.
func (r *GenerationRepository) ListProductionByDataset(ctx context.Context, datasetID, excludeID string) ([]domain.IndexGeneration, error) {
	query := r.db.WithContext(ctx).
		Where("dataset_id = ? AND status = ?", datasetID, domain.StateProduction)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var gens []domain.IndexGeneration
	if err := query.Find(&gens).Error; err != nil {
		return nil, fmt.Errorf("scan production generations of dataset %s: %w", datasetID, err)
	}
	return gens, nil
}

// FindLatestProduction returns the most recently promoted PRODUCTION
// generation across a set of dataset ids, or nil when none exists. Ties on
// updated_at break deterministically by generation id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - datasetIDs: candidate dataset ids (all versions of one logical name).
// Returns:
//   - *domain.IndexGeneration: winning generation, nil on a soft miss.
//   - error: non-nil if the query fails.
func (r *GenerationRepository) FindLatestProduction(ctx context.Context, datasetIDs []string) (*domain.IndexGeneration, error) {
	if len(datasetIDs) == 0 {
		return nil, nil
	}

	var gen domain.IndexGeneration
	err := r.db.WithContext(ctx).
		Where("status = ? AND dataset_id IN ?", domain.StateProduction, datasetIDs).
		Order("updated_at DESC").
		Order("id ASC").
		First(&gen).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve production generation: %w", err)
	}
	return &gen, nil
}

// ListByDataset retrieves all generations of a dataset ordered by creation.
func (r *GenerationRepository) ListByDataset(ctx context.Context, datasetID string) ([]domain.IndexGeneration, error) {
	var gens []domain.IndexGeneration
	if err := r.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("created_at ASC").
		Find(&gens).Error; err != nil {
		return nil, fmt.Errorf("list generations of dataset %s: %w", datasetID, err)
	}
	return gens, nil
}
