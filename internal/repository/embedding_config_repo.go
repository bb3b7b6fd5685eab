package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomw/raglift/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingConfigRepository handles embedding configuration records.
type EmbeddingConfigRepository struct {
	db *gorm.DB
}

// NewEmbeddingConfigRepository creates a new EmbeddingConfigRepository.
func NewEmbeddingConfigRepository(db *gorm.DB) *EmbeddingConfigRepository {
	return &EmbeddingConfigRepository{db: db}
}

// CreateIfAbsent inserts the config unless a record with its id already
// exists. The content-addressed primary key makes the conflict target the id
// itself, so two concurrent registrations of the same triple cannot leave two
// rows behind.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cfg: config record with the derived id set.
// Returns:
//   - error: non-nil if the insert fails.
func (r *EmbeddingConfigRepository) CreateIfAbsent(ctx context.Context, cfg *domain.EmbeddingConfig) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(cfg).Error; err != nil {
		return fmt.Errorf("insert embedding config %s: %w", cfg.ID, err)
	}
	return nil
}

// GetByID retrieves an embedding config by its content-addressed ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: config ID.
// Returns:
//   - *domain.EmbeddingConfig: config record if found.
//   - error: domain.ErrConfigNotFound if absent, otherwise a store error.
func (r *EmbeddingConfigRepository) GetByID(ctx context.Context, id string) (*domain.EmbeddingConfig, error) {
	var cfg domain.EmbeddingConfig
	if err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("embedding config %s: %w", id, domain.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("lookup embedding config %s: %w", id, err)
	}
	return &cfg, nil
}

// CountByID counts stored records for a config id; used to verify
// registration idempotency.
func (r *EmbeddingConfigRepository) CountByID(ctx context.Context, id string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.EmbeddingConfig{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count embedding config %s: %w", id, err)
	}
	return count, nil
}
