package domain

import (
	"strings"
	"time"
)

// IndexGeneration is one concrete build of an index over a dataset+config
// pair. Status and UpdatedAt are the only mutable fields; everything else is
// fixed at creation.
type IndexGeneration struct {
	ID             string         `gorm:"type:text;primaryKey" json:"id"`
	DatasetID      string         `gorm:"type:text;not null;index:idx_generations_dataset" json:"dataset_id"`
	ConfigID       string         `gorm:"type:text;not null" json:"config_id"`
	Status         LifecycleState `gorm:"type:text;not null;index:idx_generations_status;default:draft" json:"status"`
	CollectionName string         `gorm:"type:text;not null;uniqueIndex:idx_generations_collection" json:"collection_name"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for IndexGeneration.
func (IndexGeneration) TableName() string {
	return "index_generations"
}

// CollectionNameFor derives the physical collection name for a generation id.
// The "idx_" prefix keeps the name letter-leading, which every engine we
// target requires, and stripping dashes keeps it within common length limits.
func CollectionNameFor(generationID string) string {
	return "idx_" + strings.ReplaceAll(generationID, "-", "")
}
