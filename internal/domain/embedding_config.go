package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmbeddingConfig describes how text is chunked and embedded when building an
// index generation. The id is content-addressed: registering the same
// (model, chunk size, chunk overlap) triple always yields the same id, which
// makes registration idempotent.
type EmbeddingConfig struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	ModelName    string    `gorm:"type:text;not null" json:"model_name"`
	ChunkSize    int       `gorm:"not null" json:"chunk_size"`
	ChunkOverlap int       `gorm:"not null" json:"chunk_overlap"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for EmbeddingConfig.
func (EmbeddingConfig) TableName() string {
	return "embedding_configs"
}

// EmbeddingConfigID derives the content-addressed id for a configuration
// triple. UUIDv5 over the DNS namespace keeps the id stable across processes
// and collision-resistant within the triple space.
func EmbeddingConfigID(modelName string, chunkSize, chunkOverlap int) string {
	key := fmt.Sprintf("%s-%d-%d", modelName, chunkSize, chunkOverlap)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()
}
