package domain

import "time"

// Dataset represents a named, versioned logical corpus definition.
// Records are immutable once created. The same (name, version) pair may be
// registered more than once; each registration is a distinct snapshot with
// its own id.
type Dataset struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null;index:idx_datasets_name" json:"name"`
	Version   string    `gorm:"type:text;not null" json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Dataset.
func (Dataset) TableName() string {
	return "datasets"
}
