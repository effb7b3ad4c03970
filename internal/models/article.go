package models

import (
	"time"

	"gorm.io/datatypes"
)

// Article represents one ingested feed item.
type Article struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FeedID uint64 `gorm:"index;not null"`    // Source feed ID.
	Feed   *Feed  `gorm:"foreignKey:FeedID"` // Source feed.

	GUID    string `gorm:"type:text;not null;uniqueIndex"` // Feed item GUID.
	Title   string `gorm:"type:text;not null"`             // Item title.
	Link    string `gorm:"type:text"`                      // Item link.
	Summary string `gorm:"type:text"`                      // Item summary or description.

	PublishedAt *time.Time // Publication time reported by the feed.

	Score    float64 `gorm:"not null;default:0"`     // Relevance score.
	Relevant bool    `gorm:"not null;default:false"` // Whether the score met the threshold.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Free-form diagnostic payload.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
