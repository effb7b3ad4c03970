package models

import "time"

// Feed represents one subscribed RSS/Atom source.
type Feed struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title string `gorm:"type:text"`                      // Display title.
	URL   string `gorm:"type:text;not null;uniqueIndex"` // Feed URL.

	Enabled bool `gorm:"not null;default:true"` // Whether the syncer polls this feed.

	LastSyncedAt *time.Time // Last successful sync time.
	LastError    string     `gorm:"type:text"` // Last sync error, empty on success.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
