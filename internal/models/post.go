package models

import "time"

// Post status values.
const (
	// PostStatusPending marks a post waiting to be published.
	PostStatusPending = "pending"
	// PostStatusPublished marks a post accepted by the social API.
	PostStatusPublished = "published"
	// PostStatusFailed marks a post whose publish attempts failed.
	PostStatusFailed = "failed"
)

// Post represents one composed social media post derived from an article.
type Post struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ArticleID uint64   `gorm:"not null;uniqueIndex"` // Source article ID.
	Article   *Article `gorm:"foreignKey:ArticleID"` // Source article.

	Text   string `gorm:"type:text;not null"`                   // Bounded-length post text.
	Status string `gorm:"type:text;not null;default:'pending'"` // Publish lifecycle status.

	RemoteID    string     `gorm:"type:text"` // ID assigned by the social API.
	PublishedAt *time.Time // Time the social API accepted the post.

	Attempts  int    `gorm:"not null;default:0"` // Publish attempts so far.
	LastError string `gorm:"type:text"`          // Last publish error, empty on success.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
