package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedcaster/feedcaster/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps the article and post queries used by the syncer, publisher,
// and API handlers.
type Store struct {
	db *gorm.DB
}

// New constructs a Store backed by GORM.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UpsertArticle inserts the article or, when the GUID already exists,
// refreshes its mutable fields.
func (s *Store) UpsertArticle(ctx context.Context, article *models.Article) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if article == nil {
		return fmt.Errorf("store: article is nil")
	}
	if strings.TrimSpace(article.GUID) == "" {
		return fmt.Errorf("store: missing article guid")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guid"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "link", "summary", "score", "relevant", "updated_at"}),
	}).Create(article).Error
}

// EnqueuePost creates a pending post for the article unless one exists.
func (s *Store) EnqueuePost(ctx context.Context, post *models.Post) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if post == nil {
		return fmt.Errorf("store: post is nil")
	}
	if post.Status == "" {
		post.Status = models.PostStatusPending
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}},
		DoNothing: true,
	}).Create(post).Error
}

// NextPendingPost returns the oldest pending post, or nil when the queue is
// empty.
func (s *Store) NextPendingPost(ctx context.Context) (*models.Post, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var post models.Post
	errFind := s.db.WithContext(ctx).
		Where("status = ?", models.PostStatusPending).
		Order("created_at ASC").
		First(&post).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if errFind != nil {
		return nil, errFind
	}
	return &post, nil
}

// MarkPostPublished records a successful publish.
func (s *Store) MarkPostPublished(ctx context.Context, id uint64, remoteID string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	return s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(map[string]any{
		"status":       models.PostStatusPublished,
		"remote_id":    remoteID,
		"published_at": at,
		"last_error":   "",
		"attempts":     gorm.Expr("attempts + 1"),
	}).Error
}

// MarkPostFailed records a failed publish attempt. Posts that exhausted
// maxAttempts leave the pending queue.
func (s *Store) MarkPostFailed(ctx context.Context, id uint64, publishErr error, maxAttempts int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	message := ""
	if publishErr != nil {
		message = publishErr.Error()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if errFind := tx.Where("id = ?", id).First(&post).Error; errFind != nil {
			return errFind
		}
		post.Attempts++
		post.LastError = message
		if maxAttempts > 0 && post.Attempts >= maxAttempts {
			post.Status = models.PostStatusFailed
		}
		return tx.Save(&post).Error
	})
}

// ArticleByID loads one article.
func (s *Store) ArticleByID(ctx context.Context, id uint64) (*models.Article, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var article models.Article
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&article).Error; errFind != nil {
		return nil, errFind
	}
	return &article, nil
}

// ArticleByGUID loads one article by its feed item GUID.
func (s *Store) ArticleByGUID(ctx context.Context, guid string) (*models.Article, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var article models.Article
	if errFind := s.db.WithContext(ctx).Where("guid = ?", guid).First(&article).Error; errFind != nil {
		return nil, errFind
	}
	return &article, nil
}

// Counts summarizes table sizes for the stats endpoint.
type Counts struct {
	Feeds     int64 `json:"feeds"`
	Articles  int64 `json:"articles"`
	Relevant  int64 `json:"relevant_articles"`
	Pending   int64 `json:"pending_posts"`
	Published int64 `json:"published_posts"`
}

// Count returns aggregate table counts.
func (s *Store) Count(ctx context.Context) (Counts, error) {
	if s == nil || s.db == nil {
		return Counts{}, fmt.Errorf("store: not initialized")
	}
	var counts Counts
	db := s.db.WithContext(ctx)
	if errCount := db.Model(&models.Feed{}).Count(&counts.Feeds).Error; errCount != nil {
		return Counts{}, errCount
	}
	if errCount := db.Model(&models.Article{}).Count(&counts.Articles).Error; errCount != nil {
		return Counts{}, errCount
	}
	if errCount := db.Model(&models.Article{}).Where("relevant = ?", true).Count(&counts.Relevant).Error; errCount != nil {
		return Counts{}, errCount
	}
	if errCount := db.Model(&models.Post{}).Where("status = ?", models.PostStatusPending).Count(&counts.Pending).Error; errCount != nil {
		return Counts{}, errCount
	}
	if errCount := db.Model(&models.Post{}).Where("status = ?", models.PostStatusPublished).Count(&counts.Published).Error; errCount != nil {
		return Counts{}, errCount
	}
	return counts, nil
}
