package handlers

import (
	"net/http"
	"strings"

	"github.com/feedcaster/feedcaster/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PostHandler serves post list endpoints.
type PostHandler struct {
	db *gorm.DB
}

// NewPostHandler constructs a PostHandler.
func NewPostHandler(db *gorm.DB) *PostHandler {
	return &PostHandler{db: db}
}

// postListQuery defines filters for the post list view.
type postListQuery struct {
	Page   int    `form:"page,default=1"`   // Page number.
	Limit  int    `form:"limit,default=20"` // Page size.
	Status string `form:"status"`           // Lifecycle status filter.
}

// List returns posts with paging and filters, newest first.
func (h *PostHandler) List(c *gin.Context) {
	var q postListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	base := h.db.WithContext(c.Request.Context()).Model(&models.Post{})
	switch status := strings.TrimSpace(q.Status); status {
	case "":
	case models.PostStatusPending, models.PostStatusPublished, models.PostStatusFailed:
		base = base.Where("status = ?", status)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count posts failed"})
		return
	}

	offset := (q.Page - 1) * q.Limit
	var posts []models.Post
	if errFind := base.Order("created_at DESC, id DESC").Offset(offset).Limit(q.Limit).Find(&posts).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list posts failed"})
		return
	}

	out := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		out = append(out, gin.H{
			"id":           post.ID,
			"article_id":   post.ArticleID,
			"text":         post.Text,
			"status":       post.Status,
			"remote_id":    post.RemoteID,
			"published_at": post.PublishedAt,
			"attempts":     post.Attempts,
			"last_error":   post.LastError,
			"created_at":   post.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": out,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}
