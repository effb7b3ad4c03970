package handlers

import (
	"net/http"
	"strings"

	dbutil "github.com/feedcaster/feedcaster/internal/db"
	"github.com/feedcaster/feedcaster/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ArticleHandler serves article list endpoints.
type ArticleHandler struct {
	db *gorm.DB
}

// NewArticleHandler constructs an ArticleHandler.
func NewArticleHandler(db *gorm.DB) *ArticleHandler {
	return &ArticleHandler{db: db}
}

// articleListQuery defines filters for the article list view.
type articleListQuery struct {
	Page     int    `form:"page,default=1"`   // Page number.
	Limit    int    `form:"limit,default=20"` // Page size.
	Search   string `form:"search"`           // Title substring filter.
	Relevant string `form:"relevant"`         // "true"/"false" relevance filter.
}

// List returns articles with paging and filters, newest first.
func (h *ArticleHandler) List(c *gin.Context) {
	var q articleListQuery
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

	base := h.db.WithContext(c.Request.Context()).Model(&models.Article{})
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		base = base.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "title"), pattern)
	}
	switch strings.TrimSpace(q.Relevant) {
	case "true":
		base = base.Where("relevant = ?", true)
	case "false":
		base = base.Where("relevant = ?", false)
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count articles failed"})
		return
	}

	offset := (q.Page - 1) * q.Limit
	var articles []models.Article
	if errFind := base.Order("created_at DESC, id DESC").Offset(offset).Limit(q.Limit).Find(&articles).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list articles failed"})
		return
	}

	out := make([]gin.H, 0, len(articles))
	for _, article := range articles {
		out = append(out, gin.H{
			"id":           article.ID,
			"feed_id":      article.FeedID,
			"guid":         article.GUID,
			"title":        article.Title,
			"link":         article.Link,
			"summary":      article.Summary,
			"score":        article.Score,
			"relevant":     article.Relevant,
			"published_at": article.PublishedAt,
			"created_at":   article.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": out,
		"total":    total,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}
