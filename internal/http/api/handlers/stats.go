package handlers

import (
	"net/http"
	"time"

	"github.com/feedcaster/feedcaster/internal/ratelimit"
	"github.com/feedcaster/feedcaster/internal/store"
	"github.com/gin-gonic/gin"
)

// StatsHandler serves the combined service stats endpoint.
type StatsHandler struct {
	guard *ratelimit.Guard
	store *store.Store
	now   func() time.Time
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(guard *ratelimit.Guard, st *store.Store) *StatsHandler {
	return &StatsHandler{guard: guard, store: st, now: time.Now}
}

// Get returns guard and content counters.
func (h *StatsHandler) Get(c *gin.Context) {
	counts, errCount := h.store.Count(c.Request.Context())
	if errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generated_at": h.now().UTC().Format(time.RFC3339),
		"protection":   h.guard.Stats(),
		"content":      counts,
	})
}
