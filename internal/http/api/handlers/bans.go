package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/feedcaster/feedcaster/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// BanHandler serves manual ban management endpoints.
type BanHandler struct {
	guard *ratelimit.Guard
}

// NewBanHandler constructs a BanHandler.
func NewBanHandler(guard *ratelimit.Guard) *BanHandler {
	return &BanHandler{guard: guard}
}

// List returns active bans.
func (h *BanHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bans": h.guard.Bans()})
}

type banRequest struct {
	Identity string `json:"identity"`
	Reason   string `json:"reason"`
}

// Create issues a manual ban.
func (h *BanHandler) Create(c *gin.Context) {
	var req banRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual ban"
	}

	errBan := h.guard.BanIdentity(req.Identity, reason, map[string]any{"source": "admin"})
	if errors.Is(errBan, ratelimit.ErrEmptyIdentity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing identity"})
		return
	}
	if errBan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ban failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"banned": strings.TrimSpace(req.Identity)})
}

// Delete lifts a ban.
func (h *BanHandler) Delete(c *gin.Context) {
	identity := strings.TrimSpace(c.Param("identity"))
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing identity"})
		return
	}
	h.guard.Unban(identity)
	c.JSON(http.StatusOK, gin.H{"unbanned": identity})
}
