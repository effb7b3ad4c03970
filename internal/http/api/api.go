package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/feedcaster/feedcaster/internal/config"
	"github.com/feedcaster/feedcaster/internal/http/api/handlers"
	"github.com/feedcaster/feedcaster/internal/models"
	"github.com/feedcaster/feedcaster/internal/ratelimit"
	"github.com/feedcaster/feedcaster/internal/security"
	"github.com/feedcaster/feedcaster/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const apiRequestKind = "api"

// RegisterRoutes registers API routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, guard *ratelimit.Guard, st *store.Store, jwtCfg config.JWTConfig) {
	if r == nil || db == nil || guard == nil || st == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	apiGroup := r.Group("/api")
	apiGroup.Use(guardMiddleware(guard))

	statsHandler := handlers.NewStatsHandler(guard, st)
	apiGroup.GET("/stats", statsHandler.Get)

	articleHandler := handlers.NewArticleHandler(db)
	apiGroup.GET("/articles", articleHandler.List)

	postHandler := handlers.NewPostHandler(db)
	apiGroup.GET("/posts", postHandler.List)

	adminGroup := apiGroup.Group("/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	banHandler := handlers.NewBanHandler(guard)
	authed.GET("/bans", banHandler.List)
	authed.POST("/bans", banHandler.Create)
	authed.DELETE("/bans/:identity", banHandler.Delete)
}

// guardMiddleware admits requests through the DoS protection guard, keyed by
// client IP, and records each outcome. Denials become 429 responses with a
// Retry-After hint.
func guardMiddleware(guard *ratelimit.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()
		decision, errCheck := guard.Check(identity, apiRequestKind)
		if errCheck != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "admission check failed"})
			return
		}
		if !decision.Allowed {
			if decision.RetryAfter > 0 {
				seconds := int(decision.RetryAfter / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": decision.Reason})
			return
		}

		c.Next()

		success := c.Writer.Status() < http.StatusBadRequest
		meta := map[string]any{"path": c.FullPath(), "status": c.Writer.Status()}
		if errRecord := guard.Record(identity, apiRequestKind, success, meta); errRecord != nil {
			log.WithError(errRecord).Warn("api: record request outcome failed")
		}
	}
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
