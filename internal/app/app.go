package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/feedcaster/feedcaster/internal/compose"
	"github.com/feedcaster/feedcaster/internal/config"
	"github.com/feedcaster/feedcaster/internal/db"
	"github.com/feedcaster/feedcaster/internal/dedup"
	"github.com/feedcaster/feedcaster/internal/feed"
	"github.com/feedcaster/feedcaster/internal/http/api"
	"github.com/feedcaster/feedcaster/internal/publisher"
	"github.com/feedcaster/feedcaster/internal/ratelimit"
	"github.com/feedcaster/feedcaster/internal/relevance"
	internalsettings "github.com/feedcaster/feedcaster/internal/settings"
	"github.com/feedcaster/feedcaster/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the feed-to-social service: database, DoS protection
// guard, feed syncer, publish worker, and the HTTP API.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	internalsettings.Register(conn)

	fileCfg, errLoad := config.LoadFile(configPath)
	if errLoad != nil {
		log.WithError(errLoad).Warn("config file unreadable, using defaults")
	}
	jwtConfig, _ := config.LoadJWTConfig(configPath)

	guard, errGuard := ratelimit.NewGuard(fileCfg.Protection.Options(), nil)
	if errGuard != nil {
		return fmt.Errorf("build protection guard: %w", errGuard)
	}
	defer guard.Close()

	st := store.New(conn)
	deduper := dedup.NewManager(nil, nil, nil)
	scorer := relevance.NewScorer(fileCfg.Keywords, fileCfg.RelevanceThreshold)
	composer := compose.NewComposer(0)

	syncer := feed.NewSyncer(conn, st, deduper, scorer, composer, settingsInterval(internalsettings.FeedSyncIntervalSecondsKey, internalsettings.DefaultFeedSyncIntervalSeconds))
	if errEnsure := syncer.EnsureFeeds(ctx, fileCfg.Feeds); errEnsure != nil {
		return errEnsure
	}
	syncer.Start(ctx)

	socialClient := publisher.NewClient(fileCfg.Social.BaseURL, fileCfg.Social.Token)
	worker := publisher.NewWorker(st, guard, socialClient, settingsInterval(internalsettings.PublishIntervalSecondsKey, internalsettings.DefaultPublishIntervalSeconds))
	if worker == nil {
		return fmt.Errorf("build publish worker")
	}
	worker.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, conn, guard, st, jwtConfig)

	port := fileCfg.Port
	if port <= 0 {
		port = defaultPort
	}
	if port <= 0 {
		port = 8318
	}
	addr := fmt.Sprintf("%s:%d", fileCfg.Host, port)

	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
		return errListen
	}
	return nil
}

// settingsInterval reads a seconds-valued setting, falling back on defaults.
func settingsInterval(key string, defaultSeconds int) time.Duration {
	seconds := defaultSeconds
	if raw, ok := internalsettings.DBConfigValue(key); ok {
		var parsed int
		if errUnmarshal := json.Unmarshal(raw, &parsed); errUnmarshal == nil && parsed > 0 {
			seconds = parsed
		}
	}
	return time.Duration(seconds) * time.Second
}
