package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/feedcaster/feedcaster/internal/compose"
	"github.com/feedcaster/feedcaster/internal/dedup"
	"github.com/feedcaster/feedcaster/internal/models"
	"github.com/feedcaster/feedcaster/internal/relevance"
	"github.com/feedcaster/feedcaster/internal/store"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultSyncInterval   = 15 * time.Minute
	defaultRequestTimeout = 20 * time.Second
)

// Parser fetches and parses one feed URL. *gofeed.Parser satisfies it.
type Parser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// Syncer polls subscribed feeds, scores new items, and enqueues posts for
// relevant articles.
type Syncer struct {
	db       *gorm.DB
	store    *store.Store
	parser   Parser
	deduper  *dedup.Manager
	scorer   *relevance.Scorer
	composer *compose.Composer
	interval time.Duration
	now      func() time.Time
}

// NewSyncer constructs a feed syncer.
func NewSyncer(db *gorm.DB, st *store.Store, deduper *dedup.Manager, scorer *relevance.Scorer, composer *compose.Composer, interval time.Duration) *Syncer {
	if db == nil || st == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	if composer == nil {
		composer = compose.NewComposer(0)
	}
	return &Syncer{
		db:       db,
		store:    st,
		parser:   gofeed.NewParser(),
		deduper:  deduper,
		scorer:   scorer,
		composer: composer,
		interval: interval,
		now:      time.Now,
	}
}

// EnsureFeeds registers the configured feed URLs, skipping ones already
// present.
func (s *Syncer) EnsureFeeds(ctx context.Context, urls []string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("feed syncer: nil db")
	}
	for _, raw := range urls {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}
		feed := models.Feed{URL: url, Enabled: true}
		errCreate := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).Create(&feed).Error
		if errCreate != nil {
			return fmt.Errorf("feed syncer: register feed %s: %w", url, errCreate)
		}
	}
	return nil
}

// Start runs the sync loop in the background.
func (s *Syncer) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("feed syncer started (interval=%s)", s.interval)
}

func (s *Syncer) run(ctx context.Context) {
	if err := s.SyncOnce(ctx); err != nil {
		log.WithError(err).Warn("feed syncer: initial sync failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				log.WithError(err).Warn("feed syncer: sync failed")
			}
		}
	}
}

// SyncOnce polls every enabled feed once. Per-feed failures are recorded on
// the feed row and do not abort the pass.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("feed syncer: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var feeds []models.Feed
	if errFind := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id ASC").Find(&feeds).Error; errFind != nil {
		return fmt.Errorf("feed syncer: list feeds: %w", errFind)
	}

	for i := range feeds {
		if errSync := s.SyncFeed(ctx, &feeds[i]); errSync != nil {
			log.WithError(errSync).Warnf("feed syncer: sync %s failed", feeds[i].URL)
		}
	}
	return nil
}

// SyncFeed fetches one feed and ingests its items.
func (s *Syncer) SyncFeed(ctx context.Context, row *models.Feed) error {
	if s == nil || row == nil {
		return fmt.Errorf("feed syncer: nil feed")
	}

	requestCtx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	parsed, errParse := s.parser.ParseURLWithContext(row.URL, requestCtx)
	if errParse != nil {
		s.recordSyncResult(ctx, row, errParse)
		return fmt.Errorf("feed syncer: fetch %s: %w", row.URL, errParse)
	}

	if row.Title == "" && parsed.Title != "" {
		row.Title = parsed.Title
	}

	ingested, relevant := 0, 0
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		wasNew, wasRelevant, errItem := s.ingestItem(ctx, row, item)
		if errItem != nil {
			log.WithError(errItem).Warnf("feed syncer: ingest item from %s failed", row.URL)
			continue
		}
		if wasNew {
			ingested++
		}
		if wasRelevant {
			relevant++
		}
	}

	s.recordSyncResult(ctx, row, nil)
	log.Debugf("feed syncer: %s: %d new, %d relevant", row.URL, ingested, relevant)
	return nil
}

// ingestItem stores one feed item and enqueues a post when it scores as
// relevant. Items whose GUID was already seen are skipped.
func (s *Syncer) ingestItem(ctx context.Context, row *models.Feed, item *gofeed.Item) (bool, bool, error) {
	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = strings.TrimSpace(item.Link)
	}
	if guid == "" {
		return false, false, nil
	}

	if s.deduper != nil {
		seen, errSeen := s.deduper.Seen(ctx, guid)
		if errSeen != nil {
			log.WithError(errSeen).Warn("feed syncer: dedup check failed")
		} else if seen {
			return false, false, nil
		}
	}

	summary := strings.TrimSpace(item.Description)
	score := 0.0
	isRelevant := true
	if s.scorer != nil {
		score = s.scorer.Score(item.Title, summary)
		isRelevant = s.scorer.Relevant(score)
	}

	article := models.Article{
		FeedID:      row.ID,
		GUID:        guid,
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Summary:     summary,
		PublishedAt: item.PublishedParsed,
		Score:       score,
		Relevant:    isRelevant,
	}
	if metadata := itemMetadata(item); metadata != nil {
		article.Metadata = metadata
	}

	if errUpsert := s.store.UpsertArticle(ctx, &article); errUpsert != nil {
		return false, false, errUpsert
	}
	if article.ID == 0 {
		stored, errFind := s.store.ArticleByGUID(ctx, guid)
		if errFind != nil {
			return false, false, errFind
		}
		article.ID = stored.ID
	}

	if !isRelevant {
		return true, false, nil
	}

	post := models.Post{
		ArticleID: article.ID,
		Text:      s.composer.Compose(article.Title, article.Summary, article.Link),
		Status:    models.PostStatusPending,
	}
	if errEnqueue := s.store.EnqueuePost(ctx, &post); errEnqueue != nil {
		return true, false, errEnqueue
	}
	return true, true, nil
}

// recordSyncResult persists the sync outcome on the feed row.
func (s *Syncer) recordSyncResult(ctx context.Context, row *models.Feed, syncErr error) {
	updates := map[string]any{"title": row.Title}
	if syncErr != nil {
		updates["last_error"] = syncErr.Error()
	} else {
		now := s.now()
		updates["last_error"] = ""
		updates["last_synced_at"] = now
		row.LastSyncedAt = &now
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.Feed{}).Where("id = ?", row.ID).Updates(updates).Error; errUpdate != nil {
		log.WithError(errUpdate).Warn("feed syncer: update feed row failed")
	}
}

// itemMetadata captures auxiliary item fields for diagnostics.
func itemMetadata(item *gofeed.Item) datatypes.JSON {
	payload := map[string]any{}
	if len(item.Categories) > 0 {
		payload["categories"] = item.Categories
	}
	if item.Author != nil && item.Author.Name != "" {
		payload["author"] = item.Author.Name
	}
	if len(payload) == 0 {
		return nil
	}
	data, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return nil
	}
	return data
}
