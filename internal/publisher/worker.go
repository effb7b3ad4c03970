package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/feedcaster/feedcaster/internal/ratelimit"
	"github.com/feedcaster/feedcaster/internal/store"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPublishInterval = 30 * time.Second
	defaultMaxAttempts     = 5

	publishKind = "publish"
)

// StatusPublisher is the social API surface the worker depends on.
type StatusPublisher interface {
	Identity() string
	PublishStatus(ctx context.Context, text string) (string, error)
}

// Worker drains pending posts, one per tick, gated by the DoS protection
// guard.
type Worker struct {
	store       *store.Store
	guard       *ratelimit.Guard
	client      StatusPublisher
	interval    time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewWorker constructs a publish worker.
func NewWorker(st *store.Store, guard *ratelimit.Guard, client StatusPublisher, interval time.Duration) *Worker {
	if st == nil || guard == nil || client == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultPublishInterval
	}
	return &Worker{
		store:       st,
		guard:       guard,
		client:      client,
		interval:    interval,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
}

// Start runs the publish loop in the background.
func (w *Worker) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go w.run(ctx)
	log.Infof("publisher started (interval=%s)", w.interval)
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessNext(ctx); err != nil {
				log.WithError(err).Warn("publisher: publish attempt failed")
			}
		}
	}
}

// ProcessNext publishes the oldest pending post, if any. It reports whether
// a post was published. Guard denials leave the post pending for a later
// tick.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if w == nil {
		return false, fmt.Errorf("publisher: nil worker")
	}

	post, errNext := w.store.NextPendingPost(ctx)
	if errNext != nil {
		return false, fmt.Errorf("publisher: load pending post: %w", errNext)
	}
	if post == nil {
		return false, nil
	}

	identity := w.client.Identity()
	decision, errCheck := w.guard.Check(identity, publishKind)
	if errCheck != nil {
		return false, fmt.Errorf("publisher: guard check: %w", errCheck)
	}
	if !decision.Allowed {
		log.WithFields(log.Fields{
			"reason":      decision.Reason,
			"retry_after": decision.RetryAfter.String(),
		}).Warn("publisher: publish denied, post stays queued")
		return false, nil
	}

	remoteID, errPublish := w.client.PublishStatus(ctx, post.Text)
	if errRecord := w.guard.Record(identity, publishKind, errPublish == nil, map[string]any{"post_id": post.ID}); errRecord != nil {
		log.WithError(errRecord).Warn("publisher: record outcome failed")
	}

	if errPublish != nil {
		if errMark := w.store.MarkPostFailed(ctx, post.ID, errPublish, w.maxAttempts); errMark != nil {
			log.WithError(errMark).Warn("publisher: mark post failed errored")
		}
		return false, fmt.Errorf("publisher: publish post %d: %w", post.ID, errPublish)
	}

	if errMark := w.store.MarkPostPublished(ctx, post.ID, remoteID, w.now()); errMark != nil {
		return false, fmt.Errorf("publisher: mark post published: %w", errMark)
	}
	log.Infof("publisher: published post %d (remote %s)", post.ID, remoteID)
	return true, nil
}
