package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the dashboard site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback dashboard site name.
	DefaultSiteName = "Feedcaster"
	// FeedSyncIntervalSecondsKey controls the feed sync interval in seconds.
	FeedSyncIntervalSecondsKey = "FEED_SYNC_INTERVAL_SECONDS"
	// PublishIntervalSecondsKey controls the publisher drain interval in seconds.
	PublishIntervalSecondsKey = "PUBLISH_INTERVAL_SECONDS"
	// DedupRedisEnabledKey toggles the Redis-backed dedup cache.
	DedupRedisEnabledKey = "DEDUP_REDIS_ENABLED"
	// DedupRedisAddrKey defines the Redis address for the dedup cache.
	DedupRedisAddrKey = "DEDUP_REDIS_ADDR"
	// DedupRedisPasswordKey defines the Redis password for the dedup cache.
	DedupRedisPasswordKey = "DEDUP_REDIS_PASSWORD"
	// DedupRedisDBKey defines the Redis DB index for the dedup cache.
	DedupRedisDBKey = "DEDUP_REDIS_DB"
	// DedupRedisPrefixKey defines the Redis key prefix for the dedup cache.
	DedupRedisPrefixKey = "DEDUP_REDIS_PREFIX"
	// DefaultFeedSyncIntervalSeconds is the fallback sync interval (seconds).
	DefaultFeedSyncIntervalSeconds = 300
	// DefaultPublishIntervalSeconds is the fallback drain interval (seconds).
	DefaultPublishIntervalSeconds = 60
	// DefaultDedupRedisPrefix is the fallback Redis key prefix.
	DefaultDedupRedisPrefix = "fc:seen"
)
