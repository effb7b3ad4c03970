package dedup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager selects a dedup cache backend. Redis is preferred when enabled;
// any Redis failure trips a breaker and falls back to the in-memory cache.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memoryCache    *MemoryCache
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisCache     *RedisCache
	redisCfg       redisConfig
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = LoadSettingsConfig
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memoryCache:    NewMemoryCache(0),
		newRedisClient: newRedisClient,
	}
}

// Seen marks the key as seen using the best available backend and reports
// whether it was already present.
func (m *Manager) Seen(ctx context.Context, key string) (bool, error) {
	if m == nil || key == "" {
		return false, nil
	}
	now := m.nowFn()
	cfg := m.provider()

	if cfg.RedisEnabled {
		if seen, ok := m.seenRedis(ctx, key, now, cfg); ok {
			return seen, nil
		}
	}
	return m.memoryCache.Seen(ctx, key, now)
}

func (m *Manager) seenRedis(ctx context.Context, key string, now time.Time, cfg SettingsConfig) (bool, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.isBreakerActive(now) {
		return false, false
	}
	cache, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return false, false
	}
	seen, errSeen := cache.Seen(ctx, key, now)
	if errSeen != nil {
		m.tripBreaker(errSeen, now)
		return false, false
	}
	return seen, true
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("dedup: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisCache, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("dedup redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisCache != nil && m.redisCfg == nextCfg {
		return m.redisCache, nil
	}
	if m.redisCache != nil {
		_ = m.redisCache.client.Close()
		m.redisCache = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisCache = NewRedisCache(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisCache, nil
}
