package dedup

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSeen(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Hour)

	seen, _ := cache.Seen(context.Background(), "guid-1", now)
	if seen {
		t.Fatal("expected first sighting to be new")
	}
	seen, _ = cache.Seen(context.Background(), "guid-1", now.Add(time.Minute))
	if !seen {
		t.Fatal("expected second sighting within TTL to be seen")
	}
	seen, _ = cache.Seen(context.Background(), "guid-1", now.Add(2*time.Hour))
	if seen {
		t.Fatal("expected sighting after TTL to be new again")
	}
}

func TestManagerFallsBackToMemory(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(func() SettingsConfig {
		// Redis enabled but unreachable: no address trips the breaker.
		return SettingsConfig{RedisEnabled: true}
	}, func() time.Time { return now }, nil)

	seen, errSeen := m.Seen(context.Background(), "guid-1")
	if errSeen != nil {
		t.Fatalf("expected memory fallback, got %v", errSeen)
	}
	if seen {
		t.Fatal("expected first sighting to be new")
	}
	seen, _ = m.Seen(context.Background(), "guid-1")
	if !seen {
		t.Fatal("expected repeat sighting to be seen")
	}
}

func TestManagerEmptyKey(t *testing.T) {
	m := NewManager(func() SettingsConfig { return SettingsConfig{} }, nil, nil)
	seen, errSeen := m.Seen(context.Background(), "")
	if errSeen != nil || seen {
		t.Fatalf("expected empty key ignored, got seen=%v err=%v", seen, errSeen)
	}
}
