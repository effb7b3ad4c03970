package settings

import (
	"encoding/json"
	"sync"

	"github.com/feedcaster/feedcaster/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	mu       sync.RWMutex
	conn     *gorm.DB
	snapshot map[string]json.RawMessage
)

// Register installs the database connection used for settings lookups and
// loads the initial snapshot.
func Register(db *gorm.DB) {
	mu.Lock()
	conn = db
	mu.Unlock()
	if errRefresh := Refresh(); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings: initial snapshot load failed")
	}
}

// Refresh reloads the settings snapshot from the database.
func Refresh() error {
	mu.RLock()
	db := conn
	mu.RUnlock()
	if db == nil {
		return nil
	}

	var rows []models.Setting
	if errFind := db.Find(&rows).Error; errFind != nil {
		return errFind
	}

	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		next[row.Key] = json.RawMessage(row.Value)
	}

	mu.Lock()
	snapshot = next
	mu.Unlock()
	return nil
}

// DBConfigValue returns the raw JSON value stored for the key, if any.
func DBConfigValue(key string) (json.RawMessage, bool) {
	mu.RLock()
	defer mu.RUnlock()
	raw, ok := snapshot[key]
	return raw, ok
}
