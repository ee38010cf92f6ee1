package settings

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bicrea/gateway/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// snapshotTTL bounds how stale the cached settings snapshot may get.
const snapshotTTL = 10 * time.Second

var (
	mu        sync.RWMutex
	conn      *gorm.DB
	snapshot  map[string]json.RawMessage
	fetchedAt time.Time
)

// Bind attaches the settings package to a database connection. Must be
// called once at startup before DBConfigValue is used.
func Bind(db *gorm.DB) {
	mu.Lock()
	defer mu.Unlock()
	conn = db
	snapshot = nil
	fetchedAt = time.Time{}
}

// DBConfigValue returns the raw JSON value for a settings key, refreshing
// the cached snapshot when it has expired. A missing binding or row
// yields (nil, false) so callers fall back to their defaults.
func DBConfigValue(key string) (json.RawMessage, bool) {
	mu.RLock()
	if conn == nil {
		mu.RUnlock()
		return nil, false
	}
	if snapshot != nil && time.Since(fetchedAt) < snapshotTTL {
		value, ok := snapshot[key]
		mu.RUnlock()
		return value, ok
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if conn == nil {
		return nil, false
	}
	if snapshot == nil || time.Since(fetchedAt) >= snapshotTTL {
		var rows []models.Setting
		if errFind := conn.Find(&rows).Error; errFind != nil {
			log.WithError(errFind).Warn("settings: load snapshot failed")
			// Keep serving the stale snapshot rather than dropping overrides.
		} else {
			next := make(map[string]json.RawMessage, len(rows))
			for _, row := range rows {
				next[row.Key] = json.RawMessage(row.Value)
			}
			snapshot = next
			fetchedAt = time.Now()
		}
	}
	if snapshot == nil {
		return nil, false
	}
	value, ok := snapshot[key]
	return value, ok
}
