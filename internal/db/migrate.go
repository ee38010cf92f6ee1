package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bicrea/gateway/internal/models"
	internalsettings "github.com/bicrea/gateway/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations and seeds default settings.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.LoginAttempt{},
		&models.AccountLock{},
		&models.Document{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureRateLimitSettings(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureRateLimitSettings seeds rate limiter settings rows when absent so
// operators can adjust them at runtime without a config redeploy.
func ensureRateLimitSettings(conn *gorm.DB) error {
	// RATE_LIMIT is intentionally not seeded: absent means "use the file
	// config"; a row only exists once an operator sets an override.
	defaults := map[string]any{
		internalsettings.RateLimitRedisEnabledKey: false,
		internalsettings.RateLimitRedisAddrKey:    "",
		internalsettings.RateLimitRedisPrefixKey:  internalsettings.DefaultRateLimitRedisPrefix,
	}
	for key, value := range defaults {
		var existing models.Setting
		errFind := conn.Where("key = ?", key).First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: read setting %s: %w", key, errFind)
		}
		payload, errMarshal := json.Marshal(value)
		if errMarshal != nil {
			return fmt.Errorf("db: marshal setting %s: %w", key, errMarshal)
		}
		if errCreate := conn.Create(&models.Setting{Key: key, Value: payload}).Error; errCreate != nil {
			return fmt.Errorf("db: seed setting %s: %w", key, errCreate)
		}
	}
	return nil
}
