package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/db"
	"github.com/bicrea/gateway/internal/models"
	"github.com/bicrea/gateway/internal/security"
	"gorm.io/gorm"
)

// minPasswordLength is the floor enforced on new accounts.
const minPasswordLength = 8

// CreateUser opens the database and provisions a user account. When
// enableMFA is set the returned secret must be handed to the user; it
// is not shown again.
func CreateUser(ctx context.Context, cfg config.AppConfig, email, password string, enableMFA bool) (string, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return "", err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return "", err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return "", errMigrate
	}
	return CreateUserWithConn(conn, email, password, enableMFA)
}

// CreateUserWithConn provisions a user account on an open connection.
func CreateUserWithConn(conn *gorm.DB, email, password string, enableMFA bool) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("valid email is required")
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	var existing int64
	if errCount := conn.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; errCount != nil {
		return "", fmt.Errorf("check existing user: %w", errCount)
	}
	if existing > 0 {
		return "", fmt.Errorf("user %s already exists", email)
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return "", fmt.Errorf("hash password: %w", errHash)
	}

	var totpSecret string
	if enableMFA {
		secret, errGen := security.GenerateTOTPSecret(email)
		if errGen != nil {
			return "", fmt.Errorf("generate totp secret: %w", errGen)
		}
		totpSecret = secret
	}

	user := models.User{Email: email, Password: hash, TOTPSecret: totpSecret, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		return "", fmt.Errorf("create user: %w", errCreate)
	}
	return totpSecret, nil
}
