package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/models"
	"github.com/bicrea/gateway/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sentinel errors mapped to HTTP statuses at the gateway boundary.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// the two are deliberately indistinguishable to prevent enumeration.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountLocked denies logins from an IP under an active lock.
	ErrAccountLocked = errors.New("auth: account temporarily locked")
	// ErrInvalidMFA rejects a bad second factor; not a password failure.
	ErrInvalidMFA = errors.New("auth: invalid mfa code")
)

// Service validates credentials, maintains the attempt ledger and
// lockout table, and issues access tokens.
type Service struct {
	db      *gorm.DB
	jwtCfg  config.JWTConfig
	lockCfg config.LockoutConfig
	nowFn   func() time.Time
}

// NewService constructs an auth Service.
func NewService(db *gorm.DB, jwtCfg config.JWTConfig, lockCfg config.LockoutConfig) *Service {
	return &Service{
		db:      db,
		jwtCfg:  jwtCfg,
		lockCfg: lockCfg,
		nowFn:   time.Now,
	}
}

// Login runs the full login flow for one request and returns a signed
// access token on success.
//
// Ordering is load-bearing: the lockout check runs before any
// credential-store access so locked sources cost no password work, and
// the rolling failure count is evaluated after every failed attempt,
// unknown emails included.
func (s *Service) Login(ctx context.Context, email, password, mfaCode, ip string) (string, error) {
	now := s.nowFn().UTC()
	email = strings.ToLower(strings.TrimSpace(email))
	ip = strings.TrimSpace(ip)

	locked, errLock := s.isLocked(ctx, ip, now)
	if errLock != nil {
		// A lock-table failure must never read as "not locked".
		return "", fmt.Errorf("auth: check lock: %w", errLock)
	}
	if locked {
		return "", ErrAccountLocked
	}

	var user models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", s.failAttempt(ctx, ip, email, now)
		}
		return "", fmt.Errorf("auth: lookup user: %w", errFind)
	}

	if !user.Active || !security.CheckPassword(user.Password, password) {
		return "", s.failAttempt(ctx, ip, email, now)
	}

	if user.MFAEnabled() && !security.ValidateTOTP(user.TOTPSecret, mfaCode) {
		return "", ErrInvalidMFA
	}

	// Success rows are kept for audit; a failed insert must not fail the
	// login itself.
	attempt := models.LoginAttempt{IP: ip, Email: email, Success: true, CreatedAt: now}
	if errRecord := s.db.WithContext(ctx).Create(&attempt).Error; errRecord != nil {
		log.WithError(errRecord).Warn("auth: record success attempt failed")
	}

	token, errIssue := security.IssueAccessToken(s.jwtCfg.Secret, user.ID, s.jwtCfg.Expiry)
	if errIssue != nil {
		return "", fmt.Errorf("auth: issue token: %w", errIssue)
	}
	return token, nil
}

// failAttempt appends a failed attempt, evaluates the lockout threshold
// for the source IP, and returns the error the caller should surface.
func (s *Service) failAttempt(ctx context.Context, ip, email string, now time.Time) error {
	attempt := models.LoginAttempt{IP: ip, Email: email, Success: false, CreatedAt: now}
	if errRecord := s.db.WithContext(ctx).Create(&attempt).Error; errRecord != nil {
		// Audit write; the credential failure stays the primary error.
		log.WithError(errRecord).Warn("auth: record failed attempt failed")
		return ErrInvalidCredentials
	}

	windowStart := now.Add(-s.lockCfg.Window)
	var failures int64
	errCount := s.db.WithContext(ctx).Model(&models.LoginAttempt{}).
		Where("ip = ? AND success = ? AND created_at > ?", ip, false, windowStart).
		Count(&failures).Error
	if errCount != nil {
		log.WithError(errCount).Warn("auth: count failed attempts failed")
		return ErrInvalidCredentials
	}

	if failures >= int64(s.lockCfg.Threshold) {
		lock := models.AccountLock{IP: ip, UnlockAt: now.Add(s.lockCfg.Duration)}
		if errCreate := s.db.WithContext(ctx).Create(&lock).Error; errCreate != nil {
			log.WithError(errCreate).Error("auth: create account lock failed")
		}
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// isLocked reports whether the IP has an active account lock.
func (s *Service) isLocked(ctx context.Context, ip string, now time.Time) (bool, error) {
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.AccountLock{}).
		Where("ip = ? AND unlock_at > ?", ip, now).
		Count(&count).Error
	if errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
