package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/db"
	"github.com/bicrea/gateway/internal/models"
	"github.com/bicrea/gateway/internal/security"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "auth-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	svc := NewService(conn,
		config.JWTConfig{Secret: "test-secret", Expiry: 30 * time.Minute},
		config.LockoutConfig{Threshold: 3, Window: time.Hour, Duration: 5 * time.Minute},
	)
	return svc, conn
}

func createUser(t *testing.T, conn *gorm.DB, email, password, totpSecret string) models.User {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	user := models.User{Email: email, Password: hash, TOTPSecret: totpSecret, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return user
}

func TestLogin_Success(t *testing.T) {
	svc, conn := newTestService(t)
	user := createUser(t, conn, "a@x.com", "correct-horse", "")

	token, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "", "1.2.3.4")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, errParse := security.ParseAccessToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected uid=%d, got %d", user.ID, claims.UserID)
	}

	var attempt models.LoginAttempt
	if errFind := conn.Order("id DESC").First(&attempt).Error; errFind != nil {
		t.Fatalf("find attempt: %v", errFind)
	}
	if !attempt.Success {
		t.Fatalf("expected success attempt row")
	}
}

func TestLogin_UnknownEmailMatchesWrongPassword(t *testing.T) {
	svc, conn := newTestService(t)
	createUser(t, conn, "a@x.com", "correct-horse", "")

	errUnknown := func() error {
		_, err := svc.Login(context.Background(), "nobody@x.com", "whatever", "", "9.9.9.9")
		return err
	}()
	errWrong := func() error {
		_, err := svc.Login(context.Background(), "a@x.com", "wrong", "", "8.8.8.8")
		return err
	}()

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", errWrong)
	}
}

func TestLogin_LockoutAfterThreeFailures(t *testing.T) {
	svc, conn := newTestService(t)
	createUser(t, conn, "a@x.com", "correct-horse", "")

	base := time.Now().UTC()
	svc.nowFn = func() time.Time { return base }

	for i := 0; i < 2; i++ {
		_, err := svc.Login(context.Background(), "a@x.com", "wrong", "", "1.2.3.4")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if _, err := svc.Login(context.Background(), "a@x.com", "wrong", "", "1.2.3.4"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("3rd failure should lock, got %v", err)
	}

	// Two minutes later, still inside the 5 minute lock, correct
	// credentials are rejected without touching the credential store.
	svc.nowFn = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "", "1.2.3.4"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked IP should stay locked, got %v", err)
	}

	// After the lock expires the correct credentials work again.
	svc.nowFn = func() time.Time { return base.Add(6 * time.Minute) }
	if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "", "1.2.3.4"); err != nil {
		t.Fatalf("expected login after unlock, got %v", err)
	}

	var locks []models.AccountLock
	if errFind := conn.Find(&locks).Error; errFind != nil {
		t.Fatalf("find locks: %v", errFind)
	}
	if len(locks) != 1 {
		t.Fatalf("expected exactly one lock row, got %d", len(locks))
	}
	if locks[0].IP != "1.2.3.4" {
		t.Fatalf("lock keyed by wrong ip: %s", locks[0].IP)
	}
}

func TestLogin_LockDoesNotAffectOtherIPs(t *testing.T) {
	svc, conn := newTestService(t)
	createUser(t, conn, "a@x.com", "correct-horse", "")

	for i := 0; i < 3; i++ {
		_, _ = svc.Login(context.Background(), "a@x.com", "wrong", "", "1.2.3.4")
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "", "5.6.7.8"); err != nil {
		t.Fatalf("other ip should not be locked, got %v", err)
	}
}

func TestLogin_MFARequired(t *testing.T) {
	svc, conn := newTestService(t)
	secret, errGen := security.GenerateTOTPSecret("a@x.com")
	if errGen != nil {
		t.Fatalf("generate totp secret: %v", errGen)
	}
	createUser(t, conn, "a@x.com", "correct-horse", secret)

	if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "", "1.2.3.4"); !errors.Is(err, ErrInvalidMFA) {
		t.Fatalf("missing code: expected ErrInvalidMFA, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "000000", "1.2.3.4"); !errors.Is(err, ErrInvalidMFA) {
		t.Fatalf("bad code: expected ErrInvalidMFA, got %v", err)
	}

	code, errCode := totp.GenerateCode(secret, time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", code, "1.2.3.4"); err != nil {
		t.Fatalf("valid code: expected success, got %v", err)
	}
}

func TestLogin_MFAFailureIsNotAPasswordFailure(t *testing.T) {
	svc, conn := newTestService(t)
	secret, errGen := security.GenerateTOTPSecret("a@x.com")
	if errGen != nil {
		t.Fatalf("generate totp secret: %v", errGen)
	}
	createUser(t, conn, "a@x.com", "correct-horse", secret)

	for i := 0; i < 5; i++ {
		if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "000000", "1.2.3.4"); !errors.Is(err, ErrInvalidMFA) {
			t.Fatalf("attempt %d: expected ErrInvalidMFA, got %v", i+1, err)
		}
	}

	var failures int64
	if errCount := conn.Model(&models.LoginAttempt{}).Where("success = ?", false).Count(&failures).Error; errCount != nil {
		t.Fatalf("count attempts: %v", errCount)
	}
	if failures != 0 {
		t.Fatalf("mfa failures must not append failed attempts, got %d", failures)
	}

	var locks int64
	if errCount := conn.Model(&models.AccountLock{}).Count(&locks).Error; errCount != nil {
		t.Fatalf("count locks: %v", errCount)
	}
	if locks != 0 {
		t.Fatalf("mfa failures must not create locks, got %d", locks)
	}
}

func TestLogin_DisabledUserLooksLikeBadCredentials(t *testing.T) {
	svc, conn := newTestService(t)
	user := createUser(t, conn, "a@x.com", "correct-horse", "")
	if errUpdate := conn.Model(&models.User{}).Where("id = ?", user.ID).Update("active", false).Error; errUpdate != nil {
		t.Fatalf("disable user: %v", errUpdate)
	}

	if _, err := svc.Login(context.Background(), "a@x.com", "correct-horse", "", "1.2.3.4"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for disabled user, got %v", err)
	}
}
