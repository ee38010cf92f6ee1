package security

import (
	"testing"
	"time"
)

func TestIssueAndParseAccessToken(t *testing.T) {
	token, err := IssueAccessToken("test-secret", 42, 30*time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, errParse := ParseAccessToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected uid=42, got %d", claims.UserID)
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	token, err := IssueAccessToken("secret-a", 1, 30*time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, errParse := ParseAccessToken("secret-b", token); errParse == nil {
		t.Fatalf("expected signature error for wrong secret")
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	// Valid signature, already past expiry.
	token, err := IssueAccessToken("test-secret", 7, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, errParse := ParseAccessToken("test-secret", token); errParse == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestParseAccessToken_Garbage(t *testing.T) {
	if _, err := ParseAccessToken("test-secret", "not-a-token"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "hunter2" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatalf("expected match for correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestValidateTOTP(t *testing.T) {
	secret, err := GenerateTOTPSecret("a@bicrea.com")
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if secret == "" {
		t.Fatalf("expected non-empty secret")
	}
	if ValidateTOTP(secret, "000000") && ValidateTOTP(secret, "111111") {
		t.Fatalf("two fixed codes should not both validate")
	}
	if ValidateTOTP("", "123456") {
		t.Fatalf("empty secret must never validate")
	}
	if ValidateTOTP(secret, "") {
		t.Fatalf("empty code must never validate")
	}
}
