package security

import (
	"strings"

	"github.com/pquerna/otp/totp"
)

// totpIssuer labels generated secrets in authenticator apps.
const totpIssuer = "bicrea.com"

// GenerateTOTPSecret creates a new TOTP secret for an account. The
// secret is shown once at provisioning time and stored on the user row.
func GenerateTOTPSecret(email string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: email,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// ValidateTOTP reports whether the submitted code matches the secret.
func ValidateTOTP(secret, code string) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
