package models

import "time"

// User represents an account stored in the credential store.
// Rows are provisioned out-of-band (create-user command); the request
// path never creates or mutates them.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Password string `gorm:"type:text;not null"`             // Bcrypt password hash.

	TOTPSecret string `gorm:"type:text"` // TOTP secret; empty means MFA disabled.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// MFAEnabled reports whether the account requires a second factor.
func (u User) MFAEnabled() bool {
	return u.TOTPSecret != ""
}
