package models

import "time"

// AccountLock denies further login attempts from an IP until UnlockAt.
// Locks are keyed by source IP rather than by account: the throttle
// targets the origin of abuse, accepting that a shared NAT can be
// locked out by one tenant's failures.
type AccountLock struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	IP       string    `gorm:"type:text;not null;index"` // Locked client IP.
	UnlockAt time.Time `gorm:"not null"`                 // Lock expiry.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Lock creation timestamp.
}
