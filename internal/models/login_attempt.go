package models

import "time"

// LoginAttempt is an append-only audit row written for every login call.
// The gateway never updates or deletes attempts; retention is external.
type LoginAttempt struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	IP      string `gorm:"type:text;not null;index"` // Client IP the attempt came from.
	Email   string `gorm:"type:text;not null"`       // Email as submitted, existing or not.
	Success bool   `gorm:"not null;default:false"`   // Whether credentials verified.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Attempt timestamp.
}
