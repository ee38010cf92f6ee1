package models

import "time"

// Document is the metadata record for one stored binary. The payload
// lives in the blob store under the same ID. Rows are immutable after
// creation; ownership is fixed and is the sole access-control dimension.
type Document struct {
	ID string `gorm:"type:text;primaryKey"` // UUID, shared with the blob key.

	OwnerID uint64 `gorm:"not null;index"` // Owning user ID.

	Name     string `gorm:"type:text;not null"` // Original file name.
	MimeType string `gorm:"type:text;not null"` // Declared MIME type.
	Size     int64  `gorm:"not null"`           // Payload size in bytes.
	Project  string `gorm:"type:text"`          // Logical folder/project label.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Upload timestamp.
}
