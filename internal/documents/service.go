package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/models"
	"github.com/bicrea/gateway/internal/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sentinel errors mapped to HTTP statuses at the gateway boundary.
var (
	// ErrNotFound covers both a missing document and one owned by someone
	// else; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("documents: not found")
	// ErrUnsupportedType rejects uploads outside the MIME allow-list.
	ErrUnsupportedType = errors.New("documents: unsupported file type")
	// ErrTooLarge rejects uploads over the size ceiling.
	ErrTooLarge = errors.New("documents: file too large")
	// ErrBlobMissing flags a metadata row whose payload is gone, a
	// storage-integrity fault distinct from not-found.
	ErrBlobMissing = errors.New("documents: blob missing for record")
)

// Service mediates access to the document index and the blob store.
type Service struct {
	db        *gorm.DB
	blobs     storage.BlobStore
	uploadCfg config.UploadConfig
}

// NewService constructs a document Service.
func NewService(db *gorm.DB, blobs storage.BlobStore, uploadCfg config.UploadConfig) *Service {
	return &Service{db: db, blobs: blobs, uploadCfg: uploadCfg}
}

// Upload validates the payload, writes the blob, then commits the
// metadata record. The blob goes first: a record-insert failure leaves
// at worst an orphaned blob, never a record pointing at missing content.
func (s *Service) Upload(ctx context.Context, ownerID uint64, name, mimeType string, size int64, project string, reader io.Reader) (string, error) {
	mimeType = strings.TrimSpace(mimeType)
	if !s.typeAllowed(mimeType) {
		return "", ErrUnsupportedType
	}
	if size <= 0 || size > s.uploadCfg.MaxBytes {
		return "", ErrTooLarge
	}

	id := uuid.NewString()
	if errPut := s.blobs.Put(ctx, id, io.LimitReader(reader, size), size, mimeType); errPut != nil {
		return "", fmt.Errorf("documents: store blob: %w", errPut)
	}

	record := models.Document{
		ID:       id,
		OwnerID:  ownerID,
		Name:     strings.TrimSpace(name),
		MimeType: mimeType,
		Size:     size,
		Project:  strings.TrimSpace(project),
	}
	if errCreate := s.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		if errRemove := s.blobs.Remove(ctx, id); errRemove != nil {
			log.WithError(errRemove).WithField("id", id).Warn("documents: orphaned blob left behind")
		}
		return "", fmt.Errorf("documents: create record: %w", errCreate)
	}
	return id, nil
}

// Get returns the metadata and payload of a document the caller owns.
func (s *Service) Get(ctx context.Context, id string, callerID uint64) (models.Document, io.ReadCloser, error) {
	var record models.Document
	errFind := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Document{}, nil, ErrNotFound
		}
		return models.Document{}, nil, fmt.Errorf("documents: lookup record: %w", errFind)
	}
	if record.OwnerID != callerID {
		return models.Document{}, nil, ErrNotFound
	}

	reader, errGet := s.blobs.Get(ctx, record.ID)
	if errGet != nil {
		if errors.Is(errGet, storage.ErrNotExist) {
			log.WithField("id", record.ID).Error("documents: record without blob")
			return models.Document{}, nil, ErrBlobMissing
		}
		return models.Document{}, nil, fmt.Errorf("documents: fetch blob: %w", errGet)
	}
	return record, reader, nil
}

// List returns the caller's document metadata, oldest first.
func (s *Service) List(ctx context.Context, callerID uint64) ([]models.Document, error) {
	var records []models.Document
	errFind := s.db.WithContext(ctx).
		Where("owner_id = ?", callerID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if errFind != nil {
		return nil, fmt.Errorf("documents: list records: %w", errFind)
	}
	return records, nil
}

func (s *Service) typeAllowed(mimeType string) bool {
	for _, allowed := range s.uploadCfg.AllowedTypes {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
