package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/db"
	"github.com/bicrea/gateway/internal/models"
	"github.com/bicrea/gateway/internal/storage"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *storage.MemoryStore) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "documents-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	blobs := storage.NewMemoryStore()
	svc := NewService(conn, blobs, config.UploadConfig{
		MaxBytes:     10 << 20,
		AllowedTypes: config.DefaultUploadTypes,
	})
	return svc, conn, blobs
}

func TestUploadAndGetRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	payload := []byte("%PDF-1.4 round trip")

	id, err := svc.Upload(context.Background(), 1, "report.pdf", "application/pdf", int64(len(payload)), "acme", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty id")
	}

	record, reader, errGet := svc.Get(context.Background(), id, 1)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	got, errRead := io.ReadAll(reader)
	if errRead != nil {
		t.Fatalf("read: %v", errRead)
	}
	_ = reader.Close()

	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
	if record.Name != "report.pdf" || record.MimeType != "application/pdf" {
		t.Fatalf("unexpected metadata: %+v", record)
	}
	if record.Project != "acme" {
		t.Fatalf("expected project label, got %q", record.Project)
	}
}

func TestGetIsRepeatable(t *testing.T) {
	svc, _, _ := newTestService(t)
	payload := []byte("%PDF-1.4 idempotent")
	id, err := svc.Upload(context.Background(), 1, "a.pdf", "application/pdf", int64(len(payload)), "", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	for i := 0; i < 3; i++ {
		record, reader, errGet := svc.Get(context.Background(), id, 1)
		if errGet != nil {
			t.Fatalf("get %d: %v", i, errGet)
		}
		got, _ := io.ReadAll(reader)
		_ = reader.Close()
		if !bytes.Equal(got, payload) {
			t.Fatalf("get %d: payload mismatch", i)
		}
		if record.Size != int64(len(payload)) {
			t.Fatalf("get %d: size changed", i)
		}
	}
}

func TestUpload_RejectsDisallowedType(t *testing.T) {
	svc, conn, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), 1, "tool.exe", "application/x-msdownload", 128, "", bytes.NewReader(make([]byte, 128)))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}

	var count int64
	if errCount := conn.Model(&models.Document{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("rejected upload must not create records, got %d", count)
	}
}

func TestUpload_RejectsOversizePayload(t *testing.T) {
	svc, conn, blobs := newTestService(t)

	size := int64(15 << 20)
	_, err := svc.Upload(context.Background(), 1, "big.pdf", "application/pdf", size, "", bytes.NewReader(nil))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	var count int64
	if errCount := conn.Model(&models.Document{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("rejected upload must not create records")
	}
	// Validation happens before any storage write.
	if _, errGet := blobs.Get(context.Background(), "any"); !errors.Is(errGet, storage.ErrNotExist) {
		t.Fatalf("expected empty blob store")
	}
}

func TestGet_WrongOwnerLooksLikeMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	payload := []byte("%PDF-1.4 private")
	id, err := svc.Upload(context.Background(), 1, "private.pdf", "application/pdf", int64(len(payload)), "", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	_, _, errOther := svc.Get(context.Background(), id, 2)
	_, _, errMissing := svc.Get(context.Background(), "00000000-0000-0000-0000-000000000000", 2)

	if !errors.Is(errOther, ErrNotFound) {
		t.Fatalf("wrong owner: expected ErrNotFound, got %v", errOther)
	}
	if !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("missing id: expected ErrNotFound, got %v", errMissing)
	}
}

func TestGet_MissingBlobIsStorageFault(t *testing.T) {
	svc, _, blobs := newTestService(t)
	payload := []byte("%PDF-1.4 doomed")
	id, err := svc.Upload(context.Background(), 1, "doomed.pdf", "application/pdf", int64(len(payload)), "", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if errRemove := blobs.Remove(context.Background(), id); errRemove != nil {
		t.Fatalf("remove blob: %v", errRemove)
	}

	_, _, errGet := svc.Get(context.Background(), id, 1)
	if !errors.Is(errGet, ErrBlobMissing) {
		t.Fatalf("expected ErrBlobMissing, got %v", errGet)
	}
}

func TestList_OnlyCallerDocumentsInOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	for i, name := range []string{"first.pdf", "second.pdf"} {
		payload := []byte{byte(i), 1, 2, 3}
		if _, err := svc.Upload(context.Background(), 1, name, "application/pdf", int64(len(payload)), "", bytes.NewReader(payload)); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}
	other := []byte("other owner")
	if _, err := svc.Upload(context.Background(), 2, "other.pdf", "application/pdf", int64(len(other)), "", bytes.NewReader(other)); err != nil {
		t.Fatalf("upload other: %v", err)
	}

	records, err := svc.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, record := range records {
		if record.OwnerID != 1 {
			t.Fatalf("foreign record leaked: %+v", record)
		}
	}

	again, errAgain := svc.List(context.Background(), 1)
	if errAgain != nil {
		t.Fatalf("list again: %v", errAgain)
	}
	for i := range records {
		if records[i].ID != again[i].ID {
			t.Fatalf("ordering is not stable")
		}
	}
}
