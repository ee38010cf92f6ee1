package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestMemoryStore_PutGetRemove(t *testing.T) {
	store := NewMemoryStore()
	payload := []byte("%PDF-1.4 test")

	if err := store.Put(context.Background(), "doc-1", bytes.NewReader(payload), int64(len(payload)), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}

	reader, err := store.Get(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, errRead := io.ReadAll(reader)
	if errRead != nil {
		t.Fatalf("read: %v", errRead)
	}
	_ = reader.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q", got)
	}

	if err := store.Remove(context.Background(), "doc-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Get(context.Background(), "doc-1"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist after remove, got %v", err)
	}
}

func TestMemoryStore_SizeMismatch(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put(context.Background(), "doc-1", bytes.NewReader([]byte("abc")), 99, "application/pdf"); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
