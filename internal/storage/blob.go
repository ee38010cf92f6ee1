package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist indicates the requested blob is absent from the store.
var ErrNotExist = errors.New("storage: blob does not exist")

// BlobStore persists opaque binary payloads keyed by document id.
// Writes are create-once; the gateway never overwrites a key.
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}
