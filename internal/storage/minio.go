package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore is a BlobStore backed by a MinIO/S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// MinioOptions holds connection settings for the MinIO backend.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, errNew := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if errNew != nil {
		return nil, fmt.Errorf("minio store: connect: %w", errNew)
	}

	exists, errExists := client.BucketExists(ctx, opts.Bucket)
	if errExists != nil {
		return nil, fmt.Errorf("minio store: check bucket: %w", errExists)
	}
	if !exists {
		if errMake := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); errMake != nil {
			return nil, fmt.Errorf("minio store: create bucket: %w", errMake)
		}
	}
	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

// Put stores the payload under key.
func (s *MinioStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, errPut := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if errPut != nil {
		return fmt.Errorf("minio store: put %s: %w", key, errPut)
	}
	return nil
}

// Get returns a reader over the payload stored under key. The object is
// probed up front so a missing key surfaces as ErrNotExist instead of a
// lazy read error.
func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, errGet := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if errGet != nil {
		return nil, fmt.Errorf("minio store: get %s: %w", key, errGet)
	}
	if _, errStat := obj.Stat(); errStat != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(errStat).Code == "NoSuchKey" {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("minio store: stat %s: %w", key, errStat)
	}
	return obj, nil
}

// Remove deletes the payload stored under key.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if errRemove := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); errRemove != nil {
		return fmt.Errorf("minio store: remove %s: %w", key, errRemove)
	}
	return nil
}
