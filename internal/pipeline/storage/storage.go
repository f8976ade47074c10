package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	types "FrameForge/pkg"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// TransportError wraps any transport or permission fault from a backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Storage interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// URL returns a link a downstream consumer can fetch the object from.
	URL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

func NewStorage(ctx context.Context, cfg types.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	case "minio":
		return NewMinioStorage(cfg.Minio)
	case "local":
		return NewLocalStorage(cfg.Local)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Type)
	}
}
