package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	types "FrameForge/pkg"

	"go.uber.org/zap"
)

// ErrInvalidPut rejects a put with empty data, key or bucket before any I/O.
var ErrInvalidPut = errors.New("put requires non-empty data, key and bucket")

// Blobs is the blob store client the pipeline talks to. It sits on top of a
// backend and adds local materialization, put preconditions and result URLs.
type Blobs struct {
	backend       Storage
	publicBaseURL string
	presignExpiry time.Duration
	logger        *zap.Logger
}

func NewBlobs(backend Storage, cfg types.StorageConfig, logger *zap.Logger) *Blobs {
	return &Blobs{
		backend:       backend,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignExpiry: time.Duration(cfg.PresignExpirySec) * time.Second,
		logger:        logger,
	}
}

// Get copies bucket/key to dst and returns dst. The file only appears at dst
// once fully written, so a repeated Get for the same key yields the same content.
func (b *Blobs) Get(ctx context.Context, bucket, key, dst string) (string, error) {
	rc, err := b.backend.Download(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, rc)
	if err != nil {
		tmp.Close()
		return "", &TransportError{Op: "download", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to place download: %w", err)
	}

	b.logger.Debug("Blob downloaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("bytes", n),
	)
	return dst, nil
}

// Put uploads data under bucket/key.
func (b *Blobs) Put(ctx context.Context, data []byte, key, bucket, contentType string) error {
	if len(data) == 0 || key == "" || bucket == "" {
		return ErrInvalidPut
	}
	if err := b.backend.Upload(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return err
	}
	b.logger.Debug("Blob uploaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// URL prefers the configured public base, falling back to the backend link.
func (b *Blobs) URL(ctx context.Context, bucket, key string) (string, error) {
	if b.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, url.PathEscape(bucket), url.PathEscape(key)), nil
	}
	return b.backend.URL(ctx, bucket, key, b.presignExpiry)
}
