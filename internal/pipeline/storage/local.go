package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	types "FrameForge/pkg"
)

// LocalStorage keeps objects on disk as <base>/<bucket>/<key>.
type LocalStorage struct {
	rootPath string
}

func NewLocalStorage(localCfg types.LocalConfig) (*LocalStorage, error) {
	if localCfg.BasePath == "" {
		return nil, fmt.Errorf("base_path required for local storage")
	}
	root, err := filepath.Abs(localCfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root path: %w", err)
	}
	return &LocalStorage{rootPath: root}, nil
}

func (l *LocalStorage) path(bucket, key string) (string, error) {
	full := filepath.Join(l.rootPath, bucket, key)
	if full != l.rootPath && !strings.HasPrefix(full, l.rootPath+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes storage root: %s/%s", bucket, key)
	}
	return full, nil
}

func (l *LocalStorage) Upload(ctx context.Context, bucket, key string, body io.Reader, _ int64, _ string) error {
	fullPath, err := l.path(bucket, key)
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	return nil
}

func (l *LocalStorage) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	fullPath, err := l.path(bucket, key)
	if err != nil {
		return nil, &TransportError{Op: "download", Err: err}
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &TransportError{Op: "download", Err: fmt.Errorf("failed to read file: %w", err)}
	}
	return f, nil
}

func (l *LocalStorage) URL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	fullPath, err := l.path(bucket, key)
	if err != nil {
		return "", &TransportError{Op: "url", Err: err}
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(fullPath)}).String(), nil
}
