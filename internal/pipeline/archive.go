package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/flate"
	"go.uber.org/zap"
)

// Archiver packages a directory into a single file at archivePath.
type Archiver interface {
	BuildArchive(ctx context.Context, dir, archivePath string) (string, error)
}

// ZipArchiver writes a flat zip (entries at the archive root) deflated at
// the highest level.
type ZipArchiver struct {
	logger *zap.Logger
}

func NewArchiver(logger *zap.Logger) *ZipArchiver {
	return &ZipArchiver{logger: logger}
}

func (a *ZipArchiver) BuildArchive(ctx context.Context, dir, archivePath string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read frame directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no frames found in %s", dir)
	}
	sort.Strings(names)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp := archivePath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp)

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			zw.Close()
			out.Close()
			return "", err
		}
		if err := addFile(zw, filepath.Join(dir, name), name); err != nil {
			zw.Close()
			out.Close()
			return "", err
		}
	}

	// the archive is only complete once the central directory is flushed
	if err := zw.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp, archivePath); err != nil {
		return "", fmt.Errorf("failed to place archive: %w", err)
	}

	a.logger.Debug("Archive built",
		zap.String("archive", archivePath),
		zap.Int("entries", len(names)),
	)
	return archivePath, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
