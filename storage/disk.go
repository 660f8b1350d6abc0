// Package storage persists avatar files on disk under randomized names.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chat-server/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IFileStorage interface {
	Store(r io.Reader, originalName string) (string, error)
	Remove(ref string) error
}

// Constraints bound what an upload may be: allowed extensions (with the
// leading dot) and a maximum size in kilobytes.
type Constraints struct {
	Extensions []string
	MaxSizeKB  int64
}

type DiskStorage struct {
	dir         string
	constraints Constraints
	log         *slog.Logger
}

func NewDiskStorage(dir string, constraints Constraints, log *slog.Logger) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	return &DiskStorage{dir: dir, constraints: constraints, log: log}, nil
}

// Store writes the upload under a random filename and returns the
// reference. Constraint breaches surface as a field-keyed ValidationError
// on "avatar"; the partial file is removed in that case.
func (d *DiskStorage) Store(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !lo.Contains(d.constraints.Extensions, ext) {
		return "", errors.NewValidation("avatar", "this extension is not allowed")
	}

	ref := uuid.NewString() + ext
	path := filepath.Join(d.dir, ref)

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}

	limit := d.constraints.MaxSizeKB * 1024
	// Copy one byte past the limit so an oversized upload is detectable
	// without draining the whole stream.
	written, err := io.Copy(file, io.LimitReader(r, limit+1))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		d.discard(path)
		return "", err
	}
	if written > limit {
		d.discard(path)
		return "", errors.NewValidation("avatar", fmt.Sprintf("file exceeds %d KB", d.constraints.MaxSizeKB))
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		d.discard(path)
		return "", err
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		d.discard(path)
		return "", errors.NewValidation("avatar", "file is not an image")
	}

	return ref, nil
}

// Remove releases a stored file. A missing file is not an error: removal
// runs during room deletion and must be idempotent.
func (d *DiskStorage) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(filepath.Join(d.dir, filepath.Base(ref)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *DiskStorage) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.log.Warn("failed to discard upload", "path", path, "error", err)
	}
}
