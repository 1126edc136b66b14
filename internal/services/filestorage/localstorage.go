package filestorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/hf-mirror/internal/config"
)

// LocalFileStorage copies files into a directory tree on the local disk.
type LocalFileStorage struct {
	root string
}

func NewLocalFileStorage(cfg *config.Config) (*LocalFileStorage, error) {
	if !strings.EqualFold(cfg.Filesystem, config.FilesystemLocal) {
		return nil, fmt.Errorf("filesystem is not local")
	}
	if cfg.PublishDir == "" {
		return nil, fmt.Errorf("publish_dir is not set")
	}

	return &LocalFileStorage{root: cfg.PublishDir}, nil
}

func (u *LocalFileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	filedest, err := u.ResolveFile(file.Key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filedest), os.ModePerm); err != nil {
		return "", err
	}

	src, err := os.Open(file.Path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := writeStreamFile(filedest, src, os.FileMode(0644)); err != nil {
		return "", err
	}

	return filedest, nil
}

// ResolveFile maps a key to a path under the storage root. Keys that would
// escape the root are rejected.
func (u *LocalFileStorage) ResolveFile(key string) (string, error) {
	resolved := filepath.Join(u.root, filepath.FromSlash(key))

	rel, err := filepath.Rel(u.root, resolved)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid file key %q", key)
	}

	return resolved, nil
}

func writeStreamFile(filedest string, content io.Reader, mode os.FileMode) error {
	file, err := os.OpenFile(filedest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	_, err = io.Copy(file, content)
	if err != nil {
		return fmt.Errorf("failed to save content to file: %w", err)
	}

	return file.Close()
}
