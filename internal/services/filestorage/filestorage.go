package filestorage

import (
	"context"
	"fmt"
	"strings"

	"github.com/cozy-creator/hf-mirror/internal/config"
)

// FileInfo is a local file to be stored under Key. Keys are slash separated
// and relative to the storage root.
type FileInfo struct {
	Key  string
	Path string
	Size int64
}

type FileStorage interface {
	Upload(ctx context.Context, file FileInfo) (string, error)
}

func NewFileInfo(key, path string, size int64) FileInfo {
	return FileInfo{
		Key:  key,
		Path: path,
		Size: size,
	}
}

func NewFileStorage(ctx context.Context, cfg *config.Config) (FileStorage, error) {
	filesystem := strings.ToLower(cfg.Filesystem)

	switch filesystem {
	case config.FilesystemLocal:
		return NewLocalFileStorage(cfg)
	case config.FilesystemS3:
		return NewS3FileStorage(ctx, cfg)
	}

	return nil, fmt.Errorf("%w: %s", config.ErrInvalidFilesystem, cfg.Filesystem)
}
