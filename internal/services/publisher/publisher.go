package publisher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/cozy-creator/hf-mirror/internal/services/filestorage"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

const DefaultMaxWorkers = 4

// skipDirs are client bookkeeping directories that are never published.
var skipDirs = map[string]bool{".cache": true, ".git": true}

// Publisher uploads a downloaded model tree to file storage on a bounded
// worker pool.
type Publisher struct {
	wp          *workerpool.WorkerPool
	filestorage filestorage.FileStorage
	logger      *zap.Logger
}

func NewPublisher(storage filestorage.FileStorage, maxWorkers int, logger *zap.Logger) *Publisher {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Publisher{
		wp:          workerpool.New(maxWorkers),
		filestorage: storage,
		logger:      logger.Named("publisher"),
	}
}

func (p *Publisher) Stop() {
	p.wp.StopWait()
}

// Publish uploads every regular file under dir with the key
// prefix/<path relative to dir>. It waits for all uploads and returns how
// many succeeded along with the joined upload errors.
func (p *Publisher) Publish(ctx context.Context, dir, prefix string) (int, error) {
	files, err := collectFiles(dir, prefix)
	if err != nil {
		return 0, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		uploaded int
		errs     []error
	)

	for _, file := range files {
		file := file
		wg.Add(1)
		p.wp.Submit(func() {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}

			url, err := p.filestorage.Upload(ctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error("failed to upload file", zap.String("key", file.Key), zap.Error(err))
				errs = append(errs, err)
				return
			}

			uploaded++
			p.logger.Debug("uploaded file", zap.String("key", file.Key), zap.String("url", url))
		})
	}

	wg.Wait()
	return uploaded, errors.Join(errs...)
}

func collectFiles(dir, prefix string) ([]filestorage.FileInfo, error) {
	var files []filestorage.FileInfo

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		// links to files are published with their target's content
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		key := path.Join(prefix, filepath.ToSlash(rel))
		files = append(files, filestorage.NewFileInfo(key, p, info.Size()))
		return nil
	})

	return files, err
}
