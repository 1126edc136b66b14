package janitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const (
	LocksDirName    = ".locks"
	LockFilePattern = "*.lock"
	RunLockName     = ".hf-mirror.lock"

	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = time.Second
)

// Janitor sweeps the lock files that the download client leaves under
// <cache>/.locks. It never owns those locks; it only deletes them.
type Janitor struct {
	cacheDir     string
	logger       *zap.Logger
	timeout      time.Duration
	pollInterval time.Duration
	remove       func(string) error
}

type OptionFunc func(j *Janitor)

func WithTimeout(timeout time.Duration) OptionFunc {
	return func(j *Janitor) {
		if timeout > 0 {
			j.timeout = timeout
		}
	}
}

func WithPollInterval(interval time.Duration) OptionFunc {
	return func(j *Janitor) {
		if interval > 0 {
			j.pollInterval = interval
		}
	}
}

func New(cacheDir string, logger *zap.Logger, options ...OptionFunc) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &Janitor{
		cacheDir:     cacheDir,
		logger:       logger.Named("janitor"),
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		remove:       os.Remove,
	}

	for _, opt := range options {
		opt(j)
	}

	return j
}

func (j *Janitor) CacheDir() string {
	return j.cacheDir
}

func (j *Janitor) Timeout() time.Duration {
	return j.timeout
}

// FindLockFiles returns every file matching <dir>/.locks/**/*.lock.
// A missing .locks directory yields no files and no error.
func FindLockFiles(dir string) ([]string, error) {
	root := filepath.Join(dir, LocksDirName)

	var locks []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		if ok, _ := filepath.Match(LockFilePattern, d.Name()); ok {
			locks = append(locks, path)
		}
		return nil
	})

	return locks, err
}

// ClearLockFiles deletes every lock file under dir. Failures are logged and
// skipped; the number of deleted files is returned.
func (j *Janitor) ClearLockFiles(dir string) int {
	locks, err := FindLockFiles(dir)
	if err != nil {
		j.logger.Warn("failed to scan lock files", zap.String("dir", dir), zap.Error(err))
	}

	removed := 0
	for _, lock := range locks {
		if err := j.remove(lock); err != nil {
			j.logger.Warn("failed to delete lock file", zap.String("lock_file", lock), zap.Error(err))
			continue
		}

		removed++
		j.logger.Info("deleted lock file", zap.String("lock_file", lock))
	}

	return removed
}

// Sweep clears the lock files of the janitor's cache directory.
func (j *Janitor) Sweep() int {
	return j.ClearLockFiles(j.cacheDir)
}

// WaitForLockRelease polls until lockFile disappears. When timeout elapses
// first, the file is force-deleted. Cancelling ctx stops the wait and leaves
// the file alone.
func (j *Janitor) WaitForLockRelease(ctx context.Context, lockFile string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = j.timeout
	}

	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(lockFile); errors.Is(err, fs.ErrNotExist) {
			return
		}

		if time.Now().After(deadline) {
			j.forceDelete(lockFile)
			return
		}

		select {
		case <-ctx.Done():
			j.logger.Warn("stopped waiting for lock release", zap.String("lock_file", lockFile), zap.Error(ctx.Err()))
			return
		case <-time.After(j.pollInterval):
		}
	}
}

// WaitForAll waits on every lock file still present under dir, one after the
// other, and returns how many were found.
func (j *Janitor) WaitForAll(ctx context.Context, dir string) int {
	locks, err := FindLockFiles(dir)
	if err != nil {
		j.logger.Warn("failed to scan lock files", zap.String("dir", dir), zap.Error(err))
	}

	for _, lock := range locks {
		if ctx.Err() != nil {
			break
		}
		j.logger.Info("waiting for lock release", zap.String("lock_file", lock), zap.Duration("timeout", j.timeout))
		j.WaitForLockRelease(ctx, lock, j.timeout)
	}

	return len(locks)
}

func (j *Janitor) forceDelete(lockFile string) {
	if err := j.remove(lockFile); err != nil {
		j.logger.Warn("failed to force delete lock file", zap.String("lock_file", lockFile), zap.Error(err))
		return
	}

	j.logger.Info("force deleted lock file", zap.String("lock_file", lockFile))
}

// AcquireRunLock takes an advisory lock on <cache>/.hf-mirror.lock so two
// runs do not sweep each other's locks. It blocks until the lock is free or
// ctx is done. The returned func releases the lock.
func (j *Janitor) AcquireRunLock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(j.cacheDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(j.cacheDir, RunLockName)
	fileLock := flock.New(path)

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	if !locked {
		j.logger.Info("another run holds the cache, waiting", zap.String("run_lock", path))
		locked, err = fileLock.TryLockContext(ctx, j.pollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", path, err)
		}
		if !locked {
			return nil, fmt.Errorf("failed to lock %s", path)
		}
	}

	release := func() {
		if err := fileLock.Unlock(); err != nil {
			j.logger.Warn("failed to release run lock", zap.String("run_lock", path), zap.Error(err))
		}
	}

	return release, nil
}
