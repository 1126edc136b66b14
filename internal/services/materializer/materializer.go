package materializer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/utils/hashutil"
	"github.com/cozy-creator/hf-mirror/internal/utils/pathutil"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

const tempSuffix = ".hf-mirror-tmp"

var (
	ErrNotDirectory     = errors.New("materialize target is not a directory")
	ErrDanglingLink     = errors.New("symbolic link target does not exist")
	ErrLinkCycle        = errors.New("symbolic link points to one of its ancestors")
	ErrChecksumMismatch = errors.New("copy does not match link target")
)

// Report summarizes one materialization pass.
type Report struct {
	Files   int
	Dirs    int
	Bytes   int64
	Skipped []string
}

// Materializer replaces every symbolic link under a directory with a real
// copy of what it points to.
type Materializer struct {
	verify   bool
	progress io.Writer
	logger   *zap.Logger
}

type OptionFunc func(m *Materializer)

// WithVerify compares BLAKE3 digests of each copied file with its source.
func WithVerify(verify bool) OptionFunc {
	return func(m *Materializer) {
		m.verify = verify
	}
}

// WithProgress renders a progress bar per copied file to w.
func WithProgress(w io.Writer) OptionFunc {
	return func(m *Materializer) {
		m.progress = w
	}
}

func New(logger *zap.Logger, options ...OptionFunc) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Materializer{logger: logger.Named("materializer")}
	for _, opt := range options {
		opt(m)
	}

	return m
}

// Verifying returns a copy of m with copy verification switched on or off.
func (m *Materializer) Verifying(verify bool) *Materializer {
	c := *m
	c.verify = verify
	return &c
}

type pass struct {
	*Materializer
	ctx      context.Context
	report   *Report
	progress *mpb.Progress
}

// Materialize walks dir following links. Within each directory file entries
// are handled before subdirectories, and links to directories are copied
// recursively. Links whose targets are missing are skipped and reported in
// the returned error; the remaining entries are still processed.
func (m *Materializer) Materialize(ctx context.Context, dir string) (*Report, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	p := &pass{Materializer: m, ctx: ctx, report: &Report{}}
	if m.progress != nil {
		p.progress = mpb.New(
			mpb.WithOutput(m.progress),
			mpb.WithWidth(60),
			mpb.WithRefreshRate(180*time.Millisecond),
		)
	}

	m.logger.Info("materializing symbolic links", zap.String("dir", dir))
	err = p.walk(dir)

	if p.progress != nil {
		p.progress.Wait()
	}

	m.logger.Info("materialization finished",
		zap.String("dir", dir),
		zap.Int("files", p.report.Files),
		zap.Int("dirs", p.report.Dirs),
		zap.Int64("bytes", p.report.Bytes),
		zap.Int("skipped", len(p.report.Skipped)),
	)

	return p.report, err
}

func (p *pass) walk(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var files, dirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			dirs = append(dirs, path)
			continue
		}
		files = append(files, path)
	}

	var errs []error
	for _, path := range files {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		if !pathutil.IsSymlink(path) {
			continue
		}
		if err := p.replaceFile(path); err != nil {
			p.skip(path, err)
			errs = append(errs, err)
			continue
		}
		p.report.Files++
	}

	for _, path := range dirs {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		if pathutil.IsSymlink(path) {
			if err := p.replaceDir(path); err != nil {
				p.skip(path, err)
				errs = append(errs, err)
				continue
			}
			p.report.Dirs++
		}
		if err := p.walk(path); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (p *pass) skip(path string, err error) {
	p.report.Skipped = append(p.report.Skipped, path)
	p.logger.Warn("failed to materialize link", zap.String("path", path), zap.Error(err))
}

func (p *pass) replaceFile(link string) error {
	target, err := filepath.EvalSymlinks(link)
	if err != nil {
		return statError(link, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return statError(link, err)
	}

	tmp := link + tempSuffix
	if err := p.copyFile(target, tmp, info); err != nil {
		os.Remove(tmp)
		return err
	}

	// rename replaces the link itself, not its target
	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", link, err)
	}

	p.logger.Debug("materialized file", zap.String("path", link), zap.String("target", target))
	return nil
}

func (p *pass) replaceDir(link string) error {
	target, err := filepath.EvalSymlinks(link)
	if err != nil {
		return statError(link, err)
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(link))
	if err != nil {
		return err
	}
	if parent == target || strings.HasPrefix(parent, target+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s -> %s", ErrLinkCycle, link, target)
	}

	tmp := link + tempSuffix
	if err := p.copyTree(target, tmp, map[string]bool{target: true}); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	if err := os.Remove(link); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("failed to remove link %s: %w", link, err)
	}
	if err := os.Rename(tmp, link); err != nil {
		return fmt.Errorf("failed to replace %s: %w", link, err)
	}

	p.logger.Debug("materialized directory", zap.String("path", link), zap.String("target", target))
	return nil
}

// copyTree copies src into dst following any links found inside src.
// ancestors holds the resolved paths of the directories being copied above
// src; a link back into one of them is a cycle.
func (p *pass) copyTree(src, dst string, ancestors map[string]bool) error {
	info, err := os.Stat(src)
	if err != nil {
		return statError(src, err)
	}

	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		entryInfo, err := os.Stat(from)
		if err != nil {
			return statError(from, err)
		}

		if entryInfo.IsDir() {
			real, err := filepath.EvalSymlinks(from)
			if err != nil {
				return statError(from, err)
			}
			if ancestors[real] {
				return fmt.Errorf("%w: %s -> %s", ErrLinkCycle, from, real)
			}

			ancestors[real] = true
			err = p.copyTree(from, to, ancestors)
			delete(ancestors, real)
			if err != nil {
				return err
			}
			continue
		}

		if err := p.copyFile(from, to, entryInfo); err != nil {
			return err
		}
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// copyFile copies contents, permission bits and modification time.
func (p *pass) copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	var reader io.Reader = in
	var bar *mpb.Bar
	if p.progress != nil {
		bar = p.progress.AddBar(info.Size(),
			mpb.PrependDecorators(
				decor.Name(filepath.Base(dst), decor.WC{W: 40, C: decor.DidentRight}),
				decor.CountersKibiByte("% .2f / % .2f"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
		reader = bar.ProxyReader(in)
	}

	n, err := io.Copy(out, reader)
	if bar != nil {
		if err != nil {
			bar.Abort(false)
		} else {
			bar.SetTotal(-1, true)
		}
	}
	if err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	// the umask may have narrowed the requested mode
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return err
	}

	if p.verify {
		if err := verifyCopy(src, dst); err != nil {
			return err
		}
	}

	p.report.Bytes += n
	return nil
}

// statError classifies a failed stat of a link target. Only a missing target
// is a dangling link; too many levels of links means a cycle.
func statError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %v", ErrDanglingLink, path, err)
	case errors.Is(err, syscall.ELOOP):
		return fmt.Errorf("%w: %s: %v", ErrLinkCycle, path, err)
	default:
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
}

func verifyCopy(src, dst string) error {
	want, err := hashutil.Blake3File(src)
	if err != nil {
		return err
	}

	got, err := hashutil.Blake3File(dst)
	if err != nil {
		return err
	}

	if got != want {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, dst)
	}

	return nil
}
