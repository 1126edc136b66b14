package publisher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/services/filestorage"
	"go.uber.org/zap/zaptest"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPublishLocal(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"config.json":                                 "{}",
		"weights/model.safetensors":                   "weights",
		".cache/huggingface/download/config.json.lock": "",
	})
	if err := os.Symlink(filepath.Join(src, "config.json"), filepath.Join(src, "alias.json")); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	storage, err := filestorage.NewLocalFileStorage(&config.Config{Filesystem: config.FilesystemLocal, PublishDir: root})
	if err != nil {
		t.Fatal(err)
	}

	p := NewPublisher(storage, 2, zaptest.NewLogger(t))
	defer p.Stop()

	n, err := p.Publish(context.Background(), src, "sample")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Publish() uploaded %d files, want 3", n)
	}

	for _, name := range []string{"config.json", "alias.json", "weights/model.safetensors"} {
		if _, err := os.Stat(filepath.Join(root, "sample", filepath.FromSlash(name))); err != nil {
			t.Errorf("%s not published: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "sample", ".cache")); !os.IsNotExist(err) {
		t.Error("client cache directory was published")
	}
}

type failingStorage struct {
	mu   sync.Mutex
	keys []string
}

func (f *failingStorage) Upload(ctx context.Context, file filestorage.FileInfo) (string, error) {
	f.mu.Lock()
	f.keys = append(f.keys, file.Key)
	f.mu.Unlock()
	if strings.HasSuffix(file.Key, "bad.bin") {
		return "", errors.New("upload refused")
	}
	return "mem://" + file.Key, nil
}

func TestPublishContinuesAfterFailure(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.bin": "a", "bad.bin": "b", "c/d.bin": "d"})

	storage := &failingStorage{}
	p := NewPublisher(storage, 1, zaptest.NewLogger(t))
	defer p.Stop()

	n, err := p.Publish(context.Background(), src, "org")
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 2 {
		t.Errorf("uploaded %d, want 2", n)
	}

	sort.Strings(storage.keys)
	want := []string{"org/a.bin", "org/bad.bin", "org/c/d.bin"}
	if strings.Join(storage.keys, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", storage.keys, want)
	}
}

func TestPublishMissingDir(t *testing.T) {
	p := NewPublisher(&failingStorage{}, 1, zaptest.NewLogger(t))
	defer p.Stop()

	if _, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing"), "x"); err == nil {
		t.Error("expected error for missing dir")
	}
}
