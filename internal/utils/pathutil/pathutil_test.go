package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/var/tmp", "/var/tmp"},
		{"relative/dir", "relative/dir"},
		{"~", home},
		{"~/.cache/huggingface/hub", filepath.Join(home, ".cache/huggingface/hub")},
	}

	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Errorf("ExpandPath(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandPathRejectsOtherUsers(t *testing.T) {
	_, err := ExpandPath("~bob/models")
	if !errors.Is(err, ErrUserHomeUnsupported) {
		t.Errorf("expected ErrUserHomeUnsupported, got %v", err)
	}
}

func TestLastSegment(t *testing.T) {
	tests := map[string]string{
		"org/sample":        "sample",
		"bert-base-uncased": "bert-base-uncased",
		"org/sample/":       "sample",
		"a/b/c":             "c",
	}

	for in, want := range tests {
		if got := LastSegment(in); got != want {
			t.Errorf("LastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if IsSymlink(target) {
		t.Error("regular file reported as symlink")
	}
	if !IsSymlink(link) {
		t.Error("symlink not detected")
	}
	if IsSymlink(filepath.Join(dir, "missing")) {
		t.Error("missing path reported as symlink")
	}
}
