package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteExampleTemplates(t *testing.T) {
	home := t.TempDir()

	if err := WriteExampleTemplates(home); err != nil {
		t.Fatalf("WriteExampleTemplates: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(home, "config.example.yaml"))
	if err != nil {
		t.Fatalf("read config example: %v", err)
	}
	if !strings.Contains(string(data), "https://hf-mirror.com") {
		t.Errorf("config example does not mention the mirror endpoint")
	}

	if _, err := os.Stat(filepath.Join(home, ".env.example")); err != nil {
		t.Errorf("expected .env.example to exist: %v", err)
	}
}

func TestWriteExampleTemplatesKeepsExisting(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.example.yaml")
	if err := os.WriteFile(path, []byte("custom"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := WriteExampleTemplates(home); err != nil {
		t.Fatalf("WriteExampleTemplates: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "custom" {
		t.Errorf("expected existing file to be kept, got %q", data)
	}
}
