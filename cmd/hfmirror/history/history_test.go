package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/cozy-creator/hf-mirror/internal/services/history"
	"github.com/google/uuid"
)

func TestWriteRuns(t *testing.T) {
	var out strings.Builder
	runs := []models.Run{{
		ID:         uuid.MustParse("6f1c1a52-7f0e-4a43-9d8a-1f4f2a0c9a11"),
		Model:      "org/sample",
		Status:     models.RunStatusSucceeded,
		FinalState: "succeeded",
		Attempts:   4,
		CreatedAt:  time.Now(),
	}}

	if err := writeRuns(&out, runs); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	for _, want := range []string{"6f1c1a52", "org/sample", "succeeded", "4"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
}

func TestWriteDetails(t *testing.T) {
	var out strings.Builder
	details := &history.RunDetails{
		Run: &models.Run{Model: "org/sample", Status: models.RunStatusFailed, FinalState: "failed", Error: "boom"},
		Attempts: []models.AttemptData{
			{Phase: "accelerated", Number: 1, ExitCode: 1, DurationMs: 1500},
			{Phase: "standard", Number: 1, ExitCode: 2, Error: "killed"},
		},
		Published: &models.PublishedData{Files: 2},
	}

	if err := writeDetails(&out, details); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"org/sample", "Error:     boom", "accelerated", "1.5s", "killed", "Published 2 files"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
