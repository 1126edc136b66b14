package mirror

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/services/invoker"
	"github.com/cozy-creator/hf-mirror/internal/services/materializer"
	"github.com/cozy-creator/hf-mirror/internal/utils/pathutil"
	"github.com/google/uuid"
)

var (
	ErrEmptyModel      = errors.New("model identifier is required")
	ErrInvalidRepoType = errors.New("repo type must be one of model, dataset, space")
	ErrDownloadFailed  = errors.New("download failed")

	ErrSaveDirRequired      = errors.New("materialize and publish require a save directory")
	ErrPublisherUnavailable = errors.New("publishing requested but no file storage is available")
)

var repoTypes = map[string]bool{"": true, "model": true, "dataset": true, "space": true}

// Request is one download run as requested by a caller.
type Request struct {
	ID                  uuid.UUID `json:"-"`
	Model               string    `json:"model" binding:"required"`
	SaveDir             string    `json:"save_dir"`
	Flat                bool      `json:"flat"`
	Token               string    `json:"token"`
	RepoType            string    `json:"repo_type"`
	Revision            string    `json:"revision"`
	Accelerate          bool      `json:"accelerate"`
	MaterializeSymlinks bool      `json:"materialize_symlinks"`
	VerifyCopies        bool      `json:"verify_copies"`
	Publish             bool      `json:"publish"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return ErrEmptyModel
	}
	if !repoTypes[r.RepoType] {
		return fmt.Errorf("%w: %q", ErrInvalidRepoType, r.RepoType)
	}
	if r.SaveDir == "" && (r.MaterializeSymlinks || r.Publish) {
		return ErrSaveDirRequired
	}
	return nil
}

// ModelName is the last segment of the model identifier.
func (r Request) ModelName() string {
	return pathutil.LastSegment(r.Model)
}

// LocalDir is where the client writes files: save_dir/<model name>, or
// save_dir itself when Flat is set. Empty when no save dir was given.
func (r Request) LocalDir() string {
	if r.SaveDir == "" {
		return ""
	}
	if r.Flat {
		return r.SaveDir
	}
	return filepath.Join(r.SaveDir, r.ModelName())
}

// Result reports the outcome of a run. Download failures are reported through
// Succeeded and State, Err carries the cause when the run could not proceed.
type Result struct {
	ID           uuid.UUID
	Request      Request
	State        State
	Succeeded    bool
	LocalDir     string
	Attempts     []invoker.Attempt
	Materialized *materializer.Report
	Published    int
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (r *Result) fail(err error) {
	r.Succeeded = false
	r.State = StateFailed
	if r.Err == nil {
		r.Err = err
	} else {
		r.Err = errors.Join(r.Err, err)
	}
}
