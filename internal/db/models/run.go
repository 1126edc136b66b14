package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type Run struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID         uuid.UUID    `bun:",type:uuid,pk" json:"id"`
	Model      string       `bun:",notnull" json:"model"`
	RepoType   string       `bun:",notnull" json:"repo_type,omitempty"`
	Revision   string       `bun:",notnull" json:"revision,omitempty"`
	LocalDir   string       `bun:",notnull" json:"local_dir,omitempty"`
	Accelerate bool         `bun:",notnull" json:"accelerate"`
	Status     RunStatus    `bun:",notnull" json:"status"`
	FinalState string       `bun:",notnull" json:"final_state,omitempty"`
	Attempts   int          `bun:",notnull" json:"attempts"`
	Error      string       `bun:",notnull" json:"error,omitempty"`
	CreatedAt  time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	FinishedAt bun.NullTime `bun:",nullzero" json:"finished_at"`
}
