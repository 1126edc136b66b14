package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/cozy-creator/hf-mirror/internal/db/repository"
	"github.com/cozy-creator/hf-mirror/internal/services/mirror"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var ErrRunNotFound = errors.New("run not found")

var _ mirror.Recorder = (*Service)(nil)

// Service stores download runs and their attempts. It implements
// mirror.Recorder.
type Service struct {
	db     *bun.DB
	runs   repository.IRunRepository
	events repository.IEventRepository
	logger *zap.Logger
}

// RunDetails is a run with its decoded attempt log.
type RunDetails struct {
	Run          *models.Run              `json:"run"`
	Attempts     []models.AttemptData     `json:"attempts"`
	Materialized *models.MaterializedData `json:"materialized,omitempty"`
	Published    *models.PublishedData    `json:"published,omitempty"`
}

func NewService(db *bun.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		db:     db,
		runs:   repository.NewRunRepository(db),
		events: repository.NewEventRepository(db),
		logger: logger.Named("history"),
	}
}

// Queue records a request that has been accepted but not started.
func (s *Service) Queue(ctx context.Context, req mirror.Request) error {
	now := time.Now()
	return s.runs.Upsert(ctx, &models.Run{
		ID:         req.ID,
		Model:      req.Model,
		RepoType:   req.RepoType,
		Revision:   req.Revision,
		LocalDir:   req.LocalDir(),
		Accelerate: req.Accelerate,
		Status:     models.RunStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (s *Service) Start(ctx context.Context, result *mirror.Result) error {
	run := newRun(result)
	run.Status = models.RunStatusRunning
	return s.runs.Upsert(ctx, run)
}

// Finish stores the final state of the run together with one event per
// attempt and the post-processing summaries.
func (s *Service) Finish(ctx context.Context, result *mirror.Result) error {
	run := newRun(result)
	run.Status = models.RunStatusFailed
	if result.Succeeded {
		run.Status = models.RunStatusSucceeded
	}
	run.FinishedAt = bun.NullTime{Time: result.FinishedAt}

	events, err := newEvents(result)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.runs.WithTx(&tx).Upsert(ctx, run); err != nil {
			return err
		}
		if _, err := s.runs.WithTx(&tx).UpdateByID(ctx, run.ID.String(), run); err != nil {
			return err
		}
		return s.events.WithTx(&tx).CreateMany(ctx, events)
	})
}

func (s *Service) Recent(ctx context.Context, limit int) ([]models.Run, error) {
	return s.runs.List(ctx, limit)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*RunDetails, error) {
	run, err := s.runs.GetByID(ctx, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListByRunID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	details := &RunDetails{Run: run, Attempts: []models.AttemptData{}}
	for _, event := range events {
		switch event.Type {
		case models.EventTypeAttempt:
			var data models.AttemptData
			if err := event.Decode(&data); err != nil {
				return nil, err
			}
			details.Attempts = append(details.Attempts, data)
		case models.EventTypeMaterialized:
			details.Materialized = &models.MaterializedData{}
			if err := event.Decode(details.Materialized); err != nil {
				return nil, err
			}
		case models.EventTypePublished:
			details.Published = &models.PublishedData{}
			if err := event.Decode(details.Published); err != nil {
				return nil, err
			}
		}
	}

	return details, nil
}

func newRun(result *mirror.Result) *models.Run {
	req := result.Request
	run := &models.Run{
		ID:         result.ID,
		Model:      req.Model,
		RepoType:   req.RepoType,
		Revision:   req.Revision,
		LocalDir:   result.LocalDir,
		Accelerate: req.Accelerate,
		FinalState: string(result.State),
		Attempts:   len(result.Attempts),
		CreatedAt:  result.StartedAt,
		UpdatedAt:  time.Now(),
	}
	if result.Err != nil {
		run.Error = result.Err.Error()
	}

	return run
}

func newEvents(result *mirror.Result) ([]*models.Event, error) {
	var events []*models.Event
	add := func(eventType models.EventType, data interface{}) error {
		event, err := models.NewEvent(result.ID, len(events)+1, eventType, data)
		if err != nil {
			return err
		}
		events = append(events, event)
		return nil
	}

	for _, attempt := range result.Attempts {
		phase := string(mirror.StateStandard)
		if attempt.Accelerated {
			phase = string(mirror.StateAccelerated)
		}

		data := models.AttemptData{
			Phase:      phase,
			Number:     attempt.Number,
			ExitCode:   attempt.ExitCode,
			StartedAt:  attempt.StartedAt.Unix(),
			DurationMs: attempt.Duration.Milliseconds(),
		}
		if attempt.Err != nil {
			data.Error = attempt.Err.Error()
		}

		if err := add(models.EventTypeAttempt, data); err != nil {
			return nil, err
		}
	}

	if report := result.Materialized; report != nil {
		err := add(models.EventTypeMaterialized, models.MaterializedData{
			Files:   report.Files,
			Dirs:    report.Dirs,
			Bytes:   report.Bytes,
			Skipped: report.Skipped,
		})
		if err != nil {
			return nil, err
		}
	}

	if result.Published > 0 {
		if err := add(models.EventTypePublished, models.PublishedData{Files: result.Published}); err != nil {
			return nil, err
		}
	}

	return events, nil
}
