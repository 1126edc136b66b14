package repository

import (
	"context"

	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/uptrace/bun"
)

type IEventRepository interface {
	WithTx(tx *bun.Tx) IEventRepository
	CreateMany(ctx context.Context, events []*models.Event) error
	ListByRunID(ctx context.Context, runID string) ([]models.Event, error)
}

type EventRepository struct {
	db bun.IDB
}

func NewEventRepository(db *bun.DB) IEventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) CreateMany(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	_, err := r.db.NewInsert().Model(&events).Exec(ctx)
	return err
}

func (r *EventRepository) ListByRunID(ctx context.Context, runID string) ([]models.Event, error) {
	var events []models.Event
	if err := r.db.NewSelect().Model(&events).Where("run_id = ?", runID).Order("seq ASC").Scan(ctx); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *EventRepository) WithTx(tx *bun.Tx) IEventRepository {
	return &EventRepository{db: tx}
}
