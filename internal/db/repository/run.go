package repository

import (
	"context"
	"fmt"

	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/uptrace/bun"
)

const DefaultListLimit = 20

type IRunRepository interface {
	Repository[models.Run]
	WithTx(tx *bun.Tx) IRunRepository
	Upsert(ctx context.Context, run *models.Run) error
	List(ctx context.Context, limit int) ([]models.Run, error)
}

type RunRepository struct {
	db bun.IDB
}

func NewRunRepository(db *bun.DB) IRunRepository {
	return &RunRepository{db: db}
}

// Upsert inserts run or, when a row with the same id exists, refreshes its
// mutable columns and leaves created_at untouched.
func (r *RunRepository) Upsert(ctx context.Context, run *models.Run) error {
	if run == nil {
		return fmt.Errorf("run model is nil")
	}

	_, err := r.db.NewInsert().
		Model(run).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("local_dir = EXCLUDED.local_dir").
		Set("accelerate = EXCLUDED.accelerate").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	if err := r.db.NewSelect().Model(&run).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &run, nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var runs []models.Run
	if err := r.db.NewSelect().Model(&runs).Order("created_at DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *RunRepository) UpdateByID(ctx context.Context, id string, run *models.Run) (*models.Run, error) {
	if run == nil {
		return nil, fmt.Errorf("run model is nil")
	}

	_, err := r.db.NewUpdate().
		Model(run).
		ExcludeColumn("id", "created_at").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (r *RunRepository) WithTx(tx *bun.Tx) IRunRepository {
	return &RunRepository{db: tx}
}
