package migrations

import (
	"context"

	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.Event)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewCreateIndex().
			Model((*models.Event)(nil)).
			Index("events_run_id_idx").
			IfNotExists().
			Column("run_id", "seq").
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().Model((*models.Event)(nil)).IfExists().Exec(ctx)
		return err
	})
}
