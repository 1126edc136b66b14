package migrations

import (
	"context"

	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.Run)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewCreateIndex().
			Model((*models.Run)(nil)).
			Index("runs_created_at_idx").
			IfNotExists().
			Column("created_at").
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().Model((*models.Run)(nil)).IfExists().Exec(ctx)
		return err
	})
}
