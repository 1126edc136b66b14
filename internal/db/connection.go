package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/cozy-creator/hf-mirror/internal/db/drivers"
	"github.com/cozy-creator/hf-mirror/internal/db/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

// NewConnection picks a driver from the DSN scheme: postgres:// and
// postgresql:// use pgdriver, libsql:// uses the libSQL client and anything
// else is treated as a local SQLite DSN.
func NewConnection(ctx context.Context, dsn string) (drivers.Driver, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return drivers.NewPGDriver(ctx, dsn)
	case strings.HasPrefix(dsn, "libsql://"):
		return drivers.NewLibSQLDriver(ctx, dsn)
	default:
		return drivers.NewLocalSQLiteDriver(ctx, dsn)
	}
}

// Open connects to dsn, installs the query debug hook (BUNDEBUG=1 or 2 turns
// it on) and applies pending migrations.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	driver, err := NewConnection(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := driver.GetDB()
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv(),
	))

	if _, err := migrations.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
