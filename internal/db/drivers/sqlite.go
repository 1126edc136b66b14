package drivers

import (
	"context"
	"database/sql"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const LibSQLDriverName = "libsql"

type SQLiteDriver struct {
	db *bun.DB
}

// NewSQLiteDriver opens a SQLite compatible database. name selects the
// database/sql driver: sqliteshim for local files, libsql for remote libSQL.
func NewSQLiteDriver(ctx context.Context, name, dsn string) (*SQLiteDriver, error) {
	sqldb, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}

	if name == sqliteshim.ShimName && strings.Contains(dsn, "mode=memory") {
		// every connection to a private in-memory database is a new database
		sqldb.SetMaxOpenConns(1)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, err
	}

	return &SQLiteDriver{db: bun.NewDB(sqldb, sqlitedialect.New())}, nil
}

func NewLocalSQLiteDriver(ctx context.Context, dsn string) (*SQLiteDriver, error) {
	return NewSQLiteDriver(ctx, sqliteshim.ShimName, dsn)
}

func NewLibSQLDriver(ctx context.Context, dsn string) (*SQLiteDriver, error) {
	return NewSQLiteDriver(ctx, LibSQLDriverName, dsn)
}

func (d *SQLiteDriver) GetDB() *bun.DB {
	return d.db
}
