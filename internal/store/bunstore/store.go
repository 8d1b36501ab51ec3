package bunstore

import (
	"context"
	"database/sql"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Open connects to Postgres and returns a bun DB handle.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate creates the backing tables when they do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*store.User)(nil),
		(*store.Group)(nil),
		(*store.GroupMember)(nil),
		(*store.Message)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
