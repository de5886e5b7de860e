// Package postgres provides the PostgreSQL dialect. The default driver is pgx through
// its database/sql adapter; lib/pq remains selectable.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers "postgres"

	"github.com/xingh/glue/drivers/db"
)

// Driver names accepted by Open.
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// Dialect spells SQL for PostgreSQL.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) Limit(index, count int) string {
	if index > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", count, index)
	}
	return fmt.Sprintf("LIMIT %d", count)
}

// Upsert keeps the existing row on a key conflict. Join-table rows carry no payload, so
// keeping and replacing are equivalent.
func (Dialect) Upsert(table string, columns, values []string) string {
	return "INSERT INTO " + table + " (" + strings.Join(columns, ",") + ") VALUES (" + strings.Join(values, ",") + ") ON CONFLICT DO NOTHING"
}

// Returning asks INSERT to hand back the generated key; lib/pq and pgx do not
// implement LastInsertId.
func (Dialect) Returning(column string) string {
	return "RETURNING " + column
}

func (Dialect) DefaultValues() string { return "DEFAULT VALUES" }

// Options configure Open.
type Options struct {
	Driver string // DriverPgx (default) or DriverPq
	Pool   db.Pool
	Logger *slog.Logger
}

// Open connects to PostgreSQL.
func Open(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverPgx
	}
	if driver != DriverPgx && driver != DriverPq {
		return nil, fmt.Errorf("postgres: unknown driver %q", driver)
	}
	return db.Connect(ctx, driver, dsn, opts.Pool, opts.Logger)
}
