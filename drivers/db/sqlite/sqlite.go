// Package sqlite provides the SQLite dialect. The default driver is mattn/go-sqlite3;
// the pure Go modernc.org/sqlite driver is available for cgo-free builds.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver (cgo)
	_ "modernc.org/sqlite"          // SQLite driver (pure Go)

	"github.com/xingh/glue/drivers/db"
)

// Driver names accepted by Open.
const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Dialect spells SQL for SQLite.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) Limit(index, count int) string {
	if index > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", count, index)
	}
	return fmt.Sprintf("LIMIT %d", count)
}

func (Dialect) Upsert(table string, columns, values []string) string {
	return "INSERT OR REPLACE INTO " + table + " (" + strings.Join(columns, ",") + ") VALUES (" + strings.Join(values, ",") + ")"
}

// Returning is empty: SQLite reports generated keys through LastInsertId.
func (Dialect) Returning(string) string { return "" }

func (Dialect) DefaultValues() string { return "DEFAULT VALUES" }

// Options configure Open.
type Options struct {
	Driver string // DriverCgo (default) or DriverPureGo
	Pool   db.Pool
	Logger *slog.Logger
}

// Open connects to the SQLite database at dsn.
func Open(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverCgo
	}
	if driver != DriverCgo && driver != DriverPureGo {
		return nil, fmt.Errorf("sqlite: unknown driver %q", driver)
	}
	return db.Connect(ctx, driver, dsn, opts.Pool, opts.Logger)
}

func init() {
	// sqlx does not know the modernc driver name; it takes ? placeholders.
	sqlx.BindDriver(DriverPureGo, sqlx.QUESTION)
}
