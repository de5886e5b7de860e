// Package mysql provides the MySQL dialect over go-sql-driver/mysql.
package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/xingh/glue/drivers/db"
)

// Dialect spells SQL for MySQL.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (Dialect) Limit(index, count int) string {
	return fmt.Sprintf("LIMIT %d,%d", index, count)
}

func (Dialect) Upsert(table string, columns, values []string) string {
	return "REPLACE INTO " + table + " (" + strings.Join(columns, ",") + ") VALUES (" + strings.Join(values, ",") + ")"
}

// Returning is empty: MySQL reports generated keys through LastInsertId.
func (Dialect) Returning(string) string { return "" }

// DefaultValues uses an empty column list; MySQL has no DEFAULT VALUES form.
func (Dialect) DefaultValues() string { return "() VALUES ()" }

// Options configure Open.
type Options struct {
	Pool   db.Pool
	Logger *slog.Logger
}

// Open connects to MySQL. The DSN is parsed first so that time columns scan into
// time.Time (parseTime) regardless of how the DSN was written.
func Open(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: invalid dsn: %w", err)
	}
	cfg.ParseTime = true
	return db.Connect(ctx, "mysql", cfg.FormatDSN(), opts.Pool, opts.Logger)
}
