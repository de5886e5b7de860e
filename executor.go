package glue

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// executor runs Commands against a *sqlx.DB or *sqlx.Tx. Named parameters are bound by
// sqlx and rebound to the driver's placeholder style.
type executor struct {
	ext    sqlx.ExtContext
	logger *slog.Logger
}

func (x *executor) bind(cmd Command) (string, []interface{}, error) {
	params := map[string]interface{}(cmd.Params)
	if params == nil {
		params = map[string]interface{}{}
	}
	return x.ext.BindNamed(cmd.Text, params)
}

// Reader runs a query and returns its cursor. The caller closes the rows.
func (x *executor) Reader(ctx context.Context, cmd Command) (*sqlx.Rows, error) {
	query, args, err := x.bind(cmd)
	if err != nil {
		return nil, err
	}
	x.logger.Debug("DB Query", "sql", query, "args", len(args))
	return x.ext.QueryxContext(ctx, query, args...)
}

// NonQuery runs a statement that returns no rows.
func (x *executor) NonQuery(ctx context.Context, cmd Command) (sql.Result, error) {
	query, args, err := x.bind(cmd)
	if err != nil {
		return nil, err
	}
	x.logger.Debug("DB Exec", "sql", query, "args", len(args))
	return x.ext.ExecContext(ctx, query, args...)
}

// Scalar runs a query and scans the first column of its first row into dest. It
// returns false when the query yields no row.
func (x *executor) Scalar(ctx context.Context, cmd Command, dest interface{}) (bool, error) {
	query, args, err := x.bind(cmd)
	if err != nil {
		return false, err
	}
	x.logger.Debug("DB Scalar", "sql", query, "args", len(args))
	err = x.ext.QueryRowxContext(ctx, query, args...).Scan(dest)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
