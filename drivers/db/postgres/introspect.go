package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	driversSchema "github.com/xingh/glue/drivers/schema"
)

// Introspector implements schema.Introspector for PostgreSQL.
type Introspector struct {
	DB *sqlx.DB
}

const columnsQuery = `SELECT c.column_name, c.data_type, c.is_nullable,
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	) AS is_primary
	FROM information_schema.columns c
	WHERE c.table_schema = current_schema() AND c.table_name = $1
	ORDER BY c.ordinal_position`

// TableInfo reads the columns of table from information_schema in the current schema.
func (pi *Introspector) TableInfo(ctx context.Context, table string) (*driversSchema.TableInfo, error) {
	if pi.DB == nil {
		return nil, fmt.Errorf("postgres introspector: DB is nil")
	}
	rows, err := pi.DB.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("information_schema.columns failed: %w", err)
	}
	defer rows.Close()

	info := &driversSchema.TableInfo{Name: table}
	for rows.Next() {
		var name, dataType, nullable string
		var primary bool
		if err := rows.Scan(&name, &dataType, &nullable, &primary); err != nil {
			return nil, fmt.Errorf("scan columns: %w", err)
		}
		info.Columns = append(info.Columns, driversSchema.ColumnInfo{
			Name:       name,
			DataType:   dataType,
			IsNullable: nullable == "YES",
			IsPrimary:  primary,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns rows: %w", err)
	}
	if len(info.Columns) == 0 {
		return nil, nil
	}
	return info, nil
}
