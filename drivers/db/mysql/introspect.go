package mysql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	driversSchema "github.com/xingh/glue/drivers/schema"
)

// Introspector implements schema.Introspector for MySQL.
type Introspector struct {
	DB *sqlx.DB
}

// TableInfo reads the columns of table from information_schema in the current database.
func (mi *Introspector) TableInfo(ctx context.Context, table string) (*driversSchema.TableInfo, error) {
	if mi.DB == nil {
		return nil, fmt.Errorf("mysql introspector: DB is nil")
	}
	rows, err := mi.DB.QueryContext(ctx, `SELECT column_name, column_type, is_nullable, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("information_schema.columns failed: %w", err)
	}
	defer rows.Close()

	info := &driversSchema.TableInfo{Name: table}
	for rows.Next() {
		var name, colType, nullable, key string
		if err := rows.Scan(&name, &colType, &nullable, &key); err != nil {
			return nil, fmt.Errorf("scan columns: %w", err)
		}
		info.Columns = append(info.Columns, driversSchema.ColumnInfo{
			Name:       name,
			DataType:   colType,
			IsNullable: nullable == "YES",
			IsPrimary:  key == "PRI",
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
