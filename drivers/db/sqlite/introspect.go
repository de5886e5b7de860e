package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	driversSchema "github.com/xingh/glue/drivers/schema"
)

// Introspector implements schema.Introspector for SQLite.
type Introspector struct {
	DB *sqlx.DB
}

// TableInfo reads the columns of table with PRAGMA table_info.
func (si *Introspector) TableInfo(ctx context.Context, table string) (*driversSchema.TableInfo, error) {
	if si.DB == nil {
		return nil, fmt.Errorf("sqlite introspector: DB is nil")
	}
	rows, err := si.DB.QueryContext(ctx, "PRAGMA table_info("+Dialect{}.Quote(table)+")")
	if err != nil {
		return nil, fmt.Errorf("PRAGMA table_info failed: %w", err)
	}
	defer rows.Close()

	info := &driversSchema.TableInfo{Name: table}
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &def, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info: %w", err)
		}
		info.Columns = append(info.Columns, driversSchema.ColumnInfo{
			Name:       name,
			DataType:   colType,
			IsNullable: notNull == 0,
			IsPrimary:  pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table_info rows: %w", err)
	}
	if len(info.Columns) == 0 {
		return nil, nil
	}
	return info, nil
}
