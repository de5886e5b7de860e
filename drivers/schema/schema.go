// Package schema describes live tables as reported by the database, so mapped entities
// can be checked against them.
package schema

import (
	"context"
	"strings"
)

// TableInfo holds the actual schema info introspected from the database.
type TableInfo struct {
	Name    string       // Table name
	Columns []ColumnInfo // All columns, in table order
}

// ColumnInfo holds metadata for a single column in a table.
type ColumnInfo struct {
	Name       string // Column name
	DataType   string // Database type (e.g., INT, VARCHAR(255))
	IsNullable bool   // Whether the column is nullable
	IsPrimary  bool   // Whether this column is part of the primary key
}

// Column finds a column by name, ignoring case.
func (t *TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// PrimaryKey returns the primary key column names in table order.
func (t *TableInfo) PrimaryKey() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.IsPrimary {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Introspector reads table definitions from a live database.
type Introspector interface {
	// TableInfo introspects the given table. It returns nil and no error when the table
	// does not exist.
	TableInfo(ctx context.Context, table string) (*TableInfo, error)
}
