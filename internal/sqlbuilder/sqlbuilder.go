package sqlbuilder

import (
	"strings"

	"github.com/xingh/glue/internal/utils"
)

// Dialect describes how a store spells the handful of constructs the builder needs.
type Dialect interface {
	// Name identifies the dialect ("sqlite", "mysql", "postgres").
	Name() string
	// Quote wraps an identifier (table or column name) to tolerate reserved words.
	Quote(identifier string) string
	// Limit renders the pagination clause for a window of count rows starting at index.
	Limit(index, count int) string
	// Upsert renders an insert that replaces or keeps an existing row with the same key.
	// table and columns are already quoted; values are parameter placeholders.
	Upsert(table string, columns, values []string) string
	// Returning renders the INSERT suffix that returns the generated identity column, or
	// "" when the dialect reports it through sql.Result.LastInsertId.
	Returning(column string) string
	// DefaultValues renders the INSERT body for a row whose columns all take defaults.
	DefaultValues() string
}

// Parameter names used by the many-to-many statements.
const (
	OwnerKeyParam = "glue_owner"
	LeftKeyParam  = "glue_left"
	RightKeyParam = "glue_right"
)

// Builder assembles SQL text for one dialect. All values travel as named parameters
// (":name"); nothing is ever concatenated into the text.
type Builder struct {
	d Dialect
}

// New creates a builder for the dialect.
func New(d Dialect) *Builder {
	return &Builder{d: d}
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() Dialect {
	return b.d
}

// Param returns the named placeholder bound to column.
func Param(column string) string {
	return ":" + utils.ParamName(column)
}

func (b *Builder) columnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = b.d.Quote(c)
	}
	return strings.Join(quoted, ",")
}

func (b *Builder) assignments(columns []string, sep string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = b.d.Quote(c) + "=" + Param(c)
	}
	return strings.Join(parts, sep)
}

// SelectAll builds SELECT <columns> FROM <table>.
func (b *Builder) SelectAll(table string, columns []string) string {
	return "SELECT " + b.columnList(columns) + " FROM " + b.d.Quote(table)
}

// Find builds the select-all text filtered by every key column.
func (b *Builder) Find(table string, columns, keys []string) string {
	return b.SelectAll(table, columns) + " WHERE " + b.assignments(keys, " AND ")
}

// Insert builds INSERT INTO <table> (<columns>) VALUES (<params>), followed by the
// dialect's identity clause when returning names an auto key column.
func (b *Builder) Insert(table string, columns []string, returning string) string {
	var s strings.Builder
	s.WriteString("INSERT INTO ")
	s.WriteString(b.d.Quote(table))
	if len(columns) == 0 {
		s.WriteString(" ")
		s.WriteString(b.d.DefaultValues())
	} else {
		params := make([]string, len(columns))
		for i, c := range columns {
			params[i] = Param(c)
		}
		s.WriteString(" (")
		s.WriteString(b.columnList(columns))
		s.WriteString(") VALUES (")
		s.WriteString(strings.Join(params, ","))
		s.WriteString(")")
	}
	if returning != "" {
		if clause := b.d.Returning(b.d.Quote(returning)); clause != "" {
			s.WriteString(" ")
			s.WriteString(clause)
		}
	}
	return s.String()
}

// Update builds UPDATE <table> SET <set>=<params> WHERE <keys>=<params>.
func (b *Builder) Update(table string, set, keys []string) string {
	return "UPDATE " + b.d.Quote(table) + " SET " + b.assignments(set, ",") + " WHERE " + b.assignments(keys, " AND ")
}

// Delete builds DELETE FROM <table> WHERE <keys>=<params>.
func (b *Builder) Delete(table string, keys []string) string {
	return "DELETE FROM " + b.d.Quote(table) + " WHERE " + b.assignments(keys, " AND ")
}

// DeleteAll builds DELETE FROM <table> with an optional predicate.
func (b *Builder) DeleteAll(table, where string) string {
	return b.Clauses("DELETE FROM "+b.d.Quote(table), where, "", "")
}

// Count builds SELECT COUNT(*) FROM <table> with an optional predicate.
func (b *Builder) Count(table, where string) string {
	return b.Clauses("SELECT COUNT(*) FROM "+b.d.Quote(table), where, "", "")
}

// Pair builds the two-column select used by key/value maps.
func (b *Builder) Pair(table, key, value string) string {
	return "SELECT " + b.columnList([]string{key, value}) + " FROM " + b.d.Quote(table)
}

// Clauses appends the optional WHERE, ORDER BY and pagination clauses to base.
func (b *Builder) Clauses(base, where, order, limit string) string {
	var s strings.Builder
	s.WriteString(base)
	if where != "" {
		s.WriteString(" WHERE ")
		s.WriteString(where)
	}
	if order != "" {
		s.WriteString(" ORDER BY ")
		s.WriteString(order)
	}
	if limit != "" {
		s.WriteString(" ")
		s.WriteString(limit)
	}
	return s.String()
}

// Limit renders the dialect pagination clause.
func (b *Builder) Limit(index, count int) string {
	return b.d.Limit(index, count)
}

// JoinTable names the implicit join table of a many-to-many relation: the left table
// name followed by the right table name.
func JoinTable(left, right string) string {
	return left + right
}

// ManyToMany selects the rows of target related to one owner row through join:
//
//	SELECT target.* FROM target INNER JOIN join ON target.targetKey=join.targetKey
//	WHERE join.ownerKey=:glue_owner [AND (where)]
func (b *Builder) ManyToMany(target, join, targetKey, ownerKey, where, order, limit string) string {
	t, j := b.d.Quote(target), b.d.Quote(join)
	var s strings.Builder
	s.WriteString("SELECT ")
	s.WriteString(t)
	s.WriteString(".* FROM ")
	s.WriteString(t)
	s.WriteString(" INNER JOIN ")
	s.WriteString(j)
	s.WriteString(" ON ")
	s.WriteString(t + "." + b.d.Quote(targetKey))
	s.WriteString("=")
	s.WriteString(j + "." + b.d.Quote(targetKey))
	pred := j + "." + b.d.Quote(ownerKey) + "=:" + OwnerKeyParam
	if where != "" {
		pred += " AND (" + where + ")"
	}
	return b.Clauses(s.String(), pred, order, limit)
}

// Link builds the idempotent insert of one join-table row.
func (b *Builder) Link(join, leftKey, rightKey string) string {
	return b.d.Upsert(b.d.Quote(join),
		[]string{b.d.Quote(leftKey), b.d.Quote(rightKey)},
		[]string{":" + LeftKeyParam, ":" + RightKeyParam})
}

// Unlink builds the delete of one join-table row.
func (b *Builder) Unlink(join, leftKey, rightKey string) string {
	return "DELETE FROM " + b.d.Quote(join) + " WHERE " +
		b.d.Quote(leftKey) + "=:" + LeftKeyParam + " AND " + b.d.Quote(rightKey) + "=:" + RightKeyParam
}
