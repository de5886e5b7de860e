package glue

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/xingh/glue/internal/schema"
	"github.com/xingh/glue/internal/utils"
)

// read runs cmd and builds one instance of e per row, handing each to fn until fn
// returns false. Rows are read positionally in flattened column order, or by column
// name when dynamic is set.
func (s *session) read(ctx context.Context, op string, e *schema.Entity, cmd Command, dynamic bool, fn func(row reflect.Value) bool) error {
	if err := s.ready(); err != nil {
		return s.p.wrap(op, e, cmd.Text, err)
	}
	rows, err := s.exec.Reader(ctx, cmd)
	if err != nil {
		return s.p.wrap(op, e, cmd.Text, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return s.p.wrap(op, e, cmd.Text, err)
	}
	for rows.Next() {
		var row reflect.Value
		if dynamic {
			row, err = e.Accessor.ReadDynamic(rows, cols)
		} else {
			row, err = e.Accessor.ReadFixed(rows, cols, 0)
		}
		if err != nil {
			return s.p.wrap(op, e, cmd.Text, err)
		}
		if !fn(row) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return s.p.wrap(op, e, cmd.Text, err)
	}
	return nil
}

// selectCommand extends the select-all template of e with filter, order and limit. A
// non-empty table reads the entity's columns from that table or view instead.
func (s *session) selectCommand(e *schema.Entity, table string, filter Filter, order Order, limit Limit) (Command, error) {
	if err := filter.Err(); err != nil {
		return Command{}, err
	}
	base := s.p.selectAllSQL(e)
	if table != "" {
		base = s.p.builder.SelectAll(table, schema.ColumnNames(e.Columns()))
	}
	where, orderBy := "", ""
	if !filter.IsEmpty() {
		where = filter.SQL(s.p.dialect)
	}
	if !order.IsEmpty() {
		orderBy = order.SQL(s.p.dialect)
	}
	return Command{
		Text:   s.p.builder.Clauses(base, where, orderBy, limit.SQL(s.p.dialect)),
		Params: filter.Params(),
	}, nil
}

// sliceDest appends instances to a caller's *[]T or *[]*T.
type sliceDest struct {
	slice reflect.Value
	ptrs  bool
}

func newSliceDest(dest interface{}, e *schema.Entity) (*sliceDest, error) {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: expected a pointer to a slice of %s, got %T", ErrConfiguration, e.Type, dest)
	}
	d := &sliceDest{slice: v.Elem()}
	switch elem := d.slice.Type().Elem(); {
	case elem == e.Type:
	case elem.Kind() == reflect.Ptr && elem.Elem() == e.Type:
		d.ptrs = true
	default:
		return nil, fmt.Errorf("%w: expected []%s or []*%s, got %s", ErrConfiguration, e.Type, e.Type, d.slice.Type())
	}
	d.slice.Set(reflect.MakeSlice(d.slice.Type(), 0, 0))
	return d, nil
}

func (d *sliceDest) add(row reflect.Value) bool {
	if d.ptrs {
		d.slice.Set(reflect.Append(d.slice, row))
	} else {
		d.slice.Set(reflect.Append(d.slice, row.Elem()))
	}
	return true
}

// List loads the rows matching filter into dest (*[]T or *[]*T), in the given order,
// restricted to the limit window.
func (s *session) List(ctx context.Context, dest interface{}, filter Filter, order Order, limit Limit) error {
	return s.list(ctx, "List", "", dest, filter, order, limit)
}

// ListFrom is List reading the entity's columns from another table or view.
func (s *session) ListFrom(ctx context.Context, table string, dest interface{}, filter Filter, order Order, limit Limit) error {
	return s.list(ctx, "ListFrom", table, dest, filter, order, limit)
}

func (s *session) list(ctx context.Context, op, table string, dest interface{}, filter Filter, order Order, limit Limit) error {
	e, err := s.p.entity(dest)
	if err != nil {
		return s.p.wrap(op, nil, "", err)
	}
	out, err := newSliceDest(dest, e)
	if err != nil {
		return s.p.wrap(op, e, "", err)
	}
	cmd, err := s.selectCommand(e, table, filter, order, limit)
	if err != nil {
		return s.p.wrap(op, e, "", err)
	}
	return s.read(ctx, op, e, cmd, false, out.add)
}

// ListCommand runs cmd and loads every row into dest, matching result columns to
// fields by name. Unknown columns are ignored.
func (s *session) ListCommand(ctx context.Context, dest interface{}, cmd Command) error {
	const op = "ListCommand"
	e, err := s.p.entity(dest)
	if err != nil {
		return s.p.wrap(op, nil, cmd.Text, err)
	}
	out, err := newSliceDest(dest, e)
	if err != nil {
		return s.p.wrap(op, e, cmd.Text, err)
	}
	return s.read(ctx, op, e, cmd, true, out.add)
}

// Count returns the number of rows of proto's type matching filter. Counts beyond the
// 32-bit range fail with ErrCountOverflow; use CountInt64 for such tables.
func (s *session) Count(ctx context.Context, proto interface{}, filter Filter) (int, error) {
	n, err := s.CountInt64(ctx, proto, filter)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		e, _ := s.p.entity(proto)
		return 0, s.p.wrap("Count", e, "", fmt.Errorf("%w: %d rows", ErrCountOverflow, n))
	}
	return int(n), nil
}

// CountInt64 returns the number of rows of proto's type matching filter.
func (s *session) CountInt64(ctx context.Context, proto interface{}, filter Filter) (int64, error) {
	const op = "Count"
	e, err := s.p.entity(proto)
	if err != nil {
		return 0, s.p.wrap(op, nil, "", err)
	}
	if err := s.ready(); err != nil {
		return 0, s.p.wrap(op, e, "", err)
	}
	if err := filter.Err(); err != nil {
		return 0, s.p.wrap(op, e, "", err)
	}
	where := ""
	if !filter.IsEmpty() {
		where = filter.SQL(s.p.dialect)
	}
	text := s.p.builder.Count(e.Table, where)
	var n int64
	if _, err := s.exec.Scalar(ctx, Command{Text: text, Params: filter.Params()}, &n); err != nil {
		return 0, s.p.wrap(op, e, text, err)
	}
	return n, nil
}

// Map builds an association following result order.
//
// With an empty value column every mapped column is read and each instance (a pointer
// to the entity) is stored under its key column, which defaults to the single key. With
// a value column only the key and value columns are selected and raw values are stored.
// Keys and values read from the store are normalized ([]byte becomes string). A key
// seen twice keeps its first position and its last value.
func (s *session) Map(ctx context.Context, proto interface{}, key, value string, filter Filter, order Order) (*OrderedMap[interface{}, interface{}], error) {
	const op = "Map"
	e, err := s.p.entity(proto)
	if err != nil {
		return nil, s.p.wrap(op, nil, "", err)
	}
	if err := s.ready(); err != nil {
		return nil, s.p.wrap(op, e, "", err)
	}
	out := utils.NewOrderedMap[interface{}, interface{}]()

	if value == "" {
		km, err := s.mapKey(e, key)
		if err != nil {
			return nil, s.p.wrap(op, e, "", err)
		}
		cmd, err := s.selectCommand(e, "", filter, order, Unlimited)
		if err != nil {
			return nil, s.p.wrap(op, e, "", err)
		}
		err = s.read(ctx, op, e, cmd, false, func(row reflect.Value) bool {
			out.Set(utils.NormalizeValue(km.Value(row.Elem())), row.Interface())
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	if key == "" {
		km, err := s.mapKey(e, "")
		if err != nil {
			return nil, s.p.wrap(op, e, "", err)
		}
		key = km.Column.Name
	}
	if err := filter.Err(); err != nil {
		return nil, s.p.wrap(op, e, "", err)
	}
	where, orderBy := "", ""
	if !filter.IsEmpty() {
		where = filter.SQL(s.p.dialect)
	}
	if !order.IsEmpty() {
		orderBy = order.SQL(s.p.dialect)
	}
	text := s.p.builder.Clauses(s.p.builder.Pair(e.Table, key, value), where, orderBy, "")
	rows, err := s.exec.Reader(ctx, Command{Text: text, Params: filter.Params()})
	if err != nil {
		return nil, s.p.wrap(op, e, text, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v interface{}
		if err := rows.Scan(&k, &v); err != nil {
			return nil, s.p.wrap(op, e, text, err)
		}
		out.Set(utils.NormalizeValue(k), utils.NormalizeValue(v))
	}
	if err := rows.Err(); err != nil {
		return nil, s.p.wrap(op, e, text, err)
	}
	return out, nil
}

func (s *session) mapKey(e *schema.Entity, key string) (*schema.Member, error) {
	if key == "" {
		return e.Key()
	}
	m, ok := e.Accessor.Member(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no column %q", ErrConfiguration, e.Type, key)
	}
	return m, nil
}
