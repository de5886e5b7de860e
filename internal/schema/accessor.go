package schema

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/xingh/glue/common"
	"github.com/xingh/glue/internal/utils"
)

// Scanner is the subset of *sql.Rows (and *sqlx.Rows) the accessor reads from.
type Scanner interface {
	Columns() ([]string, error)
	Scan(dest ...interface{}) error
}

// Accessor marshals between entity instances and rows or named parameters. It is built
// once per type from precomputed field index paths.
type Accessor struct {
	typ      reflect.Type
	columns  []*Member
	byColumn map[string]*Member // lower-cased column name
}

func newAccessor(e *Entity) *Accessor {
	a := &Accessor{
		typ:      e.Type,
		columns:  e.columns,
		byColumn: make(map[string]*Member, len(e.columns)),
	}
	for _, m := range e.columns {
		a.byColumn[strings.ToLower(m.Column.Name)] = m
	}
	return a
}

// New allocates a zero instance and returns the pointer.
func (a *Accessor) New() reflect.Value {
	return reflect.New(a.typ)
}

// Member returns the leaf member bound to column, ignoring case.
func (a *Accessor) Member(column string) (*Member, bool) {
	m, ok := a.byColumn[strings.ToLower(column)]
	return m, ok
}

// Params returns the named parameters of the given members read from obj, keyed by the
// parameter name generated for each column.
func (a *Accessor) Params(obj reflect.Value, members []*Member) map[string]interface{} {
	root := reflect.Indirect(obj)
	params := make(map[string]interface{}, len(members))
	for _, m := range members {
		params[utils.ParamName(m.Column.Name)] = m.Value(root)
	}
	return params
}

// KeyValues returns the key values of obj in key declaration order.
func (a *Accessor) KeyValues(obj reflect.Value, keys []*Member) []interface{} {
	root := reflect.Indirect(obj)
	values := make([]interface{}, len(keys))
	for i, m := range keys {
		values[i] = m.Value(root)
	}
	return values
}

// fixedDest returns scan destinations for a row whose columns are exactly the
// flattened members, starting at offset in a row of width total.
func (a *Accessor) fixedDest(ptr reflect.Value, offset, total int) ([]interface{}, error) {
	if total < offset+len(a.columns) {
		return nil, fmt.Errorf("%w: %s expects %d columns at offset %d, row has %d",
			common.ErrMapping, a.typ, len(a.columns), offset, total)
	}
	root := ptr.Elem()
	dest := make([]interface{}, total)
	for i := range dest {
		dest[i] = new(sql.RawBytes)
	}
	for i, m := range a.columns {
		dest[offset+i] = m.Field(root).Addr().Interface()
	}
	return dest, nil
}

// dynamicDest maps result columns to members by name; unknown columns are discarded.
func (a *Accessor) dynamicDest(ptr reflect.Value, cols []string) []interface{} {
	root := ptr.Elem()
	dest := make([]interface{}, len(cols))
	for i, col := range cols {
		if m, ok := a.Member(col); ok {
			dest[i] = m.Field(root).Addr().Interface()
		} else {
			dest[i] = new(sql.RawBytes)
		}
	}
	return dest
}

// ReadFixed builds one instance from the current row, reading the flattened columns
// positionally starting at offset. cols are the row's column names.
func (a *Accessor) ReadFixed(sc Scanner, cols []string, offset int) (reflect.Value, error) {
	ptr := a.New()
	dest, err := a.fixedDest(ptr, offset, len(cols))
	if err != nil {
		return reflect.Value{}, err
	}
	if err := sc.Scan(dest...); err != nil {
		return reflect.Value{}, err
	}
	return ptr, nil
}

// ReadDynamic builds one instance from the current row, matching columns by name.
func (a *Accessor) ReadDynamic(sc Scanner, cols []string) (reflect.Value, error) {
	ptr := a.New()
	if err := sc.Scan(a.dynamicDest(ptr, cols)...); err != nil {
		return reflect.Value{}, err
	}
	return ptr, nil
}

// CopyInto assigns the instance src points to onto the instance dst points to. Column
// fields that hold references (pointers, slices, maps) get fresh copies, so dst never
// shares memory with src.
func (a *Accessor) CopyInto(dst, src reflect.Value) {
	root := dst.Elem()
	root.Set(src.Elem())
	for _, m := range a.columns {
		f := m.Field(root)
		f.Set(cloneValue(f))
	}
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(cloneValue(v.Elem()))
		return p
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			c.Index(i).Set(cloneValue(v.Index(i)))
		}
		return c
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return c
	}
	return v
}

// SetValue converts value to the member's field type and assigns it on obj. It is used
// to write store-assigned identities back onto inserted instances.
func (a *Accessor) SetValue(obj reflect.Value, m *Member, value interface{}) error {
	field := m.Field(reflect.Indirect(obj))
	if !field.CanSet() {
		return fmt.Errorf("%w: field %s of %s is not settable", common.ErrMapping, m.Name, a.typ)
	}
	value = utils.NormalizeValue(value)
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	target := field.Type()
	isPtr := target.Kind() == reflect.Ptr
	if isPtr {
		target = target.Elem()
	}
	src := reflect.ValueOf(value)
	var converted reflect.Value
	switch {
	case src.Type().AssignableTo(target):
		converted = src
	case target.Kind() == reflect.String:
		converted = reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	case isNumeric(src.Kind()) && isNumeric(target.Kind()):
		converted = src.Convert(target)
	default:
		return fmt.Errorf("%w: cannot convert %T to %s for field %s of %s",
			common.ErrMapping, value, field.Type(), m.Name, a.typ)
	}
	if isPtr {
		p := reflect.New(target)
		p.Elem().Set(converted)
		field.Set(p)
		return nil
	}
	field.Set(converted)
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
