package schema

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/xingh/glue/common"
	"github.com/xingh/glue/internal/cache"
	"github.com/xingh/glue/internal/utils"
)

// Column describes how a leaf member is bound to the store.
type Column struct {
	Name string
	Key  bool // Part of the primary key
	Auto bool // Populated by the store (identity, computed)
}

// Member is one mapped field. Members without a Column are composite: they group
// nested Members and never appear in SQL themselves.
type Member struct {
	Name    string       // Go field name
	Index   []int        // Index path from the entity struct, for FieldByIndex
	Type    reflect.Type // Field type
	Column  *Column
	Members []*Member
}

// IsComposite reports whether the member only groups nested members.
func (m *Member) IsComposite() bool {
	return m.Column == nil
}

// Field returns the addressable field of this member inside root, which must be the
// entity struct value (not a pointer).
func (m *Member) Field(root reflect.Value) reflect.Value {
	return root.FieldByIndex(m.Index)
}

// Value returns the field value of this member inside root.
func (m *Member) Value(root reflect.Value) interface{} {
	return m.Field(root).Interface()
}

// Flatten walks members depth-first and returns the leaf members bound to a column,
// preserving declaration order. SELECT column lists and positional row reads both use
// this order.
func Flatten(members []*Member) []*Member {
	out := make([]*Member, 0, len(members))
	var walk func(list []*Member)
	walk = func(list []*Member) {
		for _, m := range list {
			if m.IsComposite() {
				walk(m.Members)
				continue
			}
			out = append(out, m)
		}
	}
	walk(members)
	return out
}

// Subtract returns the members of list that appear in none of the exclude lists.
func Subtract(list []*Member, exclude ...[]*Member) []*Member {
	skip := make(map[*Member]struct{})
	for _, ex := range exclude {
		for _, m := range ex {
			skip[m] = struct{}{}
		}
	}
	out := make([]*Member, 0, len(list))
	for _, m := range list {
		if _, ok := skip[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// ColumnNames returns the column names of the given leaf members.
func ColumnNames(members []*Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Column.Name
	}
	return names
}

// Entity is the per-type mapping metadata. It is immutable once built, except for the
// memoized command texts and the contents of Cache.
type Entity struct {
	Type        reflect.Type
	Table       string
	Cached      bool
	AllMembers  []*Member
	KeyMembers  []*Member
	AutoMembers []*Member
	// AutoKey is the only key member when it is also auto-generated, nil otherwise.
	AutoKey  *Member
	Accessor *Accessor
	Commands Commands
	// Cache is the full-table snapshot of a cached entity, nil otherwise.
	Cache *cache.Snapshot

	columns []*Member
}

// Columns returns the flattened column members in declaration order.
func (e *Entity) Columns() []*Member {
	return e.columns
}

// Key returns the single key member. Many-to-many traversal and the row cache are only
// defined for entities with exactly one key column.
func (e *Entity) Key() (*Member, error) {
	if len(e.KeyMembers) != 1 {
		return nil, fmt.Errorf("%w: %s (table %s) should have precisely one key column, has %d",
			common.ErrConfiguration, e.Type, e.Table, len(e.KeyMembers))
	}
	return e.KeyMembers[0], nil
}

// RequireKeys fails when the entity has no key member at all.
func (e *Entity) RequireKeys() error {
	if len(e.KeyMembers) == 0 {
		return fmt.Errorf("%w: %s (table %s) has no key column", common.ErrConfiguration, e.Type, e.Table)
	}
	return nil
}

// Commands memoizes generated SQL templates. Schema does not change at runtime, so each
// text is built at most once.
type Commands struct {
	find, insert, update, remove, selectAll memo
}

type memo struct {
	once sync.Once
	text string
}

func (m *memo) get(build func() string) string {
	m.once.Do(func() { m.text = build() })
	return m.text
}

func (c *Commands) Find(build func() string) string      { return c.find.get(build) }
func (c *Commands) Insert(build func() string) string    { return c.insert.get(build) }
func (c *Commands) Update(build func() string) string    { return c.update.get(build) }
func (c *Commands) Delete(build func() string) string    { return c.remove.get(build) }
func (c *Commands) SelectAll(build func() string) string { return c.selectAll.get(build) }

// Options override what is discovered from the type itself.
type Options struct {
	Table  string
	Cached *bool
}

// Option mutates Options.
type Option func(*Options)

// WithTable sets the table or view name.
func WithTable(name string) Option {
	return func(o *Options) { o.Table = name }
}

// WithCache marks the entity as cacheable (or not).
func WithCache(cached bool) Option {
	return func(o *Options) { o.Cached = &cached }
}

type tableNamer interface{ TableName() string }

type cacheable interface{ Cached() bool }

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	bytesType   = reflect.TypeOf([]byte(nil))
)

// Build computes the metadata for a struct type from its `db` tags, its optional
// TableName/Cached methods and the given options.
//
// Tag grammar: `db:"column[,pk][,auto]"`, `db:"-"` to skip, `db:",inline"` to flatten a
// named struct field. Anonymous embedded structs are always flattened.
func Build(modelType reflect.Type, opts ...Option) (*Entity, error) {
	if modelType == nil {
		return nil, fmt.Errorf("%w: nil type", common.ErrMapping)
	}
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: expected a struct type, got %s", common.ErrMapping, modelType.Kind())
	}

	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Entity{Type: modelType}
	members, err := buildMembers(modelType, nil)
	if err != nil {
		return nil, err
	}
	e.AllMembers = members
	e.columns = Flatten(members)
	if len(e.columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no mapped columns", common.ErrMapping, modelType)
	}

	seen := make(map[string]string, len(e.columns))
	for _, m := range e.columns {
		lower := strings.ToLower(m.Column.Name)
		if prev, dup := seen[lower]; dup {
			return nil, fmt.Errorf("%w: %s maps column %q twice (fields %s and %s)",
				common.ErrConfiguration, modelType, m.Column.Name, prev, m.Name)
		}
		seen[lower] = m.Name
		if m.Column.Key {
			e.KeyMembers = append(e.KeyMembers, m)
		}
		if m.Column.Auto {
			e.AutoMembers = append(e.AutoMembers, m)
		}
	}
	if len(e.KeyMembers) == 1 && e.KeyMembers[0].Column.Auto {
		e.AutoKey = e.KeyMembers[0]
	}

	e.Table = o.Table
	if e.Table == "" {
		e.Table = tableNameFromType(modelType)
	}
	if e.Table == "" {
		return nil, fmt.Errorf("%w: cannot determine table name for %s", common.ErrConfiguration, modelType)
	}

	if o.Cached != nil {
		e.Cached = *o.Cached
	} else if c, ok := reflect.New(modelType).Interface().(cacheable); ok {
		e.Cached = c.Cached()
	}
	if e.Cached {
		if _, err := e.Key(); err != nil {
			return nil, err
		}
	}

	e.Accessor = newAccessor(e)
	return e, nil
}

func buildMembers(structType reflect.Type, parentIndex []int) ([]*Member, error) {
	members := make([]*Member, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		tag, hasTag := field.Tag.Lookup("db")
		if tag == "-" {
			continue
		}
		index := append(append([]int(nil), parentIndex...), i)

		name, flags := parseTag(tag)
		inline := flags["inline"] || (field.Anonymous && !hasTag && isCompositeStruct(field.Type))

		if field.Anonymous && field.Type.Kind() == reflect.Ptr {
			return nil, fmt.Errorf("%w: embedded pointer %s.%s is not supported, embed the struct by value or tag it db:\"-\"",
				common.ErrMapping, structType, field.Name)
		}
		if !field.IsExported() && !field.Anonymous {
			continue
		}

		if inline {
			if field.Type.Kind() != reflect.Struct {
				return nil, fmt.Errorf("%w: inline field %s.%s must be a struct", common.ErrMapping, structType, field.Name)
			}
			nested, err := buildMembers(field.Type, index)
			if err != nil {
				return nil, err
			}
			members = append(members, &Member{Name: field.Name, Index: index, Type: field.Type, Members: nested})
			continue
		}
		if !field.IsExported() {
			continue
		}

		if err := checkLeafType(structType, field); err != nil {
			return nil, err
		}
		if name == "" {
			name = utils.ToSnakeCase(field.Name)
		}
		members = append(members, &Member{
			Name:  field.Name,
			Index: index,
			Type:  field.Type,
			Column: &Column{
				Name: name,
				Key:  flags["pk"] || flags["primarykey"] || flags["key"],
				Auto: flags["auto"],
			},
		})
	}
	return members, nil
}

func parseTag(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	flags := make(map[string]bool, len(parts))
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			flags[strings.ToLower(p)] = true
		}
	}
	return strings.TrimSpace(parts[0]), flags
}

func isCompositeStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType && !reflect.PointerTo(t).Implements(scannerType)
}

// checkLeafType rejects field shapes that cannot be scanned from or bound to a column.
func checkLeafType(owner reflect.Type, field reflect.StructField) error {
	t := field.Type
	if t == timeType || t == bytesType || t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType) {
		return nil
	}
	base := t
	if base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Struct:
		if base == timeType || reflect.PointerTo(base).Implements(scannerType) {
			return nil
		}
	case reflect.Slice:
		if base == bytesType {
			return nil
		}
	}
	return fmt.Errorf("%w: field %s.%s of type %s cannot be bound to a column (tag it db:\"-\" or db:\",inline\")",
		common.ErrMapping, owner, field.Name, t)
}

// tableNameFromType prefers a TableName method, then a `tableName` struct tag, then the
// pluralized snake_case type name.
func tableNameFromType(modelType reflect.Type) string {
	if namer, ok := reflect.New(modelType).Interface().(tableNamer); ok {
		if name := namer.TableName(); name != "" {
			return name
		}
	}
	for i := 0; i < modelType.NumField(); i++ {
		if name, ok := modelType.Field(i).Tag.Lookup("tableName"); ok && name != "" {
			return name
		}
	}
	if modelType.Name() == "" {
		return ""
	}
	return utils.ToSnakeCase(modelType.Name()) + "s"
}
