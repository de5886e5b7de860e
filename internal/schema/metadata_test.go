package schema

import (
	"database/sql"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/glue/common"
)

type address struct {
	Street string `db:"street"`
	City   string `db:"city"`
}

type audit struct {
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

type customer struct {
	ID      int64   `db:"id,pk,auto"`
	Name    string  `db:"name"`
	Home    address `db:",inline"`
	Note    sql.NullString
	secret  string
	Ignored string `db:"-"`
	audit
	Version int `db:"version,auto"`
}

type orderLine struct {
	OrderID int64 `db:"order_id,pk"`
	LineNo  int   `db:"line_no,pk"`
	Qty     int
}

func (orderLine) TableName() string { return "order_lines" }

type country struct {
	Code string `db:"code,pk"`
	Name string
}

func (country) Cached() bool { return true }

func TestBuildFlattensDepthFirst(t *testing.T) {
	e, err := Build(reflect.TypeOf(customer{}))
	require.NoError(t, err)

	assert.Equal(t, "customers", e.Table)
	assert.Equal(t,
		[]string{"id", "name", "street", "city", "note", "created_by", "created_at", "version"},
		ColumnNames(e.Columns()))
	assert.Equal(t, []string{"id"}, ColumnNames(e.KeyMembers))
	assert.Equal(t, []string{"id", "version"}, ColumnNames(e.AutoMembers))
	require.NotNil(t, e.AutoKey)
	assert.Equal(t, "ID", e.AutoKey.Name)

	// Composite members keep their nested members.
	require.Len(t, e.AllMembers, 6)
	assert.True(t, e.AllMembers[2].IsComposite())
	assert.Equal(t, []string{"street", "city"}, ColumnNames(e.AllMembers[2].Members))
	assert.False(t, e.Cached)
}

func TestBuildIsOrderStable(t *testing.T) {
	first, err := Build(reflect.TypeOf(customer{}))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Build(reflect.TypeOf(&customer{}))
		require.NoError(t, err)
		assert.Equal(t, ColumnNames(first.Columns()), ColumnNames(again.Columns()))
	}
}

func TestBuildTableNameAndKeys(t *testing.T) {
	e, err := Build(reflect.TypeOf(orderLine{}))
	require.NoError(t, err)
	assert.Equal(t, "order_lines", e.Table)
	assert.Equal(t, []string{"order_id", "line_no"}, ColumnNames(e.KeyMembers))
	assert.Nil(t, e.AutoKey)

	_, err = e.Key()
	assert.ErrorIs(t, err, common.ErrConfiguration)

	e, err = Build(reflect.TypeOf(orderLine{}), WithTable("lines"))
	require.NoError(t, err)
	assert.Equal(t, "lines", e.Table)
}

func TestBuildCached(t *testing.T) {
	e, err := Build(reflect.TypeOf(country{}))
	require.NoError(t, err)
	assert.True(t, e.Cached)

	e, err = Build(reflect.TypeOf(country{}), WithCache(false))
	require.NoError(t, err)
	assert.False(t, e.Cached)

	_, err = Build(reflect.TypeOf(orderLine{}), WithCache(true))
	assert.ErrorIs(t, err, common.ErrConfiguration, "cached entity needs exactly one key")

	type keyless struct{ Name string }
	_, err = Build(reflect.TypeOf(keyless{}), WithTable("keyless"), WithCache(true))
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestBuildRejectsUnmappableShapes(t *testing.T) {
	type withFunc struct {
		ID int64 `db:"id,pk"`
		Fn func()
	}
	type withMap struct {
		ID    int64 `db:"id,pk"`
		Attrs map[string]string
	}
	type duplicate struct {
		ID    int64  `db:"id,pk"`
		Other string `db:"ID"`
	}
	type nothing struct {
		hidden int
	}
	type embeddedPtr struct {
		*address
		ID int64 `db:"id,pk"`
	}

	tests := []struct {
		name string
		typ  reflect.Type
		want error
	}{
		{"not a struct", reflect.TypeOf(42), common.ErrMapping},
		{"func field", reflect.TypeOf(withFunc{}), common.ErrMapping},
		{"map field", reflect.TypeOf(withMap{}), common.ErrMapping},
		{"duplicate column", reflect.TypeOf(duplicate{}), common.ErrConfiguration},
		{"no columns", reflect.TypeOf(nothing{}), common.ErrMapping},
		{"embedded pointer", reflect.TypeOf(embeddedPtr{}), common.ErrMapping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.typ)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAccessorParamsAndSetValue(t *testing.T) {
	e, err := Build(reflect.TypeOf(customer{}))
	require.NoError(t, err)

	c := &customer{Name: "Ann", Home: address{City: "Oslo"}}
	params := e.Accessor.Params(reflect.ValueOf(c), Subtract(e.Columns(), e.AutoMembers))
	assert.Equal(t, "Ann", params["name"])
	assert.Equal(t, "Oslo", params["city"])
	assert.NotContains(t, params, "id")
	assert.NotContains(t, params, "version")

	require.NoError(t, e.Accessor.SetValue(reflect.ValueOf(c), e.AutoKey, int64(7)))
	assert.Equal(t, int64(7), c.ID)
	require.NoError(t, e.Accessor.SetValue(reflect.ValueOf(c), e.AutoKey, int32(9)))
	assert.Equal(t, int64(9), c.ID)

	err = e.Accessor.SetValue(reflect.ValueOf(c), e.AutoKey, "nine")
	assert.ErrorIs(t, err, common.ErrMapping)
	assert.Equal(t, int64(9), c.ID)
}

func TestRegistryBuildsOnce(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 32
	results := make([]*Entity, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := r.Obtain(reflect.TypeOf(&customer{}))
			assert.NoError(t, err)
			results[i] = e
		}(i)
	}
	wg.Wait()
	for _, e := range results {
		assert.Same(t, results[0], e)
	}

	// Slices of the type resolve to the same metadata.
	e, err := r.Obtain(reflect.TypeOf(&[]*customer{}))
	require.NoError(t, err)
	assert.Same(t, results[0], e)
}

func TestRegistryMemoizesFailures(t *testing.T) {
	type broken struct {
		ID int64 `db:"id,pk"`
		Ch chan int
	}
	r := NewRegistry(nil)
	_, err1 := r.Obtain(reflect.TypeOf(broken{}))
	_, err2 := r.Obtain(reflect.TypeOf(broken{}))
	require.ErrorIs(t, err1, common.ErrMapping)
	assert.Same(t, err1, err2)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(nil)
	e, err := r.Register(reflect.TypeOf(country{}), WithTable("nations"))
	require.NoError(t, err)
	assert.Equal(t, "nations", e.Table)
	require.NotNil(t, e.Cache)

	_, err = r.Register(reflect.TypeOf(country{}), WithTable("other"))
	assert.ErrorIs(t, err, common.ErrConfiguration)

	again, err := r.Register(reflect.TypeOf(country{}))
	require.NoError(t, err)
	assert.Same(t, e, again)

	var tables []string
	r.Range(func(e *Entity) bool {
		tables = append(tables, e.Table)
		return true
	})
	assert.Equal(t, []string{"nations"}, tables)
}
