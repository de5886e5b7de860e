package schema

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/xingh/glue/common"
	"github.com/xingh/glue/internal/cache"
)

// built is the memoized outcome of Build: a type that failed once stays unusable.
type built struct {
	entity *Entity
	err    error
}

// Registry owns the metadata of every type used through one provider. Each type is
// built exactly once, even under concurrent first access.
type Registry struct {
	entities *xsync.MapOf[reflect.Type, *built]
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entities: xsync.NewMapOf[reflect.Type, *built](),
		logger:   logger,
	}
}

// Obtain returns the metadata of modelType (a struct or pointer to struct), building it
// on first use.
func (r *Registry) Obtain(modelType reflect.Type) (*Entity, error) {
	modelType = structType(modelType)
	if modelType == nil {
		return nil, fmt.Errorf("%w: nil type", common.ErrMapping)
	}
	b, _ := r.entities.LoadOrCompute(modelType, func() *built {
		return r.build(modelType)
	})
	return b.entity, b.err
}

// Register builds the metadata of modelType eagerly with explicit options. Registering
// a type that is already known with options is a configuration error, since the first
// build is final.
func (r *Registry) Register(modelType reflect.Type, opts ...Option) (*Entity, error) {
	modelType = structType(modelType)
	if modelType == nil {
		return nil, fmt.Errorf("%w: nil type", common.ErrMapping)
	}
	b, loaded := r.entities.LoadOrCompute(modelType, func() *built {
		return r.build(modelType, opts...)
	})
	if loaded && len(opts) > 0 {
		return nil, fmt.Errorf("%w: %s is already registered", common.ErrConfiguration, modelType)
	}
	return b.entity, b.err
}

// Range calls fn for every successfully built entity.
func (r *Registry) Range(fn func(e *Entity) bool) {
	r.entities.Range(func(_ reflect.Type, b *built) bool {
		if b.err != nil {
			return true
		}
		return fn(b.entity)
	})
}

func (r *Registry) build(modelType reflect.Type, opts ...Option) *built {
	e, err := Build(modelType, opts...)
	if err != nil {
		r.logger.Warn("entity metadata rejected", "type", modelType.String(), "error", err)
		return &built{err: err}
	}
	if e.Cached {
		e.Cache = cache.NewSnapshot(e.Table, r.logger)
	}
	r.logger.Debug("entity metadata built",
		"type", modelType.String(),
		"table", e.Table,
		"columns", len(e.Columns()),
		"keys", ColumnNames(e.KeyMembers),
		"cached", e.Cached)
	return &built{entity: e}
}

func structType(t reflect.Type) reflect.Type {
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	return t
}
