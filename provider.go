// Package glue maps Go structs onto relational tables: CRUD, filtered queries,
// many-to-many traversal, per-type generated SQL, an optional full-table read cache
// and transactional units of work.
package glue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/xingh/glue/internal/schema"
	"github.com/xingh/glue/internal/sqlbuilder"
)

// Provider is the mapping engine bound to one database and dialect. It owns the
// metadata registry, and through it the generated SQL and the entity caches. A Provider
// is safe for concurrent use; calls made on it autocommit individually.
type Provider struct {
	*session

	db       *sqlx.DB
	dialect  Dialect
	builder  *sqlbuilder.Builder
	registry *schema.Registry
	opts     Options
	logger   *slog.Logger
	hooks    hooks
}

// New creates a provider over db. The dialect must match the driver behind db.
func New(db *sqlx.DB, dialect Dialect, opts ...Option) (*Provider, error) {
	if db == nil {
		return nil, ErrDatabaseNotSet
	}
	if dialect == nil {
		return nil, ErrDialectNotSet
	}
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	p := &Provider{
		db:       db,
		dialect:  dialect,
		builder:  sqlbuilder.New(dialect),
		registry: schema.NewRegistry(o.Logger),
		opts:     o,
		logger:   o.Logger.With("dialect", dialect.Name()),
	}
	p.session = &session{p: p, exec: &executor{ext: db, logger: p.logger}}
	return p, nil
}

// DB returns the underlying database handle.
func (p *Provider) DB() *sqlx.DB {
	return p.db
}

// Dialect returns the provider's dialect.
func (p *Provider) Dialect() Dialect {
	return p.dialect
}

// Register builds the metadata of proto's type eagerly, so mapping mistakes surface at
// startup rather than at first use. Options given here override what the type declares.
func (p *Provider) Register(proto interface{}, opts ...EntityOption) error {
	if proto == nil {
		return p.wrap("Register", nil, "", ErrNilEntity)
	}
	_, err := p.registry.Register(reflect.TypeOf(proto), opts...)
	return p.wrap("Register", nil, "", err)
}

// Invalidate drops the cached snapshot of proto's type, if any.
func (p *Provider) Invalidate(proto interface{}) error {
	e, err := p.entity(proto)
	if err != nil {
		return p.wrap("Invalidate", nil, "", err)
	}
	if e.Cache != nil {
		e.Cache.Invalidate()
	}
	return nil
}

// InvalidateTable drops the snapshot of every cached entity mapped to table. It is the
// handler for invalidations received from other processes.
func (p *Provider) InvalidateTable(table string) {
	p.registry.Range(func(e *schema.Entity) bool {
		if e.Cache != nil && strings.EqualFold(e.Table, table) {
			e.Cache.Invalidate()
		}
		return true
	})
}

// Listen subscribes to the invalidation bus so that writes made by other processes
// clear this provider's caches. It returns once the subscription is established; the
// listener stops when ctx is done.
func (p *Provider) Listen(ctx context.Context) error {
	if p.opts.Bus == nil {
		return p.wrap("Listen", nil, "", fmt.Errorf("%w: no invalidation bus configured", ErrConfiguration))
	}
	if err := p.opts.Bus.Subscribe(ctx, p.InvalidateTable); err != nil {
		return p.wrap("Listen", nil, "", err)
	}
	p.logger.Info("listening for cache invalidations")
	return nil
}

// Close closes the underlying database.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return p.db.Close()
}

// entity resolves the metadata of v's type. v may be a struct, a pointer to one, a
// slice of either or a pointer to such a slice.
func (p *Provider) entity(v interface{}) (*schema.Entity, error) {
	if v == nil {
		return nil, ErrNilEntity
	}
	return p.registry.Obtain(reflect.TypeOf(v))
}

// instance resolves the metadata of obj and returns it as a non-nil struct pointer.
func (p *Provider) instance(obj interface{}) (*schema.Entity, reflect.Value, error) {
	e, err := p.entity(obj)
	if err != nil {
		return nil, reflect.Value{}, err
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Type() != e.Type {
		return nil, reflect.Value{}, fmt.Errorf("%w: expected a non-nil *%s, got %T", ErrNilEntity, e.Type, obj)
	}
	return e, v, nil
}

// wrap turns err into an *Error tagged with op and entity. Errors already wrapped are
// returned unchanged.
func (p *Provider) wrap(op string, e *schema.Entity, sqlText string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	name := ""
	if e != nil {
		name = e.Type.String()
	}
	return &Error{Kind: kindOf(err), Op: op, Entity: name, SQL: sqlText, Err: err, debug: p.opts.Debug}
}

// publish announces a write to other processes. A failed publish is logged, the write
// itself already succeeded.
func (p *Provider) publish(ctx context.Context, e *schema.Entity) {
	if p.opts.Bus == nil || e.Cache == nil {
		return
	}
	if err := p.opts.Bus.Publish(ctx, e.Table); err != nil {
		p.logger.Warn("publishing cache invalidation failed", "table", e.Table, "error", err)
	}
}
