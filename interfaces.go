// interfaces.go
// Public contracts of glue: the SQL Dialect implemented by drivers, the cache
// InvalidationBus and the DB operation set shared by Provider and UnitOfWork.

package glue

import (
	"context"

	"github.com/xingh/glue/internal/sqlbuilder"
)

// Dialect spells identifiers, pagination, upserts and identity retrieval for one store.
// Implementations live under drivers/db.
type Dialect = sqlbuilder.Dialect

// InvalidationBus carries cache invalidations between processes sharing one store.
type InvalidationBus interface {
	// Publish announces that rows of table changed.
	Publish(ctx context.Context, table string) error
	// Subscribe calls fn for every table announced by other processes until ctx is done.
	// It returns once the subscription is established.
	Subscribe(ctx context.Context, fn func(table string)) error
}

// DB is the operation set of a Provider, also available inside a UnitOfWork.
//
// Destinations select the entity type: Find-style operations take a pointer to a
// struct, List-style operations a pointer to a slice of structs or struct pointers.
// Operations without a destination take a prototype such as (*Account)(nil).
type DB interface {
	Find(ctx context.Context, dest interface{}, keys ...interface{}) (bool, error)
	FindByFilter(ctx context.Context, dest interface{}, filter Filter, order Order) (bool, error)
	FindFrom(ctx context.Context, table string, dest interface{}, filter Filter, order Order) (bool, error)
	FindByCommand(ctx context.Context, dest interface{}, cmd Command) (bool, error)

	List(ctx context.Context, dest interface{}, filter Filter, order Order, limit Limit) error
	ListFrom(ctx context.Context, table string, dest interface{}, filter Filter, order Order, limit Limit) error
	ListCommand(ctx context.Context, dest interface{}, cmd Command) error

	ListManyToMany(ctx context.Context, left interface{}, dest interface{}, filter Filter, order Order, limit Limit) error
	ListManyToManyInverse(ctx context.Context, dest interface{}, right interface{}, filter Filter, order Order, limit Limit) error
	AddManyToMany(ctx context.Context, left, right interface{}) error
	DelManyToMany(ctx context.Context, left, right interface{}) error

	Insert(ctx context.Context, obj interface{}) error
	Update(ctx context.Context, obj interface{}) error
	Save(ctx context.Context, obj interface{}) error
	Delete(ctx context.Context, proto interface{}, keys ...interface{}) error
	DeleteObject(ctx context.Context, obj interface{}) error
	DeleteAll(ctx context.Context, proto interface{}, filter Filter) (int64, error)

	Count(ctx context.Context, proto interface{}, filter Filter) (int, error)
	CountInt64(ctx context.Context, proto interface{}, filter Filter) (int64, error)
	Map(ctx context.Context, proto interface{}, key, value string, filter Filter, order Order) (*OrderedMap[interface{}, interface{}], error)
}

var (
	_ DB = (*Provider)(nil)
	_ DB = (*UnitOfWork)(nil)
)
