package glue

import (
	"context"

	"github.com/xingh/glue/internal/utils"
)

// Typed helpers over any DB (a Provider or a UnitOfWork).

// Find returns the T whose keys match, or ErrNotFound.
func Find[T any](ctx context.Context, db DB, keys ...interface{}) (*T, error) {
	obj := new(T)
	ok, err := db.Find(ctx, obj, keys...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return obj, nil
}

// FindBy returns the first T matching filter in the given order, or ErrNotFound.
func FindBy[T any](ctx context.Context, db DB, filter Filter, order Order) (*T, error) {
	obj := new(T)
	ok, err := db.FindByFilter(ctx, obj, filter, order)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return obj, nil
}

// List returns the rows of T matching filter.
func List[T any](ctx context.Context, db DB, filter Filter, order Order, limit Limit) ([]*T, error) {
	var out []*T
	if err := db.List(ctx, &out, filter, order, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of rows of T matching filter.
func Count[T any](ctx context.Context, db DB, filter Filter) (int, error) {
	return db.Count(ctx, (*T)(nil), filter)
}

// Delete removes the T with the given keys.
func Delete[T any](ctx context.Context, db DB, keys ...interface{}) error {
	return db.Delete(ctx, (*T)(nil), keys...)
}

// Map returns every T matching filter keyed by its key column (the single key when
// key is empty).
func Map[T any](ctx context.Context, db DB, key string, filter Filter, order Order) (*OrderedMap[interface{}, *T], error) {
	m, err := db.Map(ctx, (*T)(nil), key, "", filter, order)
	if err != nil {
		return nil, err
	}
	out := utils.NewOrderedMap[interface{}, *T]()
	m.Range(func(k, v interface{}) bool {
		out.Set(k, v.(*T))
		return true
	})
	return out, nil
}

// ListManyToMany returns the R rows related to left.
func ListManyToMany[R any](ctx context.Context, db DB, left interface{}, filter Filter, order Order, limit Limit) ([]*R, error) {
	var out []*R
	if err := db.ListManyToMany(ctx, left, &out, filter, order, limit); err != nil {
		return nil, err
	}
	return out, nil
}
