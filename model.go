package glue

import "context"

// --- Active records ---

// Record is an entity that persists itself through a DB.
type Record interface {
	Insert(ctx context.Context, db DB) error
	Update(ctx context.Context, db DB) error
	Delete(ctx context.Context, db DB) error
}

// Active adapts an entity pointer to Record. Each method delegates to the matching DB
// operation.
type Active[T any] struct {
	Entity *T
}

// AsRecord wraps obj as a Record.
func AsRecord[T any](obj *T) Record {
	return Active[T]{Entity: obj}
}

func (a Active[T]) Insert(ctx context.Context, db DB) error {
	return db.Insert(ctx, a.Entity)
}

func (a Active[T]) Update(ctx context.Context, db DB) error {
	return db.Update(ctx, a.Entity)
}

func (a Active[T]) Delete(ctx context.Context, db DB) error {
	return db.DeleteObject(ctx, a.Entity)
}
