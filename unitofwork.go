package glue

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/xingh/glue/internal/schema"
)

// UnitOfWork is a transaction with an explicit isolation level. Every operation issued
// through it runs on the same connection, in submission order. Reads bypass entity
// caches; caches written through the unit are invalidated immediately and again when
// the unit finishes. Closing a unit that was not committed rolls it back.
type UnitOfWork struct {
	*session

	id        string
	tx        *sqlx.Tx
	isolation sql.IsolationLevel
	done      atomic.Bool
	logger    *slog.Logger

	mu      sync.Mutex
	touched map[*schema.Entity]struct{}
}

// Begin starts a unit of work with the given isolation level.
func (p *Provider) Begin(ctx context.Context, isolation sql.IsolationLevel) (*UnitOfWork, error) {
	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return nil, p.wrap("Begin", nil, "", err)
	}
	u := &UnitOfWork{
		id:        uuid.NewString(),
		tx:        tx,
		isolation: isolation,
		touched:   make(map[*schema.Entity]struct{}),
	}
	u.logger = p.logger.With("unit", u.id)
	u.session = &session{p: p, exec: &executor{ext: tx, logger: u.logger}, unit: u}
	u.logger.Debug("unit of work started", "isolation", isolation.String())
	return u, nil
}

// Transact runs fn inside a unit of work, committing when fn returns nil and rolling
// back otherwise, including when fn panics.
func (p *Provider) Transact(ctx context.Context, isolation sql.IsolationLevel, fn func(u *UnitOfWork) error) error {
	u, err := p.Begin(ctx, isolation)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = u.Close()
			panic(r)
		}
	}()
	if err := fn(u); err != nil {
		if cerr := u.Close(); cerr != nil {
			u.logger.Warn("rollback after failure failed", "error", cerr)
		}
		return err
	}
	if u.Done() {
		return nil
	}
	return u.Commit()
}

// ID identifies the unit in logs.
func (u *UnitOfWork) ID() string {
	return u.id
}

// Isolation returns the unit's isolation level.
func (u *UnitOfWork) Isolation() sql.IsolationLevel {
	return u.isolation
}

// Tx exposes the underlying transaction.
func (u *UnitOfWork) Tx() *sqlx.Tx {
	return u.tx
}

// Done reports whether the unit was committed or rolled back.
func (u *UnitOfWork) Done() bool {
	return u.done.Load()
}

// Commit makes the unit's writes durable.
func (u *UnitOfWork) Commit() error {
	if !u.done.CompareAndSwap(false, true) {
		return u.p.wrap("Commit", nil, "", ErrTransactionDone)
	}
	err := u.tx.Commit()
	u.finish(err == nil)
	if err != nil {
		return u.p.wrap("Commit", nil, "", err)
	}
	u.logger.Debug("unit of work committed")
	return nil
}

// Rollback discards the unit's writes.
func (u *UnitOfWork) Rollback() error {
	if !u.done.CompareAndSwap(false, true) {
		return u.p.wrap("Rollback", nil, "", ErrTransactionDone)
	}
	err := u.tx.Rollback()
	u.finish(false)
	if err != nil {
		return u.p.wrap("Rollback", nil, "", err)
	}
	u.logger.Debug("unit of work rolled back")
	return nil
}

// Close rolls back a unit that is still open and does nothing otherwise. It is meant
// to be deferred right after Begin.
func (u *UnitOfWork) Close() error {
	if u.Done() {
		return nil
	}
	return u.Rollback()
}

func (u *UnitOfWork) touch(e *schema.Entity) {
	u.mu.Lock()
	if u.touched != nil {
		u.touched[e] = struct{}{}
	}
	u.mu.Unlock()
}

// finish invalidates every entity written through the unit. A snapshot loaded while the
// unit was open only holds rows committed before it.
func (u *UnitOfWork) finish(committed bool) {
	u.mu.Lock()
	touched := u.touched
	u.touched = nil
	u.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for e := range touched {
		if e.Cache != nil {
			e.Cache.Invalidate()
		}
		if committed {
			u.p.publish(ctx, e)
		}
	}
}
