package glue_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/glue"
)

func TestUnitOfWork_Commit(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	u, err := p.Begin(ctx, sql.LevelDefault)
	require.NoError(t, err)
	defer u.Close()
	assert.NotEmpty(t, u.ID())
	assert.Equal(t, sql.LevelDefault, u.Isolation())

	a := &Account{Name: "alice", Email: "a@x.com"}
	require.NoError(t, u.Insert(ctx, a))
	var seen Account
	found, err := u.Find(ctx, &seen, a.ID)
	require.NoError(t, err)
	assert.True(t, found, "the unit sees its own writes")

	require.NoError(t, u.Commit())
	assert.True(t, u.Done())

	found, err = p.Find(ctx, &seen, a.ID)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestUnitOfWork_Rollback(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	u, err := p.Begin(ctx, sql.LevelDefault)
	require.NoError(t, err)
	a := &Account{Name: "ghost", Email: "g@x.com"}
	require.NoError(t, u.Insert(ctx, a))
	require.NoError(t, u.Rollback())

	n, err := p.Count(ctx, (*Account)(nil), glue.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnitOfWork_CloseRollsBackOpenUnit(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	u, err := p.Begin(ctx, sql.LevelDefault)
	require.NoError(t, err)
	insertAccounts(t, u, "ghost")
	require.NoError(t, u.Close())
	require.NoError(t, u.Close(), "closing twice is harmless")

	n, err := p.Count(ctx, (*Account)(nil), glue.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnitOfWork_OperationsAfterFinishFail(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	u, err := p.Begin(ctx, sql.LevelDefault)
	require.NoError(t, err)
	require.NoError(t, u.Commit())

	assert.ErrorIs(t, u.Commit(), glue.ErrTransactionDone)
	assert.ErrorIs(t, u.Rollback(), glue.ErrTransactionDone)
	assert.ErrorIs(t, u.Insert(ctx, &Account{Name: "late"}), glue.ErrTransactionDone)
	_, err = u.Find(ctx, &Account{}, 1)
	assert.ErrorIs(t, err, glue.ErrTransactionDone)
	var out []*Account
	assert.ErrorIs(t, u.List(ctx, &out, glue.Filter{}, glue.Order{}, glue.Unlimited), glue.ErrTransactionDone)
}

func TestTransact(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	err := p.Transact(ctx, sql.LevelDefault, func(u *glue.UnitOfWork) error {
		insertAccounts(t, u, "alice", "bob")
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = p.Transact(ctx, sql.LevelDefault, func(u *glue.UnitOfWork) error {
		insertAccounts(t, u, "carol")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = p.Transact(ctx, sql.LevelDefault, func(u *glue.UnitOfWork) error {
			insertAccounts(t, u, "dave")
			panic("bad")
		})
	})

	accounts, err := glue.List[Account](ctx, p, glue.Filter{}, glue.Asc("id"), glue.Unlimited)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names(accounts))
}

func TestTransact_CommittedByCallback(t *testing.T) {
	p := setupProvider(t)
	err := p.Transact(context.Background(), sql.LevelDefault, func(u *glue.UnitOfWork) error {
		insertAccounts(t, u, "alice")
		return u.Commit()
	})
	require.NoError(t, err)

	n, err := glue.Count[Account](context.Background(), p, glue.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
