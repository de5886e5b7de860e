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

func TestHooks_FireAroundWrites(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	var events []string
	record := func(ctx context.Context, event glue.EventType, entity interface{}, data interface{}) error {
		events = append(events, string(event))
		return nil
	}
	for _, ev := range []glue.EventType{
		glue.EventBeforeInsert, glue.EventAfterInsert,
		glue.EventBeforeUpdate, glue.EventAfterUpdate,
		glue.EventBeforeDelete, glue.EventAfterDelete,
	} {
		p.On(ev, record)
	}

	a := &Account{Name: "alice", Email: "a@x.com"}
	require.NoError(t, p.Insert(ctx, a))
	require.NoError(t, p.Update(ctx, a))
	require.NoError(t, p.DeleteObject(ctx, a))

	assert.Equal(t, []string{
		"BeforeInsert", "AfterInsert",
		"BeforeUpdate", "AfterUpdate",
		"BeforeDelete", "AfterDelete",
	}, events)
}

func TestHooks_AfterInsertSeesAssignedKey(t *testing.T) {
	p := setupProvider(t)
	var seen int64
	p.On(glue.EventAfterInsert, func(ctx context.Context, _ glue.EventType, entity interface{}, _ interface{}) error {
		seen = entity.(*Account).ID
		return nil
	})
	insertAccounts(t, p, "alice")
	assert.Equal(t, int64(1), seen)
}

func TestHooks_BeforeListenerAborts(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()
	veto := errors.New("read only")
	p.On(glue.EventBeforeDelete, func(ctx context.Context, _ glue.EventType, _ interface{}, data interface{}) error {
		if keys, ok := data.([]interface{}); ok && len(keys) == 1 {
			return veto
		}
		return nil
	})

	a := insertAccounts(t, p, "alice")[0]
	err := p.Delete(ctx, (*Account)(nil), a.ID)
	assert.ErrorIs(t, err, veto)

	_, err = glue.Find[Account](ctx, p, a.ID)
	require.NoError(t, err, "the row is still there")

	// DeleteObject hands no key data to listeners.
	require.NoError(t, p.DeleteObject(ctx, a))
}

func TestHooks_RunInsideUnitOfWork(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()
	count := 0
	p.On(glue.EventAfterInsert, func(context.Context, glue.EventType, interface{}, interface{}) error {
		count++
		return nil
	})
	p.On(glue.EventBeforeDelete, func(_ context.Context, _ glue.EventType, _ interface{}, data interface{}) error {
		f, ok := data.(glue.Filter)
		if ok && f.IsEmpty() {
			return errors.New("refusing to delete every row")
		}
		return nil
	})

	err := p.Transact(ctx, sql.LevelDefault, func(u *glue.UnitOfWork) error {
		insertAccounts(t, u, "alice", "bob")
		_, err := u.DeleteAll(ctx, (*Account)(nil), glue.Filter{})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 2, count)

	n, err := glue.Count[Account](ctx, p, glue.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n, "the failed unit was rolled back")
}
