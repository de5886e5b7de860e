package glue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/glue"
)

func TestTypedHelpers(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()
	insertAccounts(t, p, "alice", "bob", "carol")

	a, err := glue.Find[Account](ctx, p, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", a.Name)

	_, err = glue.Find[Account](ctx, p, 99)
	assert.ErrorIs(t, err, glue.ErrNotFound)

	c, err := glue.FindBy[Account](ctx, p, glue.Eq("email", "carol@x.com"), glue.Order{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.ID)

	_, err = glue.FindBy[Account](ctx, p, glue.Eq("email", "none"), glue.Order{})
	assert.ErrorIs(t, err, glue.ErrNotFound)

	list, err := glue.List[Account](ctx, p, glue.Filter{}, glue.Desc("id"), glue.Page(0, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob"}, names(list))

	n, err := glue.Count[Account](ctx, p, glue.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	m, err := glue.Map[Account](ctx, p, "", glue.Filter{}, glue.Asc("id"))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	first, ok := m.Get(int64(1))
	require.True(t, ok)
	assert.Equal(t, "alice", first.Name)

	require.NoError(t, glue.Delete[Account](ctx, p, 1))
	n, err = glue.Count[Account](ctx, p, glue.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
