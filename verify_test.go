package glue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/glue/drivers/db/sqlite"
)

// Drifted maps columns the account table does not have.
type Drifted struct {
	ID    int64  `db:"id,pk,auto"`
	Name  string `db:"name"`
	Phone string `db:"phone"`
}

func (Drifted) TableName() string { return "account" }

type Missing struct {
	ID int64 `db:"id,pk"`
}

// NameKeyed declares a key the table does not.
type NameKeyed struct {
	Name  string `db:"name,pk"`
	Email string `db:"email"`
}

func (NameKeyed) TableName() string { return "account" }

func TestVerify(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()
	intro := &sqlite.Introspector{DB: p.DB()}

	require.NoError(t, p.Register((*Account)(nil)))
	require.NoError(t, p.Register((*Group)(nil)))
	require.NoError(t, p.Register((*OrderLine)(nil)))
	mismatches, err := p.Verify(ctx, intro)
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	require.NoError(t, p.Register((*Drifted)(nil)))
	require.NoError(t, p.Register((*Missing)(nil)))
	require.NoError(t, p.Register((*NameKeyed)(nil)))
	mismatches, err = p.Verify(ctx, intro)
	require.NoError(t, err)

	var got []string
	for _, m := range mismatches {
		got = append(got, m.String())
	}
	assert.ElementsMatch(t, []string{
		"glue_test.Drifted (account.phone): column does not exist",
		"glue_test.NameKeyed (account.name): key column is not part of the primary key",
		"glue_test.Missing (missings): table does not exist",
	}, got)
}

func TestIntrospector_TableInfo(t *testing.T) {
	p := setupProvider(t)
	intro := &sqlite.Introspector{DB: p.DB()}

	info, err := intro.TableInfo(context.Background(), "order_lines")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []string{"order_id", "line_no"}, info.PrimaryKey())
	col, ok := info.Column("QTY")
	require.True(t, ok)
	assert.False(t, col.IsNullable)

	info, err = intro.TableInfo(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, info)
}
