package glue_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xingh/glue"
	"github.com/xingh/glue/drivers/db/sqlite"
	"github.com/xingh/glue/internal/testutil"
)

// --- Test Models ---

type Account struct {
	ID    int64  `db:"id,pk,auto"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

func (Account) TableName() string { return "account" }

type Group struct {
	ID    int64  `db:"group_id,pk,auto"`
	Title string `db:"title"`
}

func (Group) TableName() string { return "groups" }

// Country is served from the full-table cache.
type Country struct {
	Code string `db:"code,pk"`
	Name string `db:"name"`
}

func (Country) TableName() string { return "country" }
func (Country) Cached() bool      { return true }

// Badge is cached and carries reference-typed and nullable columns.
type Badge struct {
	Code  string          `db:"code,pk"`
	Label *string         `db:"label"`
	Blob  []byte          `db:"blob"`
	Alias *sql.NullString `db:"alias"`
}

func (Badge) TableName() string { return "badges" }
func (Badge) Cached() bool      { return true }

type OrderLine struct {
	OrderID int64 `db:"order_id,pk"`
	LineNo  int   `db:"line_no,pk"`
	Qty     int   `db:"qty"`
}

func (OrderLine) TableName() string { return "order_lines" }

const testSchema = `
CREATE TABLE account (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, email TEXT NOT NULL);
CREATE TABLE groups (group_id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL);
CREATE TABLE accountgroups (id INTEGER NOT NULL, group_id INTEGER NOT NULL, PRIMARY KEY (id, group_id));
CREATE TABLE country (code TEXT PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE order_lines (order_id INTEGER NOT NULL, line_no INTEGER NOT NULL, qty INTEGER NOT NULL, PRIMARY KEY (order_id, line_no));
CREATE TABLE badges (code TEXT PRIMARY KEY, label TEXT, blob BLOB, alias TEXT);
CREATE VIEW big_orders AS SELECT * FROM order_lines WHERE qty >= 10;
`

// --- Test Setup ---

// setupProvider opens a fresh SQLite file database with the test schema.
func setupProvider(tb testing.TB, opts ...glue.Option) *glue.Provider {
	tb.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(tb, "dialect", "sqlite")

	dsn := "file:" + filepath.Join(tb.TempDir(), "glue.db") + "?_busy_timeout=5000"
	conn, err := sqlite.Open(ctx, dsn, sqlite.Options{Logger: logger})
	require.NoError(tb, err)
	_, err = conn.ExecContext(ctx, testSchema)
	require.NoError(tb, err)

	p, err := glue.New(conn, sqlite.Dialect{}, append([]glue.Option{glue.WithLogger(logger)}, opts...)...)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = p.Close() })
	return p
}

func insertAccounts(tb testing.TB, db glue.DB, names ...string) []*Account {
	tb.Helper()
	out := make([]*Account, 0, len(names))
	for _, n := range names {
		a := &Account{Name: n, Email: n + "@x.com"}
		require.NoError(tb, db.Insert(context.Background(), a))
		out = append(out, a)
	}
	return out
}

func cacheStats(p *glue.Provider, table string) glue.CacheStats {
	for _, s := range p.CacheStats() {
		if s.Table == table {
			return s
		}
	}
	return glue.CacheStats{Table: table}
}

// recordingBus is an in-memory InvalidationBus.
type recordingBus struct {
	mu        sync.Mutex
	published []string
	handler   func(table string)
}

func (b *recordingBus) Publish(ctx context.Context, table string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, table)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, fn func(table string)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = fn
	return nil
}

func (b *recordingBus) Published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

// deliver simulates a message from another process.
func (b *recordingBus) deliver(table string) {
	b.mu.Lock()
	fn := b.handler
	b.mu.Unlock()
	if fn != nil {
		fn(table)
	}
}
