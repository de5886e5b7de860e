package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableOf(rows map[interface{}]string) *Table {
	t := NewTable()
	for k, v := range rows {
		t.Put(k, v)
	}
	return t
}

func TestSnapshotLoadsOnceUnderConcurrency(t *testing.T) {
	s := NewSnapshot("accounts", nil)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) (*Table, error) {
		calls.Add(1)
		<-release
		return tableOf(map[interface{}]string{int64(1): "alice"}), nil
	}

	const readers = 16
	var wg sync.WaitGroup
	results := make([]*Table, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := s.Get(context.Background(), load)
			assert.NoError(t, err)
			results[i] = tbl
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), s.Loads())
	for _, tbl := range results {
		assert.Same(t, results[0], tbl)
	}
	assert.True(t, s.Loaded())
}

func TestSnapshotLookupIsCaseInsensitive(t *testing.T) {
	s := NewSnapshot("countries", nil)
	load := func(ctx context.Context) (*Table, error) {
		return tableOf(map[interface{}]string{"NO": "Norway", int64(7): "seven"}), nil
	}

	v, ok, err := s.Lookup(context.Background(), "no", load)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Norway", v)

	v, ok, err = s.Lookup(context.Background(), int32(7), load)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "seven", v)

	v, ok, err = s.Lookup(context.Background(), []byte("No"), load)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Norway", v)

	_, ok, err = s.Lookup(context.Background(), "se", load)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Loads())
}

func TestSnapshotInvalidateForcesReload(t *testing.T) {
	s := NewSnapshot("accounts", nil)
	name := "alice"
	load := func(ctx context.Context) (*Table, error) {
		return tableOf(map[interface{}]string{1: name}), nil
	}

	v, _, err := s.Lookup(context.Background(), 1, load)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	name = "alicia"
	v, _, err = s.Lookup(context.Background(), 1, load)
	require.NoError(t, err)
	assert.Equal(t, "alice", v, "served from the snapshot")

	s.Invalidate()
	assert.False(t, s.Loaded())
	v, _, err = s.Lookup(context.Background(), 1, load)
	require.NoError(t, err)
	assert.Equal(t, "alicia", v)
	assert.Equal(t, int64(2), s.Loads())
}

func TestSnapshotFailedLoadPublishesNothing(t *testing.T) {
	s := NewSnapshot("accounts", nil)
	boom := errors.New("connection reset")
	fail := true
	load := func(ctx context.Context) (*Table, error) {
		if fail {
			return nil, boom
		}
		return tableOf(map[interface{}]string{1: "alice"}), nil
	}

	_, _, err := s.Lookup(context.Background(), 1, load)
	require.ErrorIs(t, err, boom)
	assert.False(t, s.Loaded())

	fail = false
	v, ok, err := s.Lookup(context.Background(), 1, load)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", v)
	assert.Equal(t, int64(2), s.Loads())
}

func TestSnapshotLoadOverlappingInvalidateIsNotPublished(t *testing.T) {
	s := NewSnapshot("accounts", nil)
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (*Table, error) {
		close(started)
		<-release
		return tableOf(map[interface{}]string{1: "stale"}), nil
	}

	done := make(chan *Table)
	go func() {
		tbl, err := s.Get(context.Background(), load)
		assert.NoError(t, err)
		done <- tbl
	}()
	<-started
	s.Invalidate()
	close(release)

	tbl := <-done
	v, ok := tbl.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "stale", v, "the caller still gets its result")
	assert.False(t, s.Loaded(), "but it is not published")

	fresh := func(ctx context.Context) (*Table, error) {
		return tableOf(map[interface{}]string{1: "fresh"}), nil
	}
	v, _, err := s.Lookup(context.Background(), 1, fresh)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.True(t, s.Loaded())
}

func TestTableKeepsLoadOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Put(3, "c")
	tbl.Put(1, "a")
	tbl.Put(2, "b")
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []interface{}{"c", "a", "b"}, tbl.Values())
}
