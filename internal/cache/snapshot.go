package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/xingh/glue/internal/utils"
)

// Table is one fully loaded snapshot of a cacheable table, indexed by the
// case-insensitive string form of its single key. A Table is never mutated after it is
// published.
type Table struct {
	rows *utils.OrderedMap[string, interface{}]
}

// NewTable creates an empty table for a loader to fill.
func NewTable() *Table {
	return &Table{rows: utils.NewOrderedMap[string, interface{}]()}
}

// Put indexes instance under key. Only loaders call Put, before the table is published.
func (t *Table) Put(key interface{}, instance interface{}) {
	t.rows.Set(utils.KeyString(key), instance)
}

// Lookup returns the instance stored under key.
func (t *Table) Lookup(key interface{}) (interface{}, bool) {
	return t.rows.Get(utils.KeyString(key))
}

// Len returns the number of cached rows.
func (t *Table) Len() int {
	return t.rows.Len()
}

// Values returns the cached instances in load order.
func (t *Table) Values() []interface{} {
	return t.rows.Values()
}

// LoadFunc reads the whole table from the store.
type LoadFunc func(ctx context.Context) (*Table, error)

// Snapshot is the read-through full-table cache of one entity.
//
// Readers either see a completely loaded table or trigger a load; concurrent loads are
// collapsed into one. A load that overlaps an Invalidate is handed to its callers but
// not published, so a write is never hidden by an older snapshot.
type Snapshot struct {
	name       string
	mu         sync.Mutex // serializes publish against Invalidate
	current    atomic.Pointer[Table]
	generation atomic.Uint64
	group      singleflight.Group
	loads      atomic.Int64
	logger     *slog.Logger
}

// NewSnapshot creates an empty snapshot cache for the named table.
func NewSnapshot(name string, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshot{name: name, logger: logger}
}

// Get returns the current table, loading it when absent.
func (s *Snapshot) Get(ctx context.Context, load LoadFunc) (*Table, error) {
	if t := s.current.Load(); t != nil {
		return t, nil
	}
	// Loads are keyed by generation: a caller arriving after an invalidation never joins
	// a load that started before it.
	gen := s.generation.Load()
	v, err, shared := s.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		if t := s.current.Load(); t != nil {
			return t, nil
		}
		s.loads.Add(1)
		t, err := load(ctx)
		if err != nil {
			s.logger.Debug("cache load failed", "table", s.name, "error", err)
			return nil, err
		}
		if s.publish(gen, t) {
			s.logger.Debug("cache loaded", "table", s.name, "rows", t.Len())
		} else {
			s.logger.Debug("cache load discarded after invalidation", "table", s.name, "rows", t.Len())
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("cache load shared", "table", s.name)
	}
	return v.(*Table), nil
}

// Lookup finds key in the cached table, loading it when absent.
func (s *Snapshot) Lookup(ctx context.Context, key interface{}, load LoadFunc) (interface{}, bool, error) {
	t, err := s.Get(ctx, load)
	if err != nil {
		return nil, false, err
	}
	v, ok := t.Lookup(key)
	return v, ok, nil
}

// publish stores t unless an invalidation happened since gen was read.
func (s *Snapshot) publish(gen uint64, t *Table) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != gen {
		return false
	}
	s.current.Store(t)
	return true
}

// Invalidate drops the current table. The next Get reloads it.
func (s *Snapshot) Invalidate() {
	s.mu.Lock()
	s.generation.Add(1)
	old := s.current.Swap(nil)
	s.mu.Unlock()
	if old != nil {
		s.logger.Debug("cache invalidated", "table", s.name)
	}
}

// Loaded reports whether a table is currently published.
func (s *Snapshot) Loaded() bool {
	return s.current.Load() != nil
}

// Loads returns how many full loads have run so far.
func (s *Snapshot) Loads() int64 {
	return s.loads.Load()
}
