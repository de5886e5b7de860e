package glue

import (
	"context"
	"reflect"

	"github.com/xingh/glue/internal/cache"
	"github.com/xingh/glue/internal/schema"
)

// loader returns the full-table load of a cached entity. It always reads through the
// provider's own database, never through a unit of work, so a snapshot only ever holds
// committed rows.
func (p *Provider) loader(e *schema.Entity) cache.LoadFunc {
	return func(ctx context.Context) (*cache.Table, error) {
		key := e.KeyMembers[0]
		t := cache.NewTable()
		// Concurrent callers share this load; one caller giving up must not fail the rest.
		ctx = context.WithoutCancel(ctx)
		err := p.session.read(ctx, "Find", e, Command{Text: p.selectAllSQL(e)}, false, func(row reflect.Value) bool {
			t.Put(key.Value(row.Elem()), row.Interface())
			return true
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// CacheStats describes the snapshot of one cached entity.
type CacheStats struct {
	Table  string
	Loaded bool  // A snapshot is currently published
	Loads  int64 // Full loads run so far
}

// CacheStats reports the snapshot state of every cached entity known to the provider.
func (p *Provider) CacheStats() []CacheStats {
	var stats []CacheStats
	p.registry.Range(func(e *schema.Entity) bool {
		if e.Cache != nil {
			stats = append(stats, CacheStats{Table: e.Table, Loaded: e.Cache.Loaded(), Loads: e.Cache.Loads()})
		}
		return true
	})
	return stats
}
