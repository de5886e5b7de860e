package glue

import (
	"context"
	"fmt"
	"sort"

	driversSchema "github.com/xingh/glue/drivers/schema"
	"github.com/xingh/glue/internal/schema"
)

// Mismatch is one difference between an entity mapping and the live table.
type Mismatch struct {
	Entity string
	Table  string
	Column string // empty when the whole table is concerned
	Reason string
}

func (m Mismatch) String() string {
	if m.Column == "" {
		return fmt.Sprintf("%s (%s): %s", m.Entity, m.Table, m.Reason)
	}
	return fmt.Sprintf("%s (%s.%s): %s", m.Entity, m.Table, m.Column, m.Reason)
}

// Verify compares every registered entity with its table as reported by intro: the
// table must exist, every mapped column must exist, and key columns should be part of
// the primary key. Register entities first; Verify only sees known types.
func (p *Provider) Verify(ctx context.Context, intro driversSchema.Introspector) ([]Mismatch, error) {
	var entities []*schema.Entity
	p.registry.Range(func(e *schema.Entity) bool {
		entities = append(entities, e)
		return true
	})
	sort.Slice(entities, func(i, j int) bool { return entities[i].Table < entities[j].Table })

	var out []Mismatch
	for _, e := range entities {
		info, err := intro.TableInfo(ctx, e.Table)
		if err != nil {
			return nil, p.wrap("Verify", e, "", err)
		}
		name := e.Type.String()
		if info == nil {
			out = append(out, Mismatch{Entity: name, Table: e.Table, Reason: "table does not exist"})
			continue
		}
		for _, m := range e.Columns() {
			col, ok := info.Column(m.Column.Name)
			switch {
			case !ok:
				out = append(out, Mismatch{Entity: name, Table: e.Table, Column: m.Column.Name, Reason: "column does not exist"})
			case m.Column.Key && !col.IsPrimary:
				out = append(out, Mismatch{Entity: name, Table: e.Table, Column: m.Column.Name, Reason: "key column is not part of the primary key"})
			}
		}
	}
	if len(out) > 0 {
		p.logger.Warn("mapping does not match database", "mismatches", len(out))
	}
	return out, nil
}
