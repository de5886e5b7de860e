package glue

import (
	"context"
	"fmt"
	"reflect"

	"github.com/xingh/glue/internal/schema"
	"github.com/xingh/glue/internal/utils"
)

// session carries out the DB operations against one execution target: the provider's
// database (autocommit) or a unit of work's transaction.
type session struct {
	p    *Provider
	exec *executor
	unit *UnitOfWork // nil when autocommitting
}

func (s *session) ready() error {
	if s.unit != nil && s.unit.Done() {
		return ErrTransactionDone
	}
	return nil
}

// --- Command templates ---

func (p *Provider) selectAllSQL(e *schema.Entity) string {
	return e.Commands.SelectAll(func() string {
		text := p.builder.SelectAll(e.Table, schema.ColumnNames(e.Columns()))
		p.logger.Debug("select sql", "entity", e.Type.String(), "sql", text)
		return text
	})
}

func (p *Provider) findSQL(e *schema.Entity) string {
	return e.Commands.Find(func() string {
		text := p.builder.Find(e.Table, schema.ColumnNames(e.Columns()), schema.ColumnNames(e.KeyMembers))
		p.logger.Debug("find sql", "entity", e.Type.String(), "sql", text)
		return text
	})
}

func insertColumns(e *schema.Entity) []*schema.Member {
	return schema.Subtract(e.Columns(), e.AutoMembers)
}

func updateColumns(e *schema.Entity) []*schema.Member {
	return schema.Subtract(e.Columns(), e.KeyMembers, e.AutoMembers)
}

func (p *Provider) insertSQL(e *schema.Entity) string {
	return e.Commands.Insert(func() string {
		returning := ""
		if e.AutoKey != nil {
			returning = e.AutoKey.Column.Name
		}
		text := p.builder.Insert(e.Table, schema.ColumnNames(insertColumns(e)), returning)
		p.logger.Debug("insert sql", "entity", e.Type.String(), "sql", text)
		return text
	})
}

func (p *Provider) updateSQL(e *schema.Entity) string {
	return e.Commands.Update(func() string {
		text := p.builder.Update(e.Table, schema.ColumnNames(updateColumns(e)), schema.ColumnNames(e.KeyMembers))
		p.logger.Debug("update sql", "entity", e.Type.String(), "sql", text)
		return text
	})
}

func (p *Provider) deleteSQL(e *schema.Entity) string {
	return e.Commands.Delete(func() string {
		text := p.builder.Delete(e.Table, schema.ColumnNames(e.KeyMembers))
		p.logger.Debug("delete sql", "entity", e.Type.String(), "sql", text)
		return text
	})
}

// returnsIdentity reports whether the dialect hands back generated keys as a result row
// rather than through LastInsertId.
func (p *Provider) returnsIdentity() bool {
	return p.dialect.Returning("id") != ""
}

// keyParams binds caller-supplied key values positionally to the key columns.
func keyParams(e *schema.Entity, keys []interface{}) (Params, error) {
	if err := e.RequireKeys(); err != nil {
		return nil, err
	}
	if len(keys) != len(e.KeyMembers) {
		return nil, fmt.Errorf("%w: %s expects %d key values, got %d", ErrKeyCount, e.Type, len(e.KeyMembers), len(keys))
	}
	params := make(Params, len(keys))
	for i, m := range e.KeyMembers {
		params[utils.ParamName(m.Column.Name)] = keys[i]
	}
	return params, nil
}

// --- Reads ---

// Find loads the row whose key columns equal keys, in key declaration order, into
// dest. Cached entities are served from the table snapshot outside units of work.
func (s *session) Find(ctx context.Context, dest interface{}, keys ...interface{}) (bool, error) {
	const op = "Find"
	e, v, err := s.p.instance(dest)
	if err != nil {
		return false, s.p.wrap(op, e, "", err)
	}
	if err := s.ready(); err != nil {
		return false, s.p.wrap(op, e, "", err)
	}
	params, err := keyParams(e, keys)
	if err != nil {
		return false, s.p.wrap(op, e, "", err)
	}

	if e.Cache != nil && s.unit == nil {
		cached, ok, err := e.Cache.Lookup(ctx, keys[0], s.p.loader(e))
		if err != nil {
			return false, s.p.wrap(op, e, s.p.selectAllSQL(e), err)
		}
		if !ok {
			return false, nil
		}
		// Callers get a deep copy; the snapshot instance is never handed out.
		e.Accessor.CopyInto(v, reflect.ValueOf(cached))
		return true, nil
	}

	found := false
	err = s.read(ctx, op, e, Command{Text: s.p.findSQL(e), Params: params}, false, func(row reflect.Value) bool {
		v.Elem().Set(row.Elem())
		found = true
		return false
	})
	return found, err
}

// FindByFilter loads the first row matching filter in the given order into dest.
func (s *session) FindByFilter(ctx context.Context, dest interface{}, filter Filter, order Order) (bool, error) {
	return s.findFirst(ctx, "FindByFilter", "", dest, filter, order)
}

// FindFrom is FindByFilter reading the entity's columns from another table or view.
func (s *session) FindFrom(ctx context.Context, table string, dest interface{}, filter Filter, order Order) (bool, error) {
	return s.findFirst(ctx, "FindFrom", table, dest, filter, order)
}

func (s *session) findFirst(ctx context.Context, op, table string, dest interface{}, filter Filter, order Order) (bool, error) {
	e, v, err := s.p.instance(dest)
	if err != nil {
		return false, s.p.wrap(op, e, "", err)
	}
	cmd, err := s.selectCommand(e, table, filter, order, One)
	if err != nil {
		return false, s.p.wrap(op, e, "", err)
	}
	found := false
	err = s.read(ctx, op, e, cmd, false, func(row reflect.Value) bool {
		v.Elem().Set(row.Elem())
		found = true
		return false
	})
	return found, err
}

// FindByCommand runs cmd and loads its first row into dest, matching result columns to
// fields by name.
func (s *session) FindByCommand(ctx context.Context, dest interface{}, cmd Command) (bool, error) {
	const op = "FindByCommand"
	e, v, err := s.p.instance(dest)
	if err != nil {
		return false, s.p.wrap(op, e, cmd.Text, err)
	}
	found := false
	err = s.read(ctx, op, e, cmd, true, func(row reflect.Value) bool {
		v.Elem().Set(row.Elem())
		found = true
		return false
	})
	return found, err
}

// --- Writes ---

// Insert adds obj as a new row. When the entity has a single auto-generated key, the
// store-assigned value is written back onto obj.
func (s *session) Insert(ctx context.Context, obj interface{}) error {
	const op = "Insert"
	e, v, err := s.p.instance(obj)
	if err != nil {
		return s.p.wrap(op, e, "", err)
	}
	if err := s.ready(); err != nil {
		return s.p.wrap(op, e, "", err)
	}
	if err := s.trigger(ctx, op, e, EventBeforeInsert, obj, nil); err != nil {
		return err
	}
	text := s.p.insertSQL(e)
	cmd := Command{Text: text, Params: e.Accessor.Params(v, insertColumns(e))}

	if e.AutoKey != nil && s.p.returnsIdentity() {
		var id interface{}
		if _, err := s.exec.Scalar(ctx, cmd, &id); err != nil {
			return s.p.wrap(op, e, text, err)
		}
		if err := e.Accessor.SetValue(v, e.AutoKey, id); err != nil {
			return s.p.wrap(op, e, text, err)
		}
	} else {
		res, err := s.exec.NonQuery(ctx, cmd)
		if err != nil {
			return s.p.wrap(op, e, text, err)
		}
		if e.AutoKey != nil {
			id, err := res.LastInsertId()
			if err != nil {
				return s.p.wrap(op, e, text, err)
			}
			if err := e.Accessor.SetValue(v, e.AutoKey, id); err != nil {
				return s.p.wrap(op, e, text, err)
			}
		}
	}
	s.written(ctx, e)
	return s.trigger(ctx, op, e, EventAfterInsert, obj, nil)
}

// Update writes every non-key, non-auto column of obj to the row with obj's keys.
func (s *session) Update(ctx context.Context, obj interface{}) error {
	const op = "Update"
	e, v, err := s.p.instance(obj)
	if err != nil {
		return s.p.wrap(op, e, "", err)
	}
	if err := s.ready(); err != nil {
		return s.p.wrap(op, e, "", err)
	}
	if err := e.RequireKeys(); err != nil {
		return s.p.wrap(op, e, "", err)
	}
	set := updateColumns(e)
	if len(set) == 0 {
		return s.p.wrap(op, e, "", fmt.Errorf("%w: %s has no updatable columns", ErrConfiguration, e.Type))
	}
	if err := s.trigger(ctx, op, e, EventBeforeUpdate, obj, nil); err != nil {
		return err
	}
	text := s.p.updateSQL(e)
	params := e.Accessor.Params(v, append(append([]*schema.Member(nil), set...), e.KeyMembers...))
	if _, err := s.exec.NonQuery(ctx, Command{Text: text, Params: params}); err != nil {
		return s.p.wrap(op, e, text, err)
	}
	s.written(ctx, e)
	return s.trigger(ctx, op, e, EventAfterUpdate, obj, nil)
}

// Save is not supported: callers choose Insert or Update explicitly.
func (s *session) Save(ctx context.Context, obj interface{}) error {
	e, _ := s.p.entity(obj)
	return s.p.wrap("Save", e, "", fmt.Errorf("%w: Save is not implemented, use Insert or Update", ErrNotSupported))
}

// Delete removes the row of proto's type whose key columns equal keys.
func (s *session) Delete(ctx context.Context, proto interface{}, keys ...interface{}) error {
	const op = "Delete"
	e, err := s.p.entity(proto)
	if err != nil {
		return s.p.wrap(op, nil, "", err)
	}
	return s.delete(ctx, op, e, proto, keys, keys)
}

// DeleteObject removes the row identified by obj's key fields.
func (s *session) DeleteObject(ctx context.Context, obj interface{}) error {
	const op = "DeleteObject"
	e, v, err := s.p.instance(obj)
	if err != nil {
		return s.p.wrap(op, e, "", err)
	}
	return s.delete(ctx, op, e, obj, nil, e.Accessor.KeyValues(v, e.KeyMembers))
}

// delete removes one row by key. entity and data are what listeners receive.
func (s *session) delete(ctx context.Context, op string, e *schema.Entity, entity, data interface{}, keys []interface{}) error {
	if err := s.ready(); err != nil {
		return s.p.wrap(op, e, "", err)
	}
	params, err := keyParams(e, keys)
	if err != nil {
		return s.p.wrap(op, e, "", err)
	}
	if err := s.trigger(ctx, op, e, EventBeforeDelete, entity, data); err != nil {
		return err
	}
	text := s.p.deleteSQL(e)
	if _, err := s.exec.NonQuery(ctx, Command{Text: text, Params: params}); err != nil {
		return s.p.wrap(op, e, text, err)
	}
	s.written(ctx, e)
	return s.trigger(ctx, op, e, EventAfterDelete, entity, data)
}

// DeleteAll removes every row of proto's type matching filter and returns how many
// rows the store reports as deleted.
func (s *session) DeleteAll(ctx context.Context, proto interface{}, filter Filter) (int64, error) {
	const op = "DeleteAll"
	e, err := s.p.entity(proto)
	if err != nil {
		return 0, s.p.wrap(op, nil, "", err)
	}
	if err := s.ready(); err != nil {
		return 0, s.p.wrap(op, e, "", err)
	}
	if err := filter.Err(); err != nil {
		return 0, s.p.wrap(op, e, "", err)
	}
	where := ""
	if !filter.IsEmpty() {
		where = filter.SQL(s.p.dialect)
	}
	if err := s.trigger(ctx, op, e, EventBeforeDelete, proto, filter); err != nil {
		return 0, err
	}
	text := s.p.builder.DeleteAll(e.Table, where)
	res, err := s.exec.NonQuery(ctx, Command{Text: text, Params: filter.Params()})
	if err != nil {
		return 0, s.p.wrap(op, e, text, err)
	}
	s.written(ctx, e)
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.p.wrap(op, e, text, err)
	}
	return n, s.trigger(ctx, op, e, EventAfterDelete, proto, filter)
}

func (s *session) trigger(ctx context.Context, op string, e *schema.Entity, event EventType, entity, data interface{}) error {
	if err := s.p.hooks.trigger(ctx, event, entity, data); err != nil {
		s.p.logger.Warn("event listener failed", "event", string(event), "entity", e.Type.String(), "error", err)
		return s.p.wrap(op, e, "", err)
	}
	return nil
}

// written invalidates e's snapshot after a successful write. Inside a unit of work the
// entity is remembered and invalidated again once the unit finishes.
func (s *session) written(ctx context.Context, e *schema.Entity) {
	if e.Cache != nil {
		e.Cache.Invalidate()
	}
	if s.unit != nil {
		s.unit.touch(e)
		return
	}
	s.p.publish(ctx, e)
}
