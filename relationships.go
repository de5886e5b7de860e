package glue

import (
	"context"
	"reflect"

	"github.com/xingh/glue/internal/schema"
	"github.com/xingh/glue/internal/sqlbuilder"
)

// Many-to-many relations live in an implicit join table named after the left table
// followed by the right table (accounts + groups = accountsgroups), holding one column
// per side named after that side's key column. Both sides need exactly one key column,
// and the two key columns must have different names.

// ListManyToMany loads into dest the right-hand rows related to the left instance.
func (s *session) ListManyToMany(ctx context.Context, left interface{}, dest interface{}, filter Filter, order Order, limit Limit) error {
	return s.related(ctx, "ListManyToMany", left, dest, true, filter, order, limit)
}

// ListManyToManyInverse loads into dest the left-hand rows related to the right instance.
func (s *session) ListManyToManyInverse(ctx context.Context, dest interface{}, right interface{}, filter Filter, order Order, limit Limit) error {
	return s.related(ctx, "ListManyToManyInverse", right, dest, false, filter, order, limit)
}

func (s *session) related(ctx context.Context, op string, owner, dest interface{}, ownerIsLeft bool, filter Filter, order Order, limit Limit) error {
	oe, ov, err := s.p.instance(owner)
	if err != nil {
		return s.p.wrap(op, nil, "", err)
	}
	te, err := s.p.entity(dest)
	if err != nil {
		return s.p.wrap(op, nil, "", err)
	}
	out, err := newSliceDest(dest, te)
	if err != nil {
		return s.p.wrap(op, te, "", err)
	}
	ownerKey, err := oe.Key()
	if err != nil {
		return s.p.wrap(op, oe, "", err)
	}
	targetKey, err := te.Key()
	if err != nil {
		return s.p.wrap(op, te, "", err)
	}
	if err := filter.Err(); err != nil {
		return s.p.wrap(op, te, "", err)
	}

	join := sqlbuilder.JoinTable(oe.Table, te.Table)
	if !ownerIsLeft {
		join = sqlbuilder.JoinTable(te.Table, oe.Table)
	}
	where, orderBy := "", ""
	if !filter.IsEmpty() {
		where = filter.SQL(s.p.dialect)
	}
	if !order.IsEmpty() {
		orderBy = order.SQL(s.p.dialect)
	}
	text := s.p.builder.ManyToMany(te.Table, join, targetKey.Column.Name, ownerKey.Column.Name,
		where, orderBy, limit.SQL(s.p.dialect))
	s.p.logger.Debug("many-to-many sql", "entity", te.Type.String(), "sql", text)

	params := make(Params, len(filter.Params())+1)
	for k, v := range filter.Params() {
		params[k] = v
	}
	params[sqlbuilder.OwnerKeyParam] = ownerKey.Value(ov.Elem())
	// SELECT target.* returns the table's own column order, so rows are read by name.
	return s.read(ctx, op, te, Command{Text: text, Params: params}, true, out.add)
}

// AddManyToMany relates left and right. Relating an already related pair is a no-op.
func (s *session) AddManyToMany(ctx context.Context, left, right interface{}) error {
	return s.link(ctx, "AddManyToMany", left, right, (*sqlbuilder.Builder).Link)
}

// DelManyToMany removes the relation between left and right, if any.
func (s *session) DelManyToMany(ctx context.Context, left, right interface{}) error {
	return s.link(ctx, "DelManyToMany", left, right, (*sqlbuilder.Builder).Unlink)
}

func (s *session) link(ctx context.Context, op string, left, right interface{}, build func(b *sqlbuilder.Builder, join, leftKey, rightKey string) string) error {
	le, lv, err := s.p.instance(left)
	if err != nil {
		return s.p.wrap(op, nil, "", err)
	}
	re, rv, err := s.p.instance(right)
	if err != nil {
		return s.p.wrap(op, nil, "", err)
	}
	if err := s.ready(); err != nil {
		return s.p.wrap(op, le, "", err)
	}
	lk, err := le.Key()
	if err != nil {
		return s.p.wrap(op, le, "", err)
	}
	rk, err := re.Key()
	if err != nil {
		return s.p.wrap(op, re, "", err)
	}
	text := build(s.p.builder, sqlbuilder.JoinTable(le.Table, re.Table), lk.Column.Name, rk.Column.Name)
	s.p.logger.Debug("many-to-many sql", "entity", le.Type.String(), "sql", text)
	params := Params{
		sqlbuilder.LeftKeyParam:  keyValue(lk, lv),
		sqlbuilder.RightKeyParam: keyValue(rk, rv),
	}
	if _, err := s.exec.NonQuery(ctx, Command{Text: text, Params: params}); err != nil {
		return s.p.wrap(op, le, text, err)
	}
	return nil
}

func keyValue(m *schema.Member, obj reflect.Value) interface{} {
	return m.Value(reflect.Indirect(obj))
}
