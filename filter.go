package glue

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/xingh/glue/internal/sqlbuilder"
	"github.com/xingh/glue/internal/utils"
)

// Params are named parameter values referenced as :name in SQL text.
type Params map[string]interface{}

// Filter is a WHERE predicate with its bound parameters. The zero Filter matches every
// row. Values are always bound, never spliced into the text.
type Filter struct {
	text   string
	column string // set by Eq; quoted when rendered
	parts  []Filter
	params Params
	err    error
}

// Where builds a filter from predicate text using :name placeholders.
//
//	glue.Where("name = :name AND age > :age", glue.Params{"name": "x", "age": 3})
func Where(text string, params Params) Filter {
	return Filter{text: strings.TrimSpace(text), params: copyParams(params)}
}

// Eq builds column = :column.
func Eq(column string, value interface{}) Filter {
	return Filter{column: column, params: Params{utils.ParamName(column): value}}
}

// And joins filters with AND, each parenthesized. Empty filters are skipped. Two
// filters binding the same parameter name to different values make the result invalid.
func And(filters ...Filter) Filter {
	var out Filter
	for _, f := range filters {
		if f.err != nil && out.err == nil {
			out.err = f.err
		}
		if f.IsEmpty() {
			continue
		}
		out.parts = append(out.parts, f)
		for name, v := range f.params {
			if prev, ok := out.params[name]; ok && !reflect.DeepEqual(prev, v) && out.err == nil {
				out.err = fmt.Errorf("%w: parameter %q bound to both %v and %v", ErrConfiguration, name, prev, v)
				continue
			}
			if out.params == nil {
				out.params = Params{}
			}
			out.params[name] = v
		}
	}
	if len(out.parts) == 1 && out.err == nil {
		return out.parts[0]
	}
	return out
}

// And is shorthand for glue.And(f, other).
func (f Filter) And(other Filter) Filter {
	return And(f, other)
}

// IsEmpty reports whether the filter matches every row.
func (f Filter) IsEmpty() bool {
	return f.text == "" && f.column == "" && len(f.parts) == 0
}

// Params returns the filter's bound values.
func (f Filter) Params() Params {
	return f.params
}

// Err reports an invalid combination produced by And.
func (f Filter) Err() error {
	return f.err
}

// SQL renders the predicate for d, without the WHERE keyword.
func (f Filter) SQL(d Dialect) string {
	switch {
	case f.column != "":
		return d.Quote(f.column) + "=" + sqlbuilder.Param(f.column)
	case len(f.parts) > 0:
		parts := make([]string, len(f.parts))
		for i, p := range f.parts {
			parts[i] = "(" + p.SQL(d) + ")"
		}
		return strings.Join(parts, " AND ")
	default:
		return f.text
	}
}

func copyParams(params Params) Params {
	if len(params) == 0 {
		return nil
	}
	out := make(Params, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

type orderTerm struct {
	column string
	desc   bool
	raw    string
}

// Order is an ORDER BY clause. The zero Order leaves the store's native order.
type Order struct {
	terms []orderTerm
}

// Asc orders by column ascending.
func Asc(column string) Order {
	return Order{terms: []orderTerm{{column: column}}}
}

// Desc orders by column descending.
func Desc(column string) Order {
	return Order{terms: []orderTerm{{column: column, desc: true}}}
}

// OrderBy uses raw ORDER BY text, e.g. "lower(name) DESC".
func OrderBy(raw string) Order {
	if raw = strings.TrimSpace(raw); raw == "" {
		return Order{}
	}
	return Order{terms: []orderTerm{{raw: raw}}}
}

// Then appends next as a tie breaker.
func (o Order) Then(next Order) Order {
	terms := make([]orderTerm, 0, len(o.terms)+len(next.terms))
	terms = append(terms, o.terms...)
	terms = append(terms, next.terms...)
	return Order{terms: terms}
}

// IsEmpty reports whether no ordering is requested.
func (o Order) IsEmpty() bool {
	return len(o.terms) == 0
}

// SQL renders the clause for d, without the ORDER BY keywords.
func (o Order) SQL(d Dialect) string {
	parts := make([]string, len(o.terms))
	for i, t := range o.terms {
		switch {
		case t.raw != "":
			parts[i] = t.raw
		case t.desc:
			parts[i] = d.Quote(t.column) + " DESC"
		default:
			parts[i] = d.Quote(t.column) + " ASC"
		}
	}
	return strings.Join(parts, ",")
}

// Limit is a pagination window of Count rows starting at Index. A Count of zero or less
// means unlimited.
type Limit struct {
	Index int
	Count int
}

var (
	// Unlimited returns every row.
	Unlimited = Limit{}
	// One returns at most the first row.
	One = Limit{Count: 1}
)

// Page returns the window of count rows starting at index.
func Page(index, count int) Limit {
	return Limit{Index: index, Count: count}
}

// IsUnlimited reports whether the window is unbounded.
func (l Limit) IsUnlimited() bool {
	return l.Count <= 0
}

// SQL renders the pagination clause for d, or "" when unlimited.
func (l Limit) SQL(d Dialect) string {
	if l.IsUnlimited() {
		return ""
	}
	index := l.Index
	if index < 0 {
		index = 0
	}
	return d.Limit(index, l.Count)
}

// Command is SQL text with named parameters, the unit handed to the store.
type Command struct {
	Text   string
	Params Params
}
