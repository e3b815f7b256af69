// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import (
	"strings"

	"github.com/pkg/errors"
)

// Builder is the capability a [Query] needs from a SQL builder: the
// assembled text, a reset, and the parameter manager holding the builder's
// declared parameters.
type Builder interface {
	SQL() (string, error)
	Clear()
	Params() *Manager
}

// StatementBuilder assembles SQL text from composable clauses. Parameter
// references use the @name form and are declared on the builder's
// [Manager]. The zero value is not usable; call [NewBuilder].
type StatementBuilder struct {
	pm *Manager

	start   []string
	selects []string
	from    string
	joins   []string
	wheres  []where
	groups  []string
	havings []string
	orders  []string
	end     []string

	insertTable string
	insertCols  []string
	valueRows   []string
}

type where struct {
	op   string
	expr string
}

// NewBuilder returns an empty statement builder with its own parameter
// manager.
func NewBuilder() *StatementBuilder {
	return &StatementBuilder{pm: NewManager()}
}

// Params returns the builder's parameter manager.
func (b *StatementBuilder) Params() *Manager {
	return b.pm
}

// Bind declares an input parameter on the builder's manager and returns the
// builder for chaining.
func (b *StatementBuilder) Bind(name string, value any) *StatementBuilder {
	b.pm.Add(name, value)
	return b
}

// Start prepends a raw fragment before the assembled statement, e.g. a CTE.
func (b *StatementBuilder) Start(raw string) *StatementBuilder {
	b.start = append(b.start, raw)
	return b
}

// End appends a raw fragment after the assembled statement, e.g. LIMIT.
func (b *StatementBuilder) End(raw string) *StatementBuilder {
	b.end = append(b.end, raw)
	return b
}

// Select adds columns to the select list.
func (b *StatementBuilder) Select(cols ...string) *StatementBuilder {
	b.selects = append(b.selects, cols...)
	return b
}

// From sets the from clause.
func (b *StatementBuilder) From(from string) *StatementBuilder {
	b.from = from
	return b
}

// Join adds a raw join clause, e.g. "JOIN orders o ON o.user_id = u.id".
func (b *StatementBuilder) Join(join string) *StatementBuilder {
	b.joins = append(b.joins, join)
	return b
}

// Where adds a predicate combined with AND.
func (b *StatementBuilder) Where(expr string) *StatementBuilder {
	b.wheres = append(b.wheres, where{op: "AND", expr: expr})
	return b
}

// OrWhere adds a predicate combined with OR.
func (b *StatementBuilder) OrWhere(expr string) *StatementBuilder {
	b.wheres = append(b.wheres, where{op: "OR", expr: expr})
	return b
}

// GroupBy adds group-by columns.
func (b *StatementBuilder) GroupBy(cols ...string) *StatementBuilder {
	b.groups = append(b.groups, cols...)
	return b
}

// Having adds a having predicate.
func (b *StatementBuilder) Having(expr string) *StatementBuilder {
	b.havings = append(b.havings, expr)
	return b
}

// OrderBy adds order-by terms.
func (b *StatementBuilder) OrderBy(terms ...string) *StatementBuilder {
	b.orders = append(b.orders, terms...)
	return b
}

// InsertInto switches the builder to insert form for the given table and
// columns.
func (b *StatementBuilder) InsertInto(table string, cols ...string) *StatementBuilder {
	b.insertTable = table
	b.insertCols = append(b.insertCols, cols...)
	return b
}

// Values adds one row of value expressions to an insert.
func (b *StatementBuilder) Values(exprs ...string) *StatementBuilder {
	b.valueRows = append(b.valueRows, "("+strings.Join(exprs, ", ")+")")
	return b
}

// Clear resets every clause and drops the declared parameters.
func (b *StatementBuilder) Clear() {
	*b = StatementBuilder{pm: b.pm}
	b.pm.Clear()
}

// SQL assembles the statement text. An empty builder yields an empty
// string.
func (b *StatementBuilder) SQL() (string, error) {
	if b.insertTable != "" && (len(b.selects) > 0 || b.from != "") {
		return "", errors.New("builder holds both insert and select clauses")
	}

	var parts []string
	parts = append(parts, b.start...)

	switch {
	case b.insertTable != "":
		if len(b.valueRows) == 0 {
			return "", errors.Errorf("insert into %s has no values", b.insertTable)
		}
		stmt := "INSERT INTO " + b.insertTable
		if len(b.insertCols) > 0 {
			stmt += " (" + strings.Join(b.insertCols, ", ") + ")"
		}
		stmt += " VALUES " + strings.Join(b.valueRows, ", ")
		parts = append(parts, stmt)
	case len(b.selects) > 0 || b.from != "":
		cols := "*"
		if len(b.selects) > 0 {
			cols = strings.Join(b.selects, ", ")
		}
		stmt := "SELECT " + cols
		if b.from != "" {
			stmt += " FROM " + b.from
		}
		if body := b.predicates(); body != "" {
			stmt += " " + body
		}
		parts = append(parts, stmt)
	default:
		if body := b.predicates(); body != "" {
			return "", errors.New("builder has predicates but no select or insert")
		}
	}

	parts = append(parts, b.end...)
	return strings.Join(parts, "\n"), nil
}

// ExistsSQL wraps the builder's from, joins and predicates into an
// existence probe.
func (b *StatementBuilder) ExistsSQL() (string, error) {
	if b.from == "" {
		return "", errors.New("existence probe needs a from clause")
	}
	probe := "SELECT 1 FROM " + b.from
	if body := b.predicates(); body != "" {
		probe += " " + body
	}
	return "SELECT EXISTS (" + probe + ")", nil
}

// predicates assembles joins, where, group-by, having and order-by.
func (b *StatementBuilder) predicates() string {
	var parts []string
	parts = append(parts, b.joins...)
	if len(b.wheres) > 0 {
		clause := "WHERE " + b.wheres[0].expr
		for _, w := range b.wheres[1:] {
			clause += " " + w.op + " " + w.expr
		}
		parts = append(parts, clause)
	}
	if len(b.groups) > 0 {
		parts = append(parts, "GROUP BY "+strings.Join(b.groups, ", "))
	}
	if len(b.havings) > 0 {
		parts = append(parts, "HAVING "+strings.Join(b.havings, " AND "))
	}
	if len(b.orders) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(b.orders, ", "))
	}
	return strings.Join(parts, " ")
}
