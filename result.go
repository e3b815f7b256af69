// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import (
	"sync"

	"github.com/sqlkit/sqlkit/internal/convert"
	"github.com/sqlkit/sqlkit/internal/literals"
)

// Result is the immutable snapshot taken after each execution: the SQL
// text, the materialized parameter set (including any values the database
// wrote into output parameters) and a back-reference to the parameter
// manager. Once the live state is cleared, the snapshot is the only place
// the executed statement can still be inspected.
type Result struct {
	sql     string
	params  []Param
	manager *Manager

	debugOnce sync.Once
	debug     string
}

// SQL returns the executed statement text as written, before any
// placeholder rewriting.
func (r *Result) SQL() string {
	return r.sql
}

// Params returns a copy of the materialized parameter set.
func (r *Result) Params() []Param {
	out := make([]Param, len(r.params))
	copy(out, r.params)
	return out
}

// Param returns the materialized value of a named parameter. For output
// parameters this is the value the database produced.
func (r *Result) Param(name string) (any, bool) {
	for _, p := range r.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// ResultParam reads a named parameter from the snapshot, permissively
// converted to T.
func ResultParam[T any](r *Result, name string) T {
	v, _ := r.Param(name)
	return convert.To[T](v)
}

// Manager returns the parameter manager the snapshot was materialized
// from.
func (r *Result) Manager() *Manager {
	return r.manager
}

// DebugSQL returns the statement with literal values substituted for the
// parameter placeholders. It is computed on first use and is for
// diagnostics only.
func (r *Result) DebugSQL() string {
	r.debugOnce.Do(func() {
		bindings := make([]literals.Binding, 0, len(r.params))
		for _, p := range r.params {
			bindings = append(bindings, literals.Binding{Name: p.Name, Value: p.Value})
		}
		r.debug = literals.Render(r.sql, bindings)
	})
	return r.debug
}
