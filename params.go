// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import "fmt"

// Direction describes how a parameter travels between the caller and the
// database.
type Direction int

const (
	// Input parameters are supplied by the caller.
	Input Direction = iota
	// Output parameters are produced by the database during execution.
	Output
	// InputOutput parameters are supplied by the caller and may be
	// rewritten by the database.
	InputOutput
	// ReturnValue carries a stored procedure's return value.
	ReturnValue
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputOutput:
		return "input-output"
	case ReturnValue:
		return "return"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Param is a single named parameter with its binding metadata. Name is the
// key within one Manager. A Direction other than Input marks a parameter
// whose value is produced by the database; after execution it must be read
// from the statement snapshot, not from the Manager.
type Param struct {
	Name      string
	Value     any
	DBType    string
	Direction Direction
	Size      int
	Precision int
	Scale     int
}

// Manager stores the named parameters declared for the next statement.
// Parameters keep their declaration order and are upserted by name. The
// Manager itself is never sent to the driver; every execute call
// materializes a fresh set from its current contents, so mutations between
// calls are always observed.
type Manager struct {
	params []Param
	index  map[string]int
	raw    []any
}

// NewManager returns an empty parameter manager.
func NewManager() *Manager {
	return &Manager{index: map[string]int{}}
}

// Add declares an input parameter, replacing any previous declaration with
// the same name.
func (m *Manager) Add(name string, value any) *Manager {
	return m.Set(Param{Name: name, Value: value})
}

// Out declares an output parameter of the given database type.
func (m *Manager) Out(name, dbType string) *Manager {
	return m.Set(Param{Name: name, DBType: dbType, Direction: Output})
}

// Set declares a parameter with full metadata, replacing any previous
// declaration with the same name.
func (m *Manager) Set(p Param) *Manager {
	if i, ok := m.index[p.Name]; ok {
		m.params[i] = p
		return m
	}
	m.index[p.Name] = len(m.params)
	m.params = append(m.params, p)
	return m
}

// Raw appends dynamic positional arguments that are passed to the driver
// after the named parameters. They are for statements whose text already
// carries driver placeholders.
func (m *Manager) Raw(args ...any) *Manager {
	m.raw = append(m.raw, args...)
	return m
}

// Get returns the declared parameter with the given name.
func (m *Manager) Get(name string) (Param, bool) {
	if i, ok := m.index[name]; ok {
		return m.params[i], true
	}
	return Param{}, false
}

// Len reports the number of declared named parameters.
func (m *Manager) Len() int {
	return len(m.params)
}

// Clear drops every declared parameter and raw argument.
func (m *Manager) Clear() {
	m.params = nil
	m.raw = nil
	m.index = map[string]int{}
}

// snapshot copies the declared parameters. The copy is the per-call live
// set; the Manager's own entries are never handed to the driver.
func (m *Manager) snapshot() []Param {
	out := make([]Param, len(m.params))
	copy(out, m.params)
	return out
}

func (m *Manager) rawArgs() []any {
	out := make([]any, len(m.raw))
	copy(out, m.raw)
	return out
}
