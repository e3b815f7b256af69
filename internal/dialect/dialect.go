// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package dialect maps database/sql driver names to the placeholder and
// stored-procedure conventions of the underlying engine.
package dialect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProcUnsupported is reported when a stored procedure invocation is
// requested on an engine that has no stored procedures.
var ErrProcUnsupported = errors.New("stored procedures are not supported by this driver")

// Style is the placeholder style understood by a driver.
type Style int

const (
	// Named drivers accept @name placeholders directly (sqlite, dqlite).
	Named Style = iota
	// Question drivers take ? placeholders in argument order (mysql).
	Question
	// Dollar drivers take $1..$n placeholders, one per distinct name
	// (postgres).
	Dollar
)

// Dialect describes how parameter references are rendered for one driver
// family.
type Dialect struct {
	Name  string
	Style Style
}

var (
	SQLite   = Dialect{Name: "sqlite", Style: Named}
	Postgres = Dialect{Name: "postgres", Style: Dollar}
	MySQL    = Dialect{Name: "mysql", Style: Question}
)

// ForDriver returns the dialect for a database/sql driver name. Unknown
// drivers fall back to the named style, which is also what sqlite and dqlite
// use.
func ForDriver(driver string) Dialect {
	switch strings.ToLower(driver) {
	case "postgres", "pgx", "pq", "cockroach":
		return Postgres
	case "mysql", "mariadb":
		return MySQL
	default:
		return SQLite
	}
}

// Rewrite replaces @name parameter references in query with the dialect's
// placeholders and returns the referenced names in placeholder order. For
// named dialects the query is returned unchanged and the names are in order
// of first appearance. References inside string literals, quoted identifiers
// and comments are left alone.
func (d Dialect) Rewrite(query string) (string, []string) {
	var out strings.Builder
	out.Grow(len(query))

	var names []string
	seen := map[string]int{}

	i := 0
	for i < len(query) {
		c := query[i]
		switch c {
		case '\'', '"', '`':
			j := SkipQuoted(query, i)
			out.WriteString(query[i:j])
			i = j
			continue
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				j := SkipLineComment(query, i)
				out.WriteString(query[i:j])
				i = j
				continue
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				j := SkipBlockComment(query, i)
				out.WriteString(query[i:j])
				i = j
				continue
			}
		case '@':
			name, j := ScanName(query, i+1)
			if name == "" {
				break
			}
			switch d.Style {
			case Named:
				out.WriteString(query[i:j])
				if _, ok := seen[name]; !ok {
					seen[name] = len(names)
					names = append(names, name)
				}
			case Question:
				out.WriteByte('?')
				names = append(names, name)
			case Dollar:
				n, ok := seen[name]
				if !ok {
					n = len(names)
					seen[name] = n
					names = append(names, name)
				}
				fmt.Fprintf(&out, "$%d", n+1)
			}
			i = j
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String(), names
}

// ProcCall renders the invocation text for a stored procedure with argc
// arguments.
func (d Dialect) ProcCall(proc string, argc int) (string, error) {
	var args []string
	switch d.Style {
	case Question:
		for i := 0; i < argc; i++ {
			args = append(args, "?")
		}
	case Dollar:
		for i := 0; i < argc; i++ {
			args = append(args, fmt.Sprintf("$%d", i+1))
		}
	default:
		return "", ErrProcUnsupported
	}
	return fmt.Sprintf("CALL %s(%s)", proc, strings.Join(args, ", ")), nil
}

// SkipQuoted returns the index just past the quoted region starting at i.
// Doubled quote characters escape themselves, as in SQL.
func SkipQuoted(s string, i int) int {
	q := s[i]
	j := i + 1
	for j < len(s) {
		if s[j] == q {
			if j+1 < len(s) && s[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return j
}

func SkipLineComment(s string, i int) int {
	for i < len(s) && s[i] != '\n' {
		i++
	}
	return i
}

func SkipBlockComment(s string, i int) int {
	j := i + 2
	for j+1 < len(s) {
		if s[j] == '*' && s[j+1] == '/' {
			return j + 2
		}
		j++
	}
	return len(s)
}

// ScanName reads a parameter name starting at i and returns it with the
// index just past it. An empty name means the @ was not a parameter
// reference.
func ScanName(s string, i int) (string, int) {
	j := i
	for j < len(s) && isNameByte(s[j]) {
		j++
	}
	return s[i:j], j
}

func isNameByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
