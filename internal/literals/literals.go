// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package literals renders a human-readable version of a SQL statement with
// literal values substituted for parameter placeholders. The output is for
// diagnostics only and must never be sent to a database.
package literals

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/sqlkit/sqlkit/internal/dialect"
)

// Binding pairs a parameter name with the value bound to it.
type Binding struct {
	Name  string
	Value any
}

// Render substitutes the bound values for @name references in query.
// References inside string literals, quoted identifiers and comments are
// left untouched, as are names with no binding.
func Render(query string, bindings []Binding) string {
	if len(bindings) == 0 {
		return query
	}
	byName := make(map[string]any, len(bindings))
	for _, b := range bindings {
		byName[b.Name] = b.Value
	}

	var out strings.Builder
	out.Grow(len(query))

	i := 0
	for i < len(query) {
		c := query[i]
		switch c {
		case '\'', '"', '`':
			j := dialect.SkipQuoted(query, i)
			out.WriteString(query[i:j])
			i = j
			continue
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				j := dialect.SkipLineComment(query, i)
				out.WriteString(query[i:j])
				i = j
				continue
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				j := dialect.SkipBlockComment(query, i)
				out.WriteString(query[i:j])
				i = j
				continue
			}
		case '@':
			name, j := dialect.ScanName(query, i+1)
			if name != "" {
				if v, ok := byName[name]; ok {
					out.WriteString(Literal(v))
					i = j
					continue
				}
			}
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

// Literal renders a single value as a SQL literal.
func Literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return pq.QuoteLiteral(t)
	case []byte:
		return pq.QuoteLiteral(string(t))
	case time.Time:
		return pq.QuoteLiteral(t.Format(time.RFC3339Nano))
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return pq.QuoteLiteral(t.String())
	}
	return pq.QuoteLiteral(fmt.Sprintf("%v", v))
}
