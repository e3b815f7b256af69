// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package scan maps result-set columns onto Go values. Struct fields are
// matched by their "db" tag; fields without one are outside sqlkit's remit.
package scan

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sqlkit/sqlkit/internal/convert"
)

// Field describes a single tagged struct field.
type Field struct {
	// Index is the field's position within the struct.
	Index int

	// Name is the name of the struct field.
	Name string

	// OmitEmpty is true when "omitempty" is a property of the field's
	// "db" tag.
	OmitEmpty bool
}

// Struct holds the reflected column mapping for one struct type.
type Struct struct {
	Type reflect.Type

	// Fields maps "db" tags to struct fields.
	Fields map[string]Field
}

// cache generates, caches and retrieves reflection information for the
// types scanned out of result sets.
type typeCache struct {
	mutex sync.RWMutex
	cache map[reflect.Type]*Struct
}

var structs = typeCache{cache: map[reflect.Type]*Struct{}}

// ForType returns the column mapping for a struct type, generating and
// caching it as required.
func ForType(t reflect.Type) (*Struct, error) {
	structs.mutex.RLock()
	s, ok := structs.cache[t]
	structs.mutex.RUnlock()
	if ok {
		return s, nil
	}

	s, err := generate(t)
	if err != nil {
		return nil, err
	}
	structs.mutex.Lock()
	structs.cache[t] = s
	structs.mutex.Unlock()
	return s, nil
}

func generate(t reflect.Type) (*Struct, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("cannot map columns onto %s", t.Kind())
	}
	s := &Struct{Type: t, Fields: map[string]Field{}}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag == "" {
			continue
		}
		name, omitEmpty, err := parseTag(tag)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q of %s", field.Name, t.Name())
		}
		s.Fields[name] = Field{Index: i, Name: field.Name, OmitEmpty: omitEmpty}
	}
	if len(s.Fields) == 0 {
		return nil, errors.Errorf("%s has no \"db\" tagged fields", t.Name())
	}
	return s, nil
}

// parseTag parses the input tag string and returns its name and whether it
// contains the "omitempty" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var omitEmpty bool
	if len(options) > 1 {
		if strings.ToLower(options[1]) != "omitempty" {
			return "", false, errors.Errorf("unexpected tag value %q", options[1])
		}
		omitEmpty = true
	}

	return options[0], omitEmpty, nil
}

// Target receives one contiguous column segment of a row. Values are
// scanned into temporaries and assigned onto the target value once the row
// scan succeeds, so NULLs and driver type drift never abort a row.
type Target struct {
	typ   reflect.Type
	val   reflect.Value
	info  *Struct
	cols  []string
	dests []any
}

// NewTarget prepares a scan target of type t for the given columns. t may
// be a struct with "db" tags or, for a single column, any scalar type.
func NewTarget(t reflect.Type, cols []string) (*Target, error) {
	tg := &Target{typ: t, cols: cols, val: reflect.New(t).Elem()}
	if t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{}) {
		info, err := ForType(t)
		if err != nil {
			return nil, err
		}
		tg.info = info
	} else if len(cols) != 1 {
		return nil, errors.Errorf("cannot scan %d columns into %s", len(cols), t)
	}
	for range cols {
		tg.dests = append(tg.dests, new(any))
	}
	return tg, nil
}

// Dests returns the destinations to pass to sql.Rows.Scan for this
// segment, in column order.
func (t *Target) Dests() []any {
	return t.dests
}

// Finish assigns the scanned temporaries onto the target and returns the
// completed value.
func (t *Target) Finish() reflect.Value {
	if t.info == nil {
		convert.Assign(t.val, *t.dests[0].(*any))
		return t.val
	}
	for i, col := range t.cols {
		f, ok := t.info.Fields[normalize(col)]
		if !ok {
			continue
		}
		convert.Assign(t.val.Field(f.Index), *t.dests[i].(*any))
	}
	return t.val
}

// Reset re-arms the target for the next row.
func (t *Target) Reset() {
	t.val = reflect.New(t.typ).Elem()
}

// Split locates the boundaries of n column segments, starting a new
// segment at each occurrence of the key column after the first. This is
// how joined result sets are cut apart for the multi-entity mapping
// functions.
func Split(cols []string, key string, n int) ([][]string, error) {
	if n < 2 {
		return [][]string{cols}, nil
	}
	var bounds []int
	for i, col := range cols {
		if i > 0 && strings.EqualFold(normalize(col), key) {
			bounds = append(bounds, i)
		}
	}
	if len(bounds) < n-1 {
		return nil, errors.Errorf("cannot split %d columns into %d segments on %q", len(cols), n, key)
	}
	bounds = bounds[:n-1]

	var segs [][]string
	prev := 0
	for _, b := range bounds {
		segs = append(segs, cols[prev:b])
		prev = b
	}
	segs = append(segs, cols[prev:])
	return segs, nil
}

func normalize(col string) string {
	return strings.ToLower(strings.TrimSpace(col))
}
