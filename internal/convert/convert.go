// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package convert coerces weakly-typed driver values into caller-requested
// Go types. Conversion is deliberately permissive: a nil, empty or
// unconvertible value yields the zero value of the target type rather than
// an error, because scalar results are frequently nullable at the driver
// boundary.
package convert

import (
	"database/sql"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// To converts v to T, returning the zero value of T when v is nil, empty or
// cannot be represented as T.
func To[T any](v any) T {
	var zero T
	if v == nil {
		return zero
	}
	if s, ok := v.(string); ok && s == "" {
		return zero
	}
	if b, ok := v.([]byte); ok {
		if len(b) == 0 {
			return zero
		}
		v = string(b)
	}
	if t, ok := v.(T); ok {
		return t
	}

	target := reflect.TypeOf(zero)
	if target == nil {
		// T is an interface type; the direct assertion above is all
		// we can do.
		return zero
	}
	rv, ok := toValue(v, target)
	if !ok {
		return zero
	}
	return rv.Interface().(T)
}

// Bool interprets a scalar result as a boolean. Non-zero numbers and
// "true"-like strings are true; nil, zero and everything else is false.
func Bool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return truthy(t)
	case []byte:
		return truthy(string(t))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return false
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return false
}

// Assign stores v into dst, converting permissively. A nil or unconvertible
// value leaves dst at its zero value.
func Assign(dst reflect.Value, v any) {
	dst.Set(reflect.Zero(dst.Type()))
	if v == nil {
		return
	}
	if b, ok := v.([]byte); ok {
		if dst.Type() != reflect.TypeOf(b) {
			v = string(b)
		}
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		Assign(elem.Elem(), v)
		dst.Set(elem)
		return
	}
	if out, ok := toValue(v, dst.Type()); ok {
		dst.Set(out)
	}
}

// toValue attempts a representation of v as target, going through strings
// when the kinds do not line up directly.
func toValue(v any, target reflect.Type) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	if rv.Type().ConvertibleTo(target) && compatible(rv.Type(), target) {
		return rv.Convert(target), true
	}

	switch target.Kind() {
	case reflect.Bool:
		return reflect.ValueOf(Bool(v)).Convert(target), true
	case reflect.String:
		return fromString(asString(v), target)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fromString(asString(v), target)
	}
	if target == reflect.TypeOf(time.Time{}) {
		if s := asString(v); s != "" {
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, s); err == nil {
					return reflect.ValueOf(t), true
				}
			}
		}
	}
	return reflect.Value{}, false
}

// compatible guards reflect's Convert against surprising cross-kind
// conversions such as int -> string (which yields a rune, not digits).
func compatible(from, to reflect.Type) bool {
	if to.Kind() == reflect.String && from.Kind() != reflect.String {
		return false
	}
	if from.Kind() == reflect.String && to.Kind() != reflect.String {
		return false
	}
	return true
}

func fromString(s string, target reflect.Type) (reflect.Value, bool) {
	if s == "" {
		return reflect.Value{}, false
	}
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.String:
		out.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
				i = int64(f)
			} else {
				return reflect.Value{}, false
			}
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, false
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, false
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, false
	}
	return out, true
}

// asString renders v the way the driver would hand it back as text.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case sql.RawBytes:
		return string(t)
	case nil:
		return ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	}
	return ""
}
