// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/sqlkit/sqlkit/internal/convert"
	"github.com/sqlkit/sqlkit/internal/dialect"
	"github.com/sqlkit/sqlkit/internal/scan"
)

// call is the per-execution context: the statement as written, the
// driver-ready rewritten text, the materialized argument list and the
// resolved parameter set it was built from.
type call struct {
	text     string
	execText string
	args     []any
	params   []Param
	outs     []outBinding
}

// outBinding ties a non-input parameter in the resolved set to the holder
// the driver writes its value into.
type outBinding struct {
	param int
	dest  *any
}

// execute runs the shared protocol every operation follows: the before
// hook, the optional stored-procedure rewrite, parameter materialization,
// connection acquisition, dispatch, the mutating-path rollback, and the
// snapshot/clear/log epilogue. The epilogue runs on every path once the
// call has materialized, connection failures included, so cycle state
// never leaks into the next statement.
//
// Mutation methods roll back an active transaction on driver failure to
// protect transactional integrity; read methods never touch transaction
// state, deferring transaction control entirely to the caller. A failed
// read must not silently discard write-intent already issued earlier in
// the same transaction.
func (q *Query) execute(ctx context.Context, proc string, mutating bool, dispatch func(context.Context, runner, string, []any) error) error {
	if q.opts.BeforeExec != nil && !q.opts.BeforeExec(q) {
		return nil
	}
	cl, err := q.materialize(proc)
	if err != nil {
		q.Clear()
		return err
	}
	defer q.after(cl)
	if q.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.QueryTimeout)
		defer cancel()
	}
	if err := q.coord.ensure(ctx); err != nil {
		return err
	}
	if err := dispatch(ctx, q.coord.active(), cl.execText, cl.args); err != nil {
		if mutating && q.coord.tx != nil {
			_ = q.coord.Rollback()
			err = &rolledBackError{cause: err}
		}
		return err
	}
	return nil
}

// rolledBackError marks a dispatch failure whose active transaction was
// rolled back before the error was returned.
type rolledBackError struct {
	cause error
}

func (e *rolledBackError) Error() string { return e.cause.Error() }
func (e *rolledBackError) Unwrap() error { return e.cause }

// RolledBack reports whether err came from a failed mutation that rolled
// its transaction back, letting callers tell "failed, already rolled back"
// from "failed, transaction still open".
func RolledBack(err error) bool {
	var rb *rolledBackError
	return errors.As(err, &rb)
}

// materialize resolves the statement text and builds the live parameter
// set for this call. The set is rebuilt from the manager on every call, so
// mutations between calls are always observed.
func (q *Query) materialize(proc string) (*call, error) {
	if proc != "" {
		text, err := q.dialect.ProcCall(proc, q.Params().Len())
		if err != nil {
			return nil, err
		}
		q.SetSQL(text)
	}
	text, err := q.SQL()
	if err != nil {
		return nil, err
	}

	cl := &call{text: text, params: q.Params().snapshot()}
	byName := make(map[string]int, len(cl.params))
	for i, p := range cl.params {
		byName[p.Name] = i
	}

	rewritten, names := q.dialect.Rewrite(text)
	cl.execText = rewritten

	if proc != "" {
		// Procedure invocation text carries one placeholder per
		// declared parameter, in declaration order.
		for i := range cl.params {
			cl.args = append(cl.args, cl.arg(i, q.dialect))
		}
	} else {
		for _, name := range names {
			i, ok := byName[name]
			if !ok {
				return nil, errors.Errorf("parameter @%s is not bound", name)
			}
			cl.args = append(cl.args, cl.arg(i, q.dialect))
		}
	}
	cl.args = append(cl.args, q.Params().rawArgs()...)
	return cl, nil
}

// arg builds the driver argument for the resolved parameter at index i,
// wiring an output holder for non-input directions.
func (c *call) arg(i int, d dialect.Dialect) any {
	p := c.params[i]
	var v any = p.Value
	if p.Direction != Input {
		dest := new(any)
		if p.Direction == InputOutput {
			*dest = p.Value
		}
		c.outs = append(c.outs, outBinding{param: i, dest: dest})
		v = sql.Out{Dest: dest, In: p.Direction == InputOutput}
	}
	if d.Style == dialect.Named {
		return sql.Named(p.Name, v)
	}
	return v
}

// after is the epilogue of every execute call: output-parameter values are
// folded into the resolved set, the set and the statement text are
// snapshotted, the cycle state is cleared so the next call re-queries the
// builder, and the diagnostic dump is written.
func (q *Query) after(cl *call) {
	for _, o := range cl.outs {
		cl.params[o.param].Value = *o.dest
	}
	q.last = &Result{sql: cl.text, params: cl.params, manager: q.Params()}
	q.Clear()
	q.trace(q.last)
}

// trace writes the post-execution diagnostic dump. The dump is gated
// behind the log level so it costs nothing when debug logging is off.
func (q *Query) trace(res *Result) {
	if q.log.GetLevel() > log.DebugLevel {
		return
	}
	q.log.Debug("statement executed",
		"query_id", q.id,
		"sql", res.SQL(),
		"debug_sql", res.DebugSQL(),
	)
	for _, p := range res.Params() {
		kv := []any{"name", p.Name, "value", p.Value}
		if p.DBType != "" {
			kv = append(kv, "db_type", p.DBType)
		}
		if p.Direction != Input {
			kv = append(kv, "direction", p.Direction.String())
		}
		if p.Size != 0 {
			kv = append(kv, "size", p.Size)
		}
		if p.Precision != 0 {
			kv = append(kv, "precision", p.Precision)
		}
		if p.Scale != 0 {
			kv = append(kv, "scale", p.Scale)
		}
		q.log.Debug("parameter", kv...)
	}
}

// Exec runs the current statement as a command that returns no rows.
// On driver failure an active transaction is rolled back before the error
// is returned.
func (q *Query) Exec(ctx context.Context) (sql.Result, error) {
	var res sql.Result
	err := q.execute(ctx, "", true, func(ctx context.Context, r runner, text string, args []any) error {
		var err error
		res, err = r.ExecContext(ctx, text, args...)
		return err
	})
	return res, err
}

// ExecProc invokes a stored procedure as a command that returns no rows.
// Like [Query.Exec], driver failure rolls back an active transaction.
func (q *Query) ExecProc(ctx context.Context, proc string) (sql.Result, error) {
	var res sql.Result
	err := q.execute(ctx, proc, true, func(ctx context.Context, r runner, text string, args []any) error {
		var err error
		res, err = r.ExecContext(ctx, text, args...)
		return err
	})
	return res, err
}

// ScalarValue runs the current statement and returns the first column of
// the first row, or nil when the result set is empty. It is a read
// operation: driver failure leaves an active transaction untouched.
func (q *Query) ScalarValue(ctx context.Context) (any, error) {
	var out any
	err := q.execute(ctx, "", false, func(ctx context.Context, r runner, text string, args []any) error {
		rows, err := r.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return rows.Err()
		}
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		dests := make([]any, len(cols))
		dests[0] = &out
		for i := 1; i < len(dests); i++ {
			dests[i] = new(any)
		}
		if err := rows.Scan(dests...); err != nil {
			return err
		}
		return rows.Err()
	})
	return out, err
}

// Scalar runs the current statement and permissively converts the first
// column of the first row to T. A null or empty result yields the zero
// value of T rather than an error.
func Scalar[T any](ctx context.Context, q *Query) (T, error) {
	v, err := q.ScalarValue(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return convert.To[T](v), nil
}

// Exists wraps the builder's current predicate into an existence probe and
// interprets the scalar result as a boolean. When the statement text was
// set directly, the text itself is wrapped instead.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	if sb, ok := q.Builder().(*StatementBuilder); ok && !q.sqlSet {
		probe, err := sb.ExistsSQL()
		if err != nil {
			return false, err
		}
		q.SetSQL(probe)
	} else {
		text, err := q.SQL()
		if err != nil {
			return false, err
		}
		q.SetSQL("SELECT EXISTS (" + text + ")")
	}
	v, err := q.ScalarValue(ctx)
	if err != nil {
		return false, err
	}
	return convert.Bool(v), nil
}

// One runs the current statement and maps the first row onto T, matching
// columns to "db" tags. An empty result set yields the zero value of T
// rather than an error.
func One[T any](ctx context.Context, q *Query) (T, error) {
	var out T
	err := q.execute(ctx, "", false, func(ctx context.Context, r runner, text string, args []any) error {
		rows, err := r.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return rows.Err()
		}
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		tg, err := scan.NewTarget(reflect.TypeFor[T](), cols)
		if err != nil {
			return err
		}
		if err := rows.Scan(tg.Dests()...); err != nil {
			return err
		}
		out = tg.Finish().Interface().(T)
		return rows.Err()
	})
	return out, err
}

// All runs the current statement and maps every row onto T.
func All[T any](ctx context.Context, q *Query) ([]T, error) {
	return allRows[T](ctx, q, "")
}

// AllProc invokes a stored procedure and maps every returned row onto T.
// Procedure queries are read operations and do not roll back on failure.
func AllProc[T any](ctx context.Context, q *Query, proc string) ([]T, error) {
	return allRows[T](ctx, q, proc)
}

func allRows[T any](ctx context.Context, q *Query, proc string) ([]T, error) {
	var out []T
	err := q.execute(ctx, proc, false, func(ctx context.Context, r runner, text string, args []any) error {
		rows, err := r.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var tg *scan.Target
		for rows.Next() {
			if tg == nil {
				cols, err := rows.Columns()
				if err != nil {
					return err
				}
				if tg, err = scan.NewTarget(reflect.TypeFor[T](), cols); err != nil {
					return err
				}
			} else {
				tg.Reset()
			}
			if err := rows.Scan(tg.Dests()...); err != nil {
				return err
			}
			out = append(out, tg.Finish().Interface().(T))
		}
		return rows.Err()
	})
	return out, err
}

// QueryOption adjusts how a multi-entity mapping call interprets the
// result set.
type QueryOption func(*queryOptions)

type queryOptions struct {
	splitOn string
}

// SplitOn sets the column at which the joined result set is cut into the
// next entity's columns. The default is "id".
func SplitOn(col string) QueryOption {
	return func(o *queryOptions) {
		o.splitOn = col
	}
}

// All2 maps a joined result set onto two entity types per row and combines
// them with join. The row's columns are split at the second occurrence of
// the split column.
func All2[T1, T2, T any](ctx context.Context, q *Query, join func(T1, T2) T, opts ...QueryOption) ([]T, error) {
	types := []reflect.Type{reflect.TypeFor[T1](), reflect.TypeFor[T2]()}
	return allSegments(ctx, q, types, opts, func(vals []reflect.Value) T {
		return join(vals[0].Interface().(T1), vals[1].Interface().(T2))
	})
}

// All3 maps a joined result set onto three entity types per row.
func All3[T1, T2, T3, T any](ctx context.Context, q *Query, join func(T1, T2, T3) T, opts ...QueryOption) ([]T, error) {
	types := []reflect.Type{reflect.TypeFor[T1](), reflect.TypeFor[T2](), reflect.TypeFor[T3]()}
	return allSegments(ctx, q, types, opts, func(vals []reflect.Value) T {
		return join(vals[0].Interface().(T1), vals[1].Interface().(T2), vals[2].Interface().(T3))
	})
}

// All4 maps a joined result set onto four entity types per row.
func All4[T1, T2, T3, T4, T any](ctx context.Context, q *Query, join func(T1, T2, T3, T4) T, opts ...QueryOption) ([]T, error) {
	types := []reflect.Type{reflect.TypeFor[T1](), reflect.TypeFor[T2](), reflect.TypeFor[T3](), reflect.TypeFor[T4]()}
	return allSegments(ctx, q, types, opts, func(vals []reflect.Value) T {
		return join(vals[0].Interface().(T1), vals[1].Interface().(T2), vals[2].Interface().(T3), vals[3].Interface().(T4))
	})
}

func allSegments[T any](ctx context.Context, q *Query, types []reflect.Type, opts []QueryOption, combine func([]reflect.Value) T) ([]T, error) {
	o := queryOptions{splitOn: "id"}
	for _, fn := range opts {
		fn(&o)
	}
	var out []T
	err := q.execute(ctx, "", false, func(ctx context.Context, r runner, text string, args []any) error {
		rows, err := r.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var targets []*scan.Target
		var dests []any
		for rows.Next() {
			if targets == nil {
				cols, err := rows.Columns()
				if err != nil {
					return err
				}
				segs, err := scan.Split(cols, o.splitOn, len(types))
				if err != nil {
					return err
				}
				for i, t := range types {
					tg, err := scan.NewTarget(t, segs[i])
					if err != nil {
						return err
					}
					targets = append(targets, tg)
					dests = append(dests, tg.Dests()...)
				}
			} else {
				for _, tg := range targets {
					tg.Reset()
				}
			}
			if err := rows.Scan(dests...); err != nil {
				return err
			}
			vals := make([]reflect.Value, len(targets))
			for i, tg := range targets {
				vals[i] = tg.Finish()
			}
			out = append(out, combine(vals))
		}
		return rows.Err()
	})
	return out, err
}
