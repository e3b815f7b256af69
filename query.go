// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import (
	"context"
	"database/sql"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/sqlkit/sqlkit/internal/convert"
	"github.com/sqlkit/sqlkit/internal/dialect"
)

// ErrProcUnsupported is reported when a stored procedure call is attempted
// on a driver whose engine has no stored procedures.
var ErrProcUnsupported = dialect.ErrProcUnsupported

// Query is a reusable handle for building, binding and executing SQL
// statements. It composes the clause builder, the parameter manager, the
// connection/transaction coordinator and the diagnostic logger.
//
// A Query is not safe for concurrent use: the cached SQL text, the live
// parameter set and the connection/transaction pair are mutated in place by
// every execute call. Use one Query per logical unit of work.
//
// After every execute call the SQL text, parameters and builder clauses are
// cleared, so one Query can run a sequence of independently-parameterized
// statements. A transaction begun with [Query.Begin] spans those calls
// until committed or rolled back.
type Query struct {
	opts Options
	id   uuid.UUID
	log  *log.Logger

	dialect dialect.Dialect
	builder Builder
	db      *sql.DB
	ownsDB  bool
	coord   coordinator

	sqlText string
	sqlSet  bool
	last    *Result
}

// New returns a Query configured with the given options.
func New(opts Options) *Query {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.LogCategory != "" {
		logger = logger.WithPrefix(opts.LogCategory)
	}
	q := &Query{
		opts:    opts,
		id:      uuid.New(),
		log:     logger,
		dialect: dialect.ForDriver(opts.driver()),
	}
	q.coord.acquire = q.acquireConn
	return q
}

// Options returns the options the query was constructed with.
func (q *Query) Options() Options {
	return q.opts
}

// ID returns the query object's correlation id, included in every
// diagnostic dump.
func (q *Query) ID() uuid.UUID {
	return q.id
}

// Builder returns the query's SQL builder, constructing the default clause
// builder on first use.
func (q *Query) Builder() Builder {
	if q.builder == nil {
		q.builder = NewBuilder()
	}
	return q.builder
}

// Clauses returns the default clause builder, constructing it on first
// use. It returns nil when the builder was replaced with a custom
// implementation through [Query.SetBuilder].
func (q *Query) Clauses() *StatementBuilder {
	if sb, ok := q.Builder().(*StatementBuilder); ok {
		return sb
	}
	return nil
}

// SetBuilder replaces the SQL builder. A nil builder is a no-op.
func (q *Query) SetBuilder(b Builder) {
	if b == nil {
		return
	}
	q.builder = b
}

// SQL returns the statement text for the current cycle. The text is
// computed from the builder once and cached until [Query.Clear] runs, so
// repeated calls within one execute cycle always observe the same string.
func (q *Query) SQL() (string, error) {
	if q.sqlSet {
		return q.sqlText, nil
	}
	text, err := q.Builder().SQL()
	if err != nil {
		return "", err
	}
	q.sqlText = text
	q.sqlSet = true
	return text, nil
}

// SetSQL overrides the statement text for the current cycle, bypassing the
// builder.
func (q *Query) SetSQL(text string) {
	q.sqlText = text
	q.sqlSet = true
}

// Params returns the parameter manager for the next statement.
func (q *Query) Params() *Manager {
	return q.Builder().Params()
}

// Bind declares an input parameter and returns the query for chaining.
func (q *Query) Bind(name string, value any) *Query {
	q.Params().Add(name, value)
	return q
}

// ClearParams drops every declared parameter.
func (q *Query) ClearParams() {
	q.Params().Clear()
}

// Param returns the value bound to a named parameter. The live parameter
// set is consulted first; once it has been cleared by an execute cycle the
// last statement snapshot answers instead, which is how output-parameter
// values remain readable after the call completes.
func (q *Query) Param(name string) (any, bool) {
	if p, ok := q.Params().Get(name); ok {
		return p.Value, true
	}
	if q.last != nil {
		return q.last.Param(name)
	}
	return nil, false
}

// ParamAs reads a named parameter permissively converted to T. A missing
// or unconvertible value yields the zero value of T.
func ParamAs[T any](q *Query, name string) T {
	v, _ := q.Param(name)
	return convert.To[T](v)
}

// Last returns the snapshot of the most recently executed statement, or
// nil before the first execution.
func (q *Query) Last() *Result {
	return q.last
}

// Clear resets the cycle state: the cached SQL text, the builder's clauses
// and the declared parameters. The connection/transaction pair is not
// touched.
func (q *Query) Clear() {
	q.sqlText = ""
	q.sqlSet = false
	q.Builder().Clear()
}

// Begin starts a transaction, or returns the active one unchanged. The
// transaction spans subsequent execute calls until committed or rolled
// back.
func (q *Query) Begin(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return q.coord.Begin(ctx, opts)
}

// Commit commits the active transaction. With no active transaction it is
// a no-op.
func (q *Query) Commit() error {
	return q.coord.Commit()
}

// Rollback rolls back the active transaction. It is safe to call in any
// state.
func (q *Query) Rollback() error {
	return q.coord.Rollback()
}

// Connection returns the held connection, acquiring one when none is held.
func (q *Query) Connection(ctx context.Context) (*sql.Conn, error) {
	return q.coord.Connection(ctx)
}

// SetConnection adopts a caller-supplied connection.
func (q *Query) SetConnection(conn *sql.Conn) {
	q.coord.SetConnection(conn)
}

// SetTransaction adopts a caller-supplied transaction.
func (q *Query) SetTransaction(tx *sql.Tx) {
	q.coord.SetTransaction(tx)
}

// Close releases the held connection and, when the pool was opened by this
// query, the pool itself. A transaction finished by commit or rollback has
// already been disposed and is left alone.
func (q *Query) Close() error {
	err := q.coord.Close()
	if q.ownsDB && q.db != nil {
		if cerr := q.db.Close(); err == nil {
			err = cerr
		}
		q.db = nil
	}
	return err
}

// database lazily opens the pool from the options. An empty connection
// string with no pre-supplied pool is a configuration fault, surfaced
// before any connection attempt.
func (q *Query) database() (*sql.DB, error) {
	if q.db != nil {
		return q.db, nil
	}
	if q.opts.DB != nil {
		q.db = q.opts.DB
		return q.db, nil
	}
	if q.opts.ConnectionString == "" {
		return nil, ErrNoConnection
	}
	db, err := sql.Open(q.opts.driver(), q.opts.ConnectionString)
	if err != nil {
		return nil, err
	}
	q.db = db
	q.ownsDB = true
	return db, nil
}

func (q *Query) acquireConn(ctx context.Context) (*sql.Conn, error) {
	db, err := q.database()
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx)
}
