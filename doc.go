/*
Package sqlkit is a data-access layer that builds SQL text incrementally,
binds named runtime parameters and executes the resulting statement while
managing connection and transaction lifecycle.

The central type is the [Query] object. It composes a clause builder, a
parameter manager, a connection/transaction coordinator and a diagnostic
logger. A Query is created once per logical unit of work and reused for a
sequence of independently-parameterized statements: after every execution
the statement text, the builder's clauses and the declared parameters are
cleared, and a snapshot of what was executed remains available through
[Query.Last].

# Basics

Parameters are written in the @name form and declared on the parameter
manager. The dialect layer rewrites them into whatever placeholder style
the driver expects.

	q := sqlkit.New(sqlkit.Options{Driver: "sqlite3", ConnectionString: ":memory:"})
	defer q.Close()

	q.Clauses().
		Select("count(*)").
		From("users").
		Where("age > @age").
		Bind("age", 18)
	n, err := sqlkit.Scalar[int](ctx, q)

Rows are mapped onto structs through their `db` tags:

	type User struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}
	users, err := sqlkit.All[User](ctx, q)

# Transactions

A transaction begun with [Query.Begin] spans subsequent execute calls until
committed or rolled back. Mutating operations ([Query.Exec],
[Query.ExecProc]) roll back the active transaction automatically when the
driver reports a failure; read operations never touch transaction state, so
a failed read cannot discard write-intent already issued in the same
transaction. [RolledBack] reports whether an error came from a mutation
whose transaction was already rolled back.

# Scalars and existence probes

Scalar conversion is permissive: a NULL or empty result yields the zero
value of the requested type instead of an error. [Query.Exists] wraps the
builder's current predicate into an existence probe and interprets the
scalar result as a boolean.

# Diagnostics

After every execution the statement, a literal-substituted debug rendering
of it, and each bound parameter with its metadata are written to the
configured logger at debug level. The dump is gated behind the log level
and costs nothing when debug logging is off.
*/
package sqlkit
