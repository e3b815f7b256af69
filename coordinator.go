// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoConnection is reported when no connection can be obtained because
// neither a connection string nor a pre-supplied database was configured.
var ErrNoConnection = errors.New("sqlkit: no connection string or database supplied")

// runner is the driver surface shared by connections and transactions.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// coordinator owns the connection/transaction pair for the lifetime of one
// query object. At most one of each is alive at a time; while a transaction
// is active every dispatch goes through it, so the pair cannot diverge.
//
// Every execute path funnels failures through rollback, so rollback must be
// safe to call from any prior state: no transaction, failed begin, or a
// connection already closed by another path.
type coordinator struct {
	// acquire obtains a dedicated connection from the Database
	// collaborator.
	acquire func(ctx context.Context) (*sql.Conn, error)

	conn *sql.Conn
	tx   *sql.Tx
}

// Connection returns the held connection, requesting one from the database
// collaborator when none is held.
func (c *coordinator) Connection(ctx context.Context) (*sql.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	if c.acquire == nil {
		return nil, ErrNoConnection
	}
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// SetConnection adopts a caller-supplied connection, releasing any
// connection already held. A nil connection is a no-op.
func (c *coordinator) SetConnection(conn *sql.Conn) {
	if conn == nil || conn == c.conn {
		return
	}
	c.release()
	c.conn = conn
}

// SetTransaction adopts a caller-supplied transaction. A nil transaction is
// a no-op. The transaction carries its own connection, which every dispatch
// uses while it is active; a displaced transaction is rolled back and a
// displaced connection released.
func (c *coordinator) SetTransaction(tx *sql.Tx) {
	if tx == nil || tx == c.tx {
		return
	}
	if c.tx != nil {
		_ = c.Rollback()
	} else {
		c.release()
	}
	c.tx = tx
}

// Begin starts a transaction on the held connection, acquiring one first if
// needed. Begin is idempotent: an active transaction is returned unchanged
// rather than nested. A failure during the sequence releases the connection
// so no dangling open connection is left behind.
func (c *coordinator) Begin(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if c.tx != nil {
		return c.tx, nil
	}
	conn, err := c.Connection(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		c.release()
		return nil, err
	}
	c.tx = tx
	return tx, nil
}

// Commit commits the active transaction. If the commit fails the
// transaction is rolled back instead and the commit error is returned. In
// every case the connection is released and the transaction reference
// cleared; the coordinator never holds a finished transaction.
func (c *coordinator) Commit() error {
	if c.tx == nil {
		return nil
	}
	defer c.clearTx()
	if err := c.tx.Commit(); err != nil {
		_ = c.tx.Rollback()
		return err
	}
	return nil
}

// Rollback rolls back the active transaction and releases the connection.
// Calling it with no active transaction, after a failed begin, or after the
// connection was closed by another path is a no-op.
func (c *coordinator) Rollback() error {
	if c.tx == nil {
		return nil
	}
	defer c.clearTx()
	if err := c.tx.Rollback(); err != nil && !finished(err) {
		return err
	}
	return nil
}

// ensure makes a dispatch target available: an active transaction already
// carries its connection, otherwise a connection is acquired.
func (c *coordinator) ensure(ctx context.Context) error {
	if c.tx != nil {
		return nil
	}
	_, err := c.Connection(ctx)
	return err
}

// active returns the dispatch target: the transaction when one is live,
// otherwise the held connection.
func (c *coordinator) active() runner {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// Close releases the held connection. A finished transaction has already
// been cleared by commit or rollback and is deliberately left alone.
func (c *coordinator) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if finished(err) {
		return nil
	}
	return err
}

func (c *coordinator) clearTx() {
	c.tx = nil
	c.release()
}

func (c *coordinator) release() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// finished reports whether err only says the connection or transaction was
// already completed elsewhere.
func finished(err error) bool {
	return err == nil || errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone)
}
