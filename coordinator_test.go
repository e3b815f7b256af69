// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit_test

import (
	"context"
	"database/sql"

	. "gopkg.in/check.v1"

	"github.com/sqlkit/sqlkit"
)

type TxSuite struct{}

var _ = Suite(&TxSuite{})

func (s *TxSuite) TestBeginIsIdempotent(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	tx1, err := q.Begin(context.Background(), nil)
	c.Assert(err, IsNil)
	tx2, err := q.Begin(context.Background(), nil)
	c.Assert(err, IsNil)
	c.Assert(tx1, Equals, tx2)
	c.Assert(q.Rollback(), IsNil)
}

func (s *TxSuite) TestRollbackWithoutTransaction(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	c.Assert(q.Rollback(), IsNil)
	// And again, after a full begin/rollback cycle closed the connection.
	_, err := q.Begin(context.Background(), nil)
	c.Assert(err, IsNil)
	c.Assert(q.Rollback(), IsNil)
	c.Assert(q.Rollback(), IsNil)
}

func (s *TxSuite) TestCommitWithoutTransaction(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	c.Assert(q.Commit(), IsNil)
}

func (s *TxSuite) TestTransactionSpansCalls(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	_, err := q.Begin(context.Background(), nil)
	c.Assert(err, IsNil)

	q.SetSQL("INSERT INTO users (id, name, age) VALUES (@id, @name, @age)")
	q.Params().Add("id", 10).Add("name", "Pedro").Add("age", 44)
	_, err = q.Exec(context.Background())
	c.Assert(err, IsNil)

	q.SetSQL("INSERT INTO users (id, name, age) VALUES (@id, @name, @age)")
	q.Params().Add("id", 11).Add("name", "Marco").Add("age", 38)
	_, err = q.Exec(context.Background())
	c.Assert(err, IsNil)

	c.Assert(q.Commit(), IsNil)

	var n int
	err = db.QueryRow("SELECT count(*) FROM users WHERE id IN (10, 11)").Scan(&n)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 2)
}

func (s *TxSuite) TestMutationFailureRollsBack(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	_, err := q.Begin(context.Background(), nil)
	c.Assert(err, IsNil)

	q.SetSQL("INSERT INTO users (id, name, age) VALUES (@id, @name, @age)")
	q.Params().Add("id", 20).Add("name", "Sophie").Add("age", 28)
	_, err = q.Exec(context.Background())
	c.Assert(err, IsNil)

	// Violate the unique name constraint. The driver failure must roll
	// back the whole transaction before the error surfaces.
	q.SetSQL("INSERT INTO users (id, name, age) VALUES (@id, @name, @age)")
	q.Params().Add("id", 21).Add("name", "Alastair").Add("age", 30)
	_, err = q.Exec(context.Background())
	c.Assert(err, NotNil)
	c.Assert(sqlkit.RolledBack(err), Equals, true)

	var n int
	err = db.QueryRow("SELECT count(*) FROM users WHERE id = 20").Scan(&n)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 0)

	// The rolled-back transaction is gone; commit is a no-op.
	c.Assert(q.Commit(), IsNil)

	// A fresh connection is acquired for the next call rather than the
	// closed one being reused.
	q.SetSQL("SELECT count(*) FROM users")
	total, err := sqlkit.Scalar[int](context.Background(), q)
	c.Assert(err, IsNil)
	c.Assert(total, Equals, 3)
}

func (s *TxSuite) TestReadFailureKeepsTransaction(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	_, err := q.Begin(context.Background(), nil)
	c.Assert(err, IsNil)

	q.SetSQL("INSERT INTO users (id, name, age) VALUES (30, 'Dave', 33)")
	_, err = q.Exec(context.Background())
	c.Assert(err, IsNil)

	// A failing read must not discard the write-intent above.
	q.SetSQL("SELECT * FROM no_such_table")
	_, err = sqlkit.Scalar[int](context.Background(), q)
	c.Assert(err, NotNil)
	c.Assert(sqlkit.RolledBack(err), Equals, false)

	q.SetSQL("SELECT count(*) FROM users WHERE id = 30")
	n, err := sqlkit.Scalar[int](context.Background(), q)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 1)

	c.Assert(q.Commit(), IsNil)

	err = db.QueryRow("SELECT count(*) FROM users WHERE id = 30").Scan(&n)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 1)
}

func (s *TxSuite) TestCallerSuppliedTransaction(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	tx, err := db.BeginTx(context.Background(), nil)
	c.Assert(err, IsNil)
	q.SetTransaction(tx)

	q.SetSQL("INSERT INTO users (id, name, age) VALUES (40, 'Gustavo', 29)")
	_, err = q.Exec(context.Background())
	c.Assert(err, IsNil)
	c.Assert(q.Commit(), IsNil)

	var n int
	err = db.QueryRow("SELECT count(*) FROM users WHERE id = 40").Scan(&n)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 1)
}

func (s *TxSuite) TestSetConnectionReleasesDisplaced(c *C) {
	db, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, IsNil)
	defer db.Close()
	db.SetMaxOpenConns(2)
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	_, err = q.Connection(context.Background())
	c.Assert(err, IsNil)
	replacement, err := db.Conn(context.Background())
	c.Assert(err, IsNil)

	// Adopting a new connection returns the displaced one to the pool.
	q.SetConnection(replacement)
	c.Assert(db.Stats().InUse, Equals, 1)
}

func (s *TxSuite) TestSetTransactionRollsBackDisplaced(c *C) {
	db, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, IsNil)
	defer db.Close()
	db.SetMaxOpenConns(2)
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	tx1, err := q.Begin(context.Background(), nil)
	c.Assert(err, IsNil)
	tx2, err := db.BeginTx(context.Background(), nil)
	c.Assert(err, IsNil)

	q.SetTransaction(tx2)
	c.Assert(tx1.Rollback(), Equals, sql.ErrTxDone)
	c.Assert(q.Commit(), IsNil)
}

func (s *TxSuite) TestSetTransactionNilIsNoOp(c *C) {
	db := createExampleDB(c)
	defer db.Close()
	q := sqlkit.New(sqlkit.Options{DB: db})
	defer q.Close()

	q.SetTransaction(nil)
	c.Assert(q.Commit(), IsNil)
}
