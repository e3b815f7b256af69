// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import (
	"context"
	"database/sql"

	gc "gopkg.in/check.v1"
)

type MaterializeSuite struct{}

var _ = gc.Suite(&MaterializeSuite{})

func (s *MaterializeSuite) TestPositionalRewrite(c *gc.C) {
	q := New(Options{Driver: "mysql"})
	q.SetSQL("SELECT * FROM t WHERE a = @a AND b = @b AND a2 = @a")
	q.Params().Add("a", 1).Add("b", "two")

	cl, err := q.materialize("")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.execText, gc.Equals, "SELECT * FROM t WHERE a = ? AND b = ? AND a2 = ?")
	c.Assert(cl.args, gc.DeepEquals, []any{1, "two", 1})
	c.Assert(cl.text, gc.Equals, "SELECT * FROM t WHERE a = @a AND b = @b AND a2 = @a")
}

func (s *MaterializeSuite) TestDollarRewriteDedupes(c *gc.C) {
	q := New(Options{Driver: "postgres"})
	q.SetSQL("SELECT * FROM t WHERE a = @a AND b = @b AND a2 = @a")
	q.Params().Add("a", 1).Add("b", "two")

	cl, err := q.materialize("")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.execText, gc.Equals, "SELECT * FROM t WHERE a = $1 AND b = $2 AND a2 = $1")
	c.Assert(cl.args, gc.DeepEquals, []any{1, "two"})
}

func (s *MaterializeSuite) TestNamedDialectKeepsText(c *gc.C) {
	q := New(Options{})
	q.SetSQL("SELECT * FROM t WHERE a = @a")
	q.Params().Add("a", 7)

	cl, err := q.materialize("")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.execText, gc.Equals, "SELECT * FROM t WHERE a = @a")
	c.Assert(cl.args, gc.DeepEquals, []any{sql.Named("a", 7)})
}

func (s *MaterializeSuite) TestUnboundParameter(c *gc.C) {
	q := New(Options{Driver: "mysql"})
	q.SetSQL("SELECT * FROM t WHERE a = @missing")

	_, err := q.materialize("")
	c.Assert(err, gc.ErrorMatches, `parameter @missing is not bound`)
}

func (s *MaterializeSuite) TestFreshSetPerCall(c *gc.C) {
	// The live set is rebuilt on every call, so mutations to the manager
	// between calls are observed.
	q := New(Options{Driver: "mysql"})
	q.SetSQL("SELECT @a")
	q.Params().Add("a", 1)
	cl, err := q.materialize("")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.args, gc.DeepEquals, []any{1})

	q.SetSQL("SELECT @a")
	q.Params().Add("a", 2)
	cl, err = q.materialize("")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.args, gc.DeepEquals, []any{2})
}

func (s *MaterializeSuite) TestProcCallText(c *gc.C) {
	q := New(Options{Driver: "mysql"})
	q.Params().Add("code", 7).Out("result", "INT")

	cl, err := q.materialize("audit_user")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.execText, gc.Equals, "CALL audit_user(?, ?)")
	c.Assert(cl.args, gc.HasLen, 2)
	c.Assert(cl.outs, gc.HasLen, 1)
}

func (s *MaterializeSuite) TestProcUnsupportedOnSQLite(c *gc.C) {
	q := New(Options{})
	q.Params().Add("code", 7)

	_, err := q.ExecProc(context.Background(), "audit_user")
	c.Assert(err, gc.Equals, ErrProcUnsupported)
}

func (s *MaterializeSuite) TestOutputParamSurvivesClear(c *gc.C) {
	q := New(Options{Driver: "mysql"})
	q.SetSQL("SELECT @in, @result")
	q.Params().Add("in", 5).Out("result", "INT")

	cl, err := q.materialize("")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.outs, gc.HasLen, 1)

	// Simulate the driver writing the output value, then run the
	// epilogue that snapshots and clears.
	*cl.outs[0].dest = 42
	q.after(cl)

	c.Assert(q.Params().Len(), gc.Equals, 0)
	v, ok := q.Param("result")
	c.Assert(ok, gc.Equals, true)
	c.Assert(v, gc.Equals, any(42))
	c.Assert(ParamAs[int](q, "result"), gc.Equals, 42)
	c.Assert(ParamAs[string](q, "result"), gc.Equals, "42")
}

func (s *MaterializeSuite) TestInOutCarriesInitialValue(c *gc.C) {
	q := New(Options{Driver: "mysql"})
	q.SetSQL("SELECT @counter")
	q.Params().Set(Param{Name: "counter", Value: 3, Direction: InputOutput})

	cl, err := q.materialize("")
	c.Assert(err, gc.IsNil)
	c.Assert(cl.outs, gc.HasLen, 1)
	out, ok := cl.args[0].(sql.Out)
	c.Assert(ok, gc.Equals, true)
	c.Assert(out.In, gc.Equals, true)
	c.Assert(*cl.outs[0].dest, gc.Equals, any(3))
}
