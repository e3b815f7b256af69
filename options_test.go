// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit_test

import (
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	. "gopkg.in/check.v1"

	"github.com/sqlkit/sqlkit"
)

type OptionsSuite struct{}

var _ = Suite(&OptionsSuite{})

func (s *OptionsSuite) TearDownTest(c *C) {
	for _, key := range []string{"SQLKIT_DSN", "SQLKIT_DRIVER", "SQLKIT_LOG_CATEGORY", "SQLKIT_QUERY_TIMEOUT"} {
		os.Unsetenv(key)
	}
}

func (s *OptionsSuite) TestOptionsFromEnv(c *C) {
	os.Setenv("SQLKIT_DSN", "file:app.db")
	os.Setenv("SQLKIT_DRIVER", "sqlite3")
	os.Setenv("SQLKIT_LOG_CATEGORY", "billing")
	os.Setenv("SQLKIT_QUERY_TIMEOUT", "5s")

	opts, err := sqlkit.OptionsFromEnv()
	c.Assert(err, IsNil)
	c.Assert(opts.ConnectionString, Equals, "file:app.db")
	c.Assert(opts.Driver, Equals, "sqlite3")
	c.Assert(opts.LogCategory, Equals, "billing")
	c.Assert(opts.QueryTimeout, Equals, 5*time.Second)
}

func (s *OptionsSuite) TestOptionsFromEnvDefaults(c *C) {
	opts, err := sqlkit.OptionsFromEnv()
	c.Assert(err, IsNil)
	c.Assert(opts.Driver, Equals, "sqlite3")
	c.Assert(opts.QueryTimeout, Equals, time.Duration(0))
}

func (s *OptionsSuite) TestOptionsFromEnvBadTimeout(c *C) {
	os.Setenv("SQLKIT_QUERY_TIMEOUT", "soon")
	_, err := sqlkit.OptionsFromEnv()
	c.Assert(err, ErrorMatches, "parsing SQLKIT_QUERY_TIMEOUT.*")
}

func (s *OptionsSuite) TestMySQLOptions(c *C) {
	cfg := mysql.NewConfig()
	cfg.User = "app"
	cfg.Net = "tcp"
	cfg.Addr = "db:3306"
	cfg.DBName = "users"

	opts := sqlkit.MySQLOptions(cfg)
	c.Assert(opts.Driver, Equals, "mysql")
	c.Assert(opts.ConnectionString, Equals, "app@tcp(db:3306)/users")
}
