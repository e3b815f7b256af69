// Copyright 2024 the sqlkit authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlkit

import (
	"database/sql"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/charmbracelet/log"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Options configures a [Query]. Options are fixed at construction and never
// mutated by the query object.
type Options struct {
	// ConnectionString is the driver DSN used to open the database when DB
	// is not supplied.
	ConnectionString string

	// Driver is the database/sql driver name. Defaults to "sqlite3".
	Driver string

	// DB is an optional pre-supplied pool. When set it takes precedence
	// over ConnectionString and is not closed by [Query.Close].
	DB *sql.DB

	// LogCategory prefixes every diagnostic log line.
	LogCategory string

	// Logger receives the post-execution diagnostics. When nil the
	// process-wide default logger is used.
	Logger *log.Logger

	// QueryTimeout, when non-zero, bounds each driver call with a context
	// deadline. Timeout enforcement itself is the driver's business.
	QueryTimeout time.Duration

	// BeforeExec is the guard hook run at the start of every execute
	// call. Returning false short-circuits the call before any connection
	// is touched. A nil hook always passes.
	BeforeExec func(*Query) bool
}

func (o Options) driver() string {
	if o.Driver == "" {
		return "sqlite3"
	}
	return o.Driver
}

// OptionsFromEnv builds Options from SQLKIT_* environment variables,
// loading a .env file first when one is present.
//
//	SQLKIT_DSN            connection string
//	SQLKIT_DRIVER         driver name (default sqlite3)
//	SQLKIT_LOG_CATEGORY   diagnostic log prefix
//	SQLKIT_QUERY_TIMEOUT  per-call timeout, e.g. "5s"
func OptionsFromEnv() (Options, error) {
	_ = godotenv.Load()

	var e struct {
		DSN      string `env:"SQLKIT_DSN"`
		Driver   string `env:"SQLKIT_DRIVER,default=sqlite3"`
		Category string `env:"SQLKIT_LOG_CATEGORY"`
		Timeout  string `env:"SQLKIT_QUERY_TIMEOUT"`
	}
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return Options{}, errors.Wrap(err, "reading environment")
	}

	opts := Options{
		ConnectionString: e.DSN,
		Driver:           e.Driver,
		LogCategory:      e.Category,
	}
	if e.Timeout != "" {
		d, err := time.ParseDuration(e.Timeout)
		if err != nil {
			return Options{}, errors.Wrap(err, "parsing SQLKIT_QUERY_TIMEOUT")
		}
		opts.QueryTimeout = d
	}
	return opts, nil
}

// MySQLOptions builds Options for a MySQL server from a driver
// configuration.
func MySQLOptions(cfg *mysql.Config) Options {
	return Options{
		Driver:           "mysql",
		ConnectionString: cfg.FormatDSN(),
	}
}
