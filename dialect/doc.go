// Package dialect provides the database dialect abstraction of strata.
//
// It defines the driver interfaces used to execute statements and the
// Adapter capability set that hides database differences (identifier
// quoting, type mapping, placeholders, primary key strategy, paging and
// qualifier rewrites) from the translators and the commit pipeline.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL, sequence keys, "$n" placeholders
//   - MySQL: MySQL/MariaDB, identity keys, backtick quoting
//   - SQLite: SQLite, rowid identity keys
//   - Firebird: generators, UNICODE_FSS character sets, IN lists split at 1500
//   - Oracle: sequences, ":n" placeholders, IN lists split at 1000
//   - SQLServer: identity keys, bracket quoting, "@pn" placeholders
//   - Generic: ANSI SQL backed by the AUTO_PK_SUPPORT lookup table
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Tx extends ExecQuerier with Commit and Rollback. Connections that can run a
// prepared statement for many rows implement Batcher.
//
// # Adapters
//
// Adapters are immutable and shared. Get returns a lazily built singleton
// per dialect name:
//
//	a, err := dialect.Get(dialect.Postgres)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a.QuoteIdentifier("app.ARTIST") // "app"."ARTIST"
//
// Custom adapters are composed from strategies with New:
//
//	a := dialect.New(dialect.Config{
//	    Name:         "h2",
//	    Capabilities: dialect.Capabilities{BatchUpdates: true, MaxInList: 500},
//	    PKStrategy:   schema.PKLookup,
//	})
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed driver, statistics and constraint errors
package dialect
