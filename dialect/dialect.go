package dialect

import (
	"context"
)

// Dialect names for external usage.
const (
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
	Firebird  = "firebird"
	Oracle    = "oracle"
	SQLServer = "sqlserver"
	Generic   = "generic"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for strata clients.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Batcher is implemented by connections that can execute one statement for
// many argument rows, preparing it once.
type Batcher interface {
	// ExecBatch executes query once per row and returns the number of rows
	// affected by each execution.
	ExecBatch(ctx context.Context, query string, rows [][]any) ([]int64, error)
}

// NopTx returns a Tx with nop Commit and Rollback methods wrapping
// the given ExecQuerier.
func NopTx(ex ExecQuerier) Tx {
	return nopTx{ex}
}

type nopTx struct {
	ExecQuerier
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }
