package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
)

// driverDialects maps database/sql driver names to dialect names.
var driverDialects = map[string]string{
	"postgres":    dialect.Postgres,
	"pgx":         dialect.Postgres,
	"mysql":       dialect.MySQL,
	"sqlite":      dialect.SQLite,
	"sqlite3":     dialect.SQLite,
	"sqlserver":   dialect.SQLServer,
	"mssql":       dialect.SQLServer,
	"firebirdsql": dialect.Firebird,
	"godror":      dialect.Oracle,
	"oracle":      dialect.Oracle,
}

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{dialect: dialect, Conn: c}
}

// Open wraps the database/sql.Open method and returns a dialect.Driver.
func Open(driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: open %s: %w", driverName, err)
	}
	return OpenDB(driverName, db), nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(driverName string, db *sql.DB) *Driver {
	return NewDriver(driverName, Conn{db, driverName})
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the dialect name of the driver. Driver names, also
// wrapped ones such as "sqlite3-debug", resolve to their dialect.
func (d Driver) Dialect() string {
	name := strings.ToLower(d.dialect)
	if dn, ok := driverDialects[name]; ok {
		return dn
	}
	for prefix, dn := range driverDialects {
		if strings.HasPrefix(name, prefix) {
			return dn
		}
	}
	return d.dialect
}

// Tx starts and returns a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{
		Conn: Conn{tx, d.dialect},
		Tx:   tx,
	}, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx implements dialect.Tx interface.
type Tx struct {
	Conn
	driver.Tx
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// preparer is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec implements the dialect.Exec method. v is nil or a *sql.Result.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	switch v := v.(type) {
	case nil:
		if _, err := c.ExecContext(ctx, query, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := c.ExecContext(ctx, query, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method. v must be a *Rows.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	rows, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	return nil
}

// ExecBatch implements dialect.Batcher. The statement is prepared once and
// executed for every row; the rows affected by each execution are returned
// in order. Execution stops at the first failing row.
func (c Conn) ExecBatch(ctx context.Context, query string, rows [][]any) ([]int64, error) {
	exec := c.ExecContext
	if p, ok := c.ExecQuerier.(preparer); ok && len(rows) > 1 {
		stmt, err := p.PrepareContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: prepare: %w", err)
		}
		defer stmt.Close()
		exec = func(ctx context.Context, _ string, args ...any) (sql.Result, error) {
			return stmt.ExecContext(ctx, args...)
		}
	}
	counts := make([]int64, 0, len(rows))
	for i, args := range rows {
		res, err := exec(ctx, query, args...)
		if err != nil {
			return counts, fmt.Errorf("dialect/sql: exec batch row %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return counts, fmt.Errorf("dialect/sql: rows affected: %w", err)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

var (
	_ dialect.Driver  = (*Driver)(nil)
	_ dialect.Tx      = (*Tx)(nil)
	_ dialect.Batcher = Conn{}
)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// ScanOne scans the first row of rows into dest and closes rows. It returns
// strata.ErrNotFound when the result is empty.
func ScanOne(rows ColumnScanner, dest ...any) (err error) {
	defer func() { err = errors.Join(err, rows.Close()) }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("dialect/sql: scan: %w", err)
		}
		return strata.ErrNotFound
	}
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("dialect/sql: scan: %w", err)
	}
	return rows.Err()
}

// QueryInt64 runs query on ex and returns the integer in the first column of
// the first row.
func QueryInt64(ctx context.Context, ex dialect.ExecQuerier, query string, args ...any) (int64, error) {
	if args == nil {
		args = []any{}
	}
	var rows Rows
	if err := ex.Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	var v NullInt64
	if err := ScanOne(rows, &v); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, fmt.Errorf("dialect/sql: %q returned NULL", query)
	}
	return v.Int64, nil
}

// ExecAffected runs query on ex and returns the number of affected rows.
func ExecAffected(ctx context.Context, ex dialect.ExecQuerier, query string, args ...any) (int64, error) {
	if args == nil {
		args = []any{}
	}
	var res Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dialect/sql: rows affected: %w", err)
	}
	return n, nil
}
