// Package sql bridges strata to database/sql.
//
// It provides the dialect.Driver implementation over *sql.DB, statement
// batching, constraint error classification and the observability wrappers
// used around a driver.
//
// # Drivers
//
// Open wraps sql.Open. The driver name selects the dialect:
//
//	drv, err := sql.Open("sqlite", "file:strata.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//	adapter, _ := dialect.Get(drv.Dialect())
//
// # Batches
//
// Conn implements dialect.Batcher: a statement is prepared once and executed
// for every argument row. ExecBatch falls back to one Exec per row for
// connections that do not batch.
//
//	counts, err := sql.ExecBatch(ctx, tx, "DELETE FROM ARTIST WHERE ARTIST_ID = ?", [][]any{{1}, {2}})
//
// # Constraint Errors
//
// Classify recognizes constraint violations from lib/pq, go-sql-driver/mysql,
// go-mssqldb and modernc.org/sqlite errors, and falls back to message
// matching for Firebird and Oracle:
//
//	if sql.IsUniqueConstraintError(err) {
//	    // duplicate key
//	}
//
// # Observability
//
// NewStatsDriver counts statements and slow statements; NewCollector exports
// the counters to prometheus. NewDebugDriver logs every statement through
// slog, and QueryLogger logs rendered statements with their bindings:
//
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	prometheus.MustRegister(sql.NewCollector(stats.QueryStats(), "app"))
package sql
