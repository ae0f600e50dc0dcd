package cli

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
)

// driverNames maps dialects to the database/sql driver registered for them.
var driverNames = map[string]string{
	dialect.Postgres:  "postgres",
	dialect.MySQL:     "mysql",
	dialect.SQLite:    "sqlite",
	dialect.SQLServer: "sqlserver",
}

// Database is an open connection with the driver wrapping used by the
// commands.
type Database struct {
	dialect.Driver
	conn  *sql.Driver
	stats *sql.QueryStats
}

// Stats returns a snapshot of the statement statistics, empty when
// statements are logged instead.
func (d *Database) Stats() sql.StatsSnapshot {
	if d.stats == nil {
		return sql.StatsSnapshot{}
	}
	return d.stats.Stats()
}

// Close closes the connection.
func (d *Database) Close() error { return d.conn.Close() }

// DriverName returns the database/sql driver of the configured database.
func (c *Config) DriverName() (string, error) {
	if c.Database.Driver != "" {
		return c.Database.Driver, nil
	}
	a, err := c.Adapter()
	if err != nil {
		return "", err
	}
	name, ok := driverNames[a.Name()]
	if !ok {
		return "", ConfigError("resolving driver", fmt.Errorf("no bundled driver for dialect %s, set database.driver", a.Name()))
	}
	return name, nil
}

// Open connects to the configured database. With debug logging every
// statement is logged, otherwise statements are counted and slow ones
// reported.
func (c *Config) Open(ctx context.Context, log *slog.Logger) (*Database, error) {
	if c.Database.DSN == "" {
		return nil, ConfigError("opening database", fmt.Errorf("database.dsn is not set"))
	}
	name, err := c.DriverName()
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(name, c.Database.DSN)
	if err != nil {
		return nil, DBConnectError("opening database", err)
	}
	if err := conn.DB().PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, DBConnectError("connecting to database", err)
	}
	db := &Database{conn: conn}
	if log.Enabled(ctx, slog.LevelDebug) {
		db.Driver = sql.NewDebugDriver(conn, sql.DebugWithLogger(log))
		return db, nil
	}
	db.stats = &sql.QueryStats{}
	db.Driver = sql.NewStatsDriver(conn,
		sql.WithStats(db.stats),
		sql.WithSlowThreshold(c.Database.SlowThreshold),
		sql.WithSlowQueryLog(log),
	)
	return db, nil
}
