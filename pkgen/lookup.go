package pkgen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
)

// LookupTableName is the table holding the next free key per table.
const LookupTableName = "AUTO_PK_SUPPORT"

// maxAttempts bounds the reservations lost to concurrent writers before a
// lookup table reservation fails.
const maxAttempts = 10

// LookupTable generates keys from a counter row per table in the
// AUTO_PK_SUPPORT table. A reservation reads NEXT_ID, locking the row where
// the adapter supports it, and advances it by the block size only if no
// other writer advanced it in between.
type LookupTable struct {
	adapter   dialect.Adapter
	cacheSize int
	log       *sql.QueryLogger
	ranges    ranges
}

var _ Generator = (*LookupTable)(nil)

// NewLookupTable returns a lookup table generator.
func NewLookupTable(a dialect.Adapter, cacheSize int, log *sql.QueryLogger) *LookupTable {
	return &LookupTable{adapter: a, cacheSize: max(cacheSize, 1), log: log}
}

// Generate implements Generator.
func (l *LookupTable) Generate(ctx context.Context, ex dialect.ExecQuerier, e *schema.Entity) (any, error) {
	size := cacheSize(e, l.cacheSize)
	return l.ranges.next(e.Name, size, func() (int64, error) {
		return l.reserve(ctx, ex, e.Table, size)
	})
}

// reserve advances the counter of table by size and returns the first
// reserved value.
func (l *LookupTable) reserve(ctx context.Context, ex dialect.ExecQuerier, table string, size int) (int64, error) {
	sel := l.selectNext()
	upd := l.updateNext(size)
	for range maxAttempts {
		l.log.LogStatement(ctx, sel, nil)
		next, err := sql.QueryInt64(ctx, ex, sel, table)
		switch {
		case errors.Is(err, strata.ErrNotFound):
			return 0, fmt.Errorf("pkgen: no %s row for table %s", LookupTableName, table)
		case err != nil:
			return 0, fmt.Errorf("pkgen: read %s: %w", LookupTableName, err)
		}
		l.log.LogStatement(ctx, upd, nil)
		n, err := sql.ExecAffected(ctx, ex, upd, table, next)
		if err != nil {
			return 0, fmt.Errorf("pkgen: update %s: %w", LookupTableName, err)
		}
		l.log.LogUpdateCount(ctx, n)
		if n == 1 {
			return next, nil
		}
	}
	return 0, fmt.Errorf("pkgen: %s row for table %s changed concurrently %d times", LookupTableName, table, maxAttempts)
}

func (l *LookupTable) selectNext() string {
	query := "SELECT NEXT_ID FROM " + LookupTableName + " WHERE TABLE_NAME = " + l.adapter.Placeholder(1)
	if lock := l.adapter.RowLock(); lock != "" {
		query += " " + lock
	}
	return query
}

func (l *LookupTable) updateNext(size int) string {
	return "UPDATE " + LookupTableName + " SET NEXT_ID = NEXT_ID + " + strconv.Itoa(size) +
		" WHERE TABLE_NAME = " + l.adapter.Placeholder(1) + " AND NEXT_ID = " + l.adapter.Placeholder(2)
}

// PostInsert implements Generator.
func (*LookupTable) PostInsert() bool { return false }

// SetupStatements returns the script creating the lookup table and
// resetting the counters of entities.
func (l *LookupTable) SetupStatements(entities []*schema.Entity) []string {
	stmts := []string{l.createTable()}
	tables := make([]string, len(entities))
	for i, e := range entities {
		tables[i] = literal(e.Table)
	}
	stmts = append(stmts, "DELETE FROM "+LookupTableName+" WHERE TABLE_NAME IN ("+strings.Join(tables, ", ")+")")
	for _, t := range tables {
		stmts = append(stmts, "INSERT INTO "+LookupTableName+" (TABLE_NAME, NEXT_ID) VALUES ("+t+", "+strconv.Itoa(InitialValue)+")")
	}
	return stmts
}

// DropStatements implements Generator.
func (*LookupTable) DropStatements([]*schema.Entity) []string {
	return []string{"DROP TABLE " + LookupTableName}
}

// Setup creates the lookup table when it is missing and inserts the
// counters of entities that have none. Existing counters are kept. The
// table probe fails on a missing table, so Setup must not run inside a
// transaction on databases that abort transactions on errors.
func (l *LookupTable) Setup(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error {
	existing, ok := l.counters(ctx, ex)
	if !ok {
		existing = make(map[string]bool)
		query := l.createTable()
		l.log.LogStatement(ctx, query, nil)
		if err := ex.Exec(ctx, query, []any{}, nil); err != nil {
			return fmt.Errorf("pkgen: create %s: %w", LookupTableName, err)
		}
	}
	insert := "INSERT INTO " + LookupTableName + " (TABLE_NAME, NEXT_ID) VALUES (" +
		l.adapter.Placeholder(1) + ", " + strconv.Itoa(InitialValue) + ")"
	for _, e := range entities {
		if existing[e.Table] {
			continue
		}
		l.log.LogStatement(ctx, insert, nil)
		if err := ex.Exec(ctx, insert, []any{e.Table}, nil); err != nil {
			return fmt.Errorf("pkgen: insert %s row for %s: %w", LookupTableName, e.Table, err)
		}
		existing[e.Table] = true
	}
	return nil
}

// Teardown removes the counters of entities and drops the lookup table
// once no counter is left.
func (l *LookupTable) Teardown(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error {
	defer l.ranges.reset(entities)
	existing, ok := l.counters(ctx, ex)
	if !ok {
		return nil
	}
	for _, e := range entities {
		if !existing[e.Table] {
			continue
		}
		query := "DELETE FROM " + LookupTableName + " WHERE TABLE_NAME = " + l.adapter.Placeholder(1)
		l.log.LogStatement(ctx, query, nil)
		if err := ex.Exec(ctx, query, []any{e.Table}, nil); err != nil {
			return fmt.Errorf("pkgen: delete %s row for %s: %w", LookupTableName, e.Table, err)
		}
		delete(existing, e.Table)
	}
	if len(existing) > 0 {
		return nil
	}
	query := "DROP TABLE " + LookupTableName
	l.log.LogStatement(ctx, query, nil)
	if err := ex.Exec(ctx, query, []any{}, nil); err != nil {
		return fmt.Errorf("pkgen: drop %s: %w", LookupTableName, err)
	}
	return nil
}

// counters returns the tables with a counter row. ok is false when the
// lookup table does not exist.
func (l *LookupTable) counters(ctx context.Context, ex dialect.ExecQuerier) (tables map[string]bool, ok bool) {
	query := "SELECT TABLE_NAME FROM " + LookupTableName
	l.log.LogStatement(ctx, query, nil)
	var rows sql.Rows
	if err := ex.Query(ctx, query, []any{}, &rows); err != nil {
		return nil, false
	}
	defer rows.Close()
	tables = make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, false
		}
		tables[strings.TrimSpace(name)] = true
	}
	return tables, rows.Err() == nil
}

func (l *LookupTable) createTable() string {
	name, _ := l.adapter.ColumnType(&schema.Column{Name: "TABLE_NAME", Type: schema.Char, Length: 100})
	next, _ := l.adapter.ColumnType(&schema.Column{Name: "NEXT_ID", Type: schema.Integer})
	return "CREATE TABLE " + LookupTableName + " (TABLE_NAME " + name + " NOT NULL, NEXT_ID " + next +
		" NOT NULL, PRIMARY KEY (TABLE_NAME))"
}

// literal renders s as a SQL string literal.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
