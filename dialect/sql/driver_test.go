package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
)

// TestOpenDB tests the OpenDB function with different driver names.
func TestOpenDB(t *testing.T) {
	tests := []struct {
		driver  string
		dialect string
	}{
		{"postgres", dialect.Postgres},
		{"pgx", dialect.Postgres},
		{"mysql", dialect.MySQL},
		{"sqlite", dialect.SQLite},
		{"sqlite3", dialect.SQLite},
		{"sqlserver", dialect.SQLServer},
		{"mssql", dialect.SQLServer},
		{"firebirdsql", dialect.Firebird},
		{"godror", dialect.Oracle},
		{"sqlite3-debug", dialect.SQLite},
		{"unknown", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.driver, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
		})
	}
}

// TestDriverQuery tests query operations.
func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("simple_query", func(t *testing.T) {
		mock.ExpectQuery("SELECT ARTIST_ID, ARTIST_NAME FROM ARTIST").
			WillReturnRows(sqlmock.NewRows([]string{"ARTIST_ID", "ARTIST_NAME"}).
				AddRow(1, "Picasso").
				AddRow(2, "Dali"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT ARTIST_ID, ARTIST_NAME FROM ARTIST", []any{}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery("SELECT ARTIST_NAME FROM ARTIST WHERE ARTIST_ID = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"ARTIST_NAME"}).AddRow("Picasso"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT ARTIST_NAME FROM ARTIST WHERE ARTIST_ID = $1", []any{1}, rows)
		require.NoError(t, err)
		var name string
		require.NoError(t, ScanOne(rows, &name))
		assert.Equal(t, "Picasso", name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("database error"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT", []any{}, rows)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_args", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", "x", &Rows{})
		require.ErrorContains(t, err, "expect []any")
		err = drv.Query(context.Background(), "SELECT 1", []any{}, new(int))
		require.ErrorContains(t, err, "expect *sql.Rows")
	})
}

// TestDriverExec tests execute operations.
func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("simple_exec", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO ARTIST").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := drv.Exec(context.Background(), "INSERT INTO ARTIST (ARTIST_NAME) VALUES ('x')", []any{}, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_with_result", func(t *testing.T) {
		mock.ExpectExec("UPDATE ARTIST SET ARTIST_NAME = \\$1 WHERE ARTIST_ID = \\$2").
			WithArgs("Picasso", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		var res sql.Result
		err := drv.Exec(context.Background(), "UPDATE ARTIST SET ARTIST_NAME = $1 WHERE ARTIST_ID = $2", []any{"Picasso", 1}, &res)
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_error", func(t *testing.T) {
		mock.ExpectExec("DELETE").WillReturnError(errors.New("constraint violation"))

		err := drv.Exec(context.Background(), "DELETE FROM ARTIST", []any{}, nil)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestDriverTransaction tests transaction operations.
func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("successful_commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO ARTIST").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), "INSERT INTO ARTIST DEFAULT VALUES", []any{}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO ARTIST").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.Error(t, tx.Exec(context.Background(), "INSERT INTO ARTIST DEFAULT VALUES", []any{}, nil))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("batch_in_transaction", func(t *testing.T) {
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("DELETE FROM ARTIST WHERE ARTIST_ID = \\?")
		prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		counts, err := ExecBatch(context.Background(), tx, "DELETE FROM ARTIST WHERE ARTIST_ID = ?", [][]any{{1}, {2}})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 0}, counts)
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestExecBatch(t *testing.T) {
	t.Run("prepared_once", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		drv := OpenDB(dialect.SQLite, db)

		prep := mock.ExpectPrepare("UPDATE ARTIST SET ARTIST_NAME = \\? WHERE ARTIST_ID = \\?")
		prep.ExpectExec().WithArgs("a", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs("b", 2).WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs("c", 3).WillReturnResult(sqlmock.NewResult(0, 1))

		counts, err := drv.ExecBatch(context.Background(), "UPDATE ARTIST SET ARTIST_NAME = ? WHERE ARTIST_ID = ?",
			[][]any{{"a", 1}, {"b", 2}, {"c", 3}})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 1, 1}, counts)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("single_row_not_prepared", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		drv := OpenDB(dialect.SQLite, db)

		mock.ExpectExec("DELETE FROM ARTIST").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		counts, err := drv.ExecBatch(context.Background(), "DELETE FROM ARTIST WHERE ARTIST_ID = ?", [][]any{{1}})
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, counts)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops_at_failing_row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		drv := OpenDB(dialect.SQLite, db)

		prep := mock.ExpectPrepare("DELETE FROM ARTIST")
		prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs(2).WillReturnError(errors.New("FOREIGN KEY constraint failed"))

		counts, err := drv.ExecBatch(context.Background(), "DELETE FROM ARTIST WHERE ARTIST_ID = ?", [][]any{{1}, {2}, {3}})
		require.Error(t, err)
		assert.True(t, IsForeignKeyConstraintError(err))
		assert.Equal(t, []int64{1}, counts)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fallback_without_batcher", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		ex := dialect.NopTx(plainExec{OpenDB(dialect.SQLite, db)})

		mock.ExpectExec("DELETE FROM ARTIST").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM ARTIST").WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
		counts, err := ExecBatch(context.Background(), ex, "DELETE FROM ARTIST WHERE ARTIST_ID = ?", [][]any{{1}, {2}})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 1}, counts)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// plainExec hides the Batcher implementation of a driver.
type plainExec struct{ d *Driver }

func (p plainExec) Exec(ctx context.Context, query string, args, v any) error {
	return p.d.Exec(ctx, query, args, v)
}

func (p plainExec) Query(ctx context.Context, query string, args, v any) error {
	return p.d.Query(ctx, query, args, v)
}

func TestQueryInt64(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectQuery("SELECT nextval").WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(220))
	v, err := QueryInt64(context.Background(), drv, "SELECT nextval('pk_artist')")
	require.NoError(t, err)
	assert.Equal(t, int64(220), v)

	mock.ExpectQuery("SELECT NEXT_ID").WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}))
	_, err = QueryInt64(context.Background(), drv, "SELECT NEXT_ID FROM AUTO_PK_SUPPORT WHERE TABLE_NAME = $1", "ARTIST")
	require.ErrorIs(t, err, strata.ErrNotFound)

	mock.ExpectQuery("SELECT lastval").WillReturnRows(sqlmock.NewRows([]string{"lastval"}).AddRow(nil))
	_, err = QueryInt64(context.Background(), drv, "SELECT lastval()")
	require.ErrorContains(t, err, "returned NULL")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectExec("UPDATE AUTO_PK_SUPPORT").WithArgs(20, "ARTIST").WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := ExecAffected(context.Background(), drv, "UPDATE AUTO_PK_SUPPORT SET NEXT_ID = NEXT_ID + $1 WHERE TABLE_NAME = $2", 20, "ARTIST")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestContextCancellation tests that context cancellation is respected.
func TestContextCancellation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)
	rows := &Rows{}
	err = drv.Query(ctx, "SELECT 1", []any{}, rows)
	assert.Error(t, err)
}

// BenchmarkDriver benchmarks driver operations.
func BenchmarkDriver(b *testing.B) {
	db, mock, err := sqlmock.New()
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	b.Run("Query_Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
			rows := &Rows{}
			_ = drv.Query(context.Background(), "SELECT 1", []any{}, rows)
			rows.Close()
		}
	})

	b.Run("Exec_Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
			_ = drv.Exec(context.Background(), "INSERT INTO t VALUES (1)", []any{}, nil)
		}
	})
}
