package pkgen_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/internal/fixture"
	"github.com/syssam/strata/pkgen"
	"github.com/syssam/strata/schema"
)

func mockDriver(t *testing.T, name string) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(name, db), mock
}

func adapter(t *testing.T, name string) dialect.Adapter {
	t.Helper()
	a, err := dialect.Get(name)
	require.NoError(t, err)
	return a
}

const (
	selectNext = "SELECT NEXT_ID FROM AUTO_PK_SUPPORT WHERE TABLE_NAME = ?"
	updateNext = "UPDATE AUTO_PK_SUPPORT SET NEXT_ID = NEXT_ID + 2 WHERE TABLE_NAME = ? AND NEXT_ID = ?"
)

func TestLookupTable(t *testing.T) {
	ctx := context.Background()
	artist := fixture.Registry().MustEntity("Artist")

	t.Run("cached_blocks", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Generic)
		keys := pkgen.NewProvider(adapter(t, dialect.Generic), pkgen.WithCacheSize(2))
		mock.ExpectQuery(selectNext).WithArgs("ARTIST").
			WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}).AddRow(200))
		mock.ExpectExec(updateNext).WithArgs("ARTIST", 200).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectNext).WithArgs("ARTIST").
			WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}).AddRow(202))
		mock.ExpectExec(updateNext).WithArgs("ARTIST", 202).WillReturnResult(sqlmock.NewResult(0, 1))

		var got []any
		for range 3 {
			id, err := keys.Generate(ctx, drv, artist)
			require.NoError(t, err)
			got = append(got, id)
		}
		assert.Equal(t, []any{int64(200), int64(201), int64(202)}, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent_writer", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Generic)
		keys := pkgen.NewProvider(adapter(t, dialect.Generic), pkgen.WithCacheSize(2))
		mock.ExpectQuery(selectNext).WithArgs("ARTIST").
			WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}).AddRow(200))
		mock.ExpectExec(updateNext).WithArgs("ARTIST", 200).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectNext).WithArgs("ARTIST").
			WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}).AddRow(240))
		mock.ExpectExec(updateNext).WithArgs("ARTIST", 240).WillReturnResult(sqlmock.NewResult(0, 1))

		id, err := keys.Generate(ctx, drv, artist)
		require.NoError(t, err)
		assert.Equal(t, int64(240), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row_lock", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		e := &schema.Entity{
			Name: "Artist", Table: "ARTIST", PKGeneration: schema.PKLookup, KeyCacheSize: 5,
			Columns: []*schema.Column{{Name: "ARTIST_ID", Type: schema.BigInt, PrimaryKey: true}},
		}
		keys := pkgen.NewProvider(adapter(t, dialect.Postgres))
		mock.ExpectQuery("SELECT NEXT_ID FROM AUTO_PK_SUPPORT WHERE TABLE_NAME = $1 FOR UPDATE").WithArgs("ARTIST").
			WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}).AddRow(200))
		mock.ExpectExec("UPDATE AUTO_PK_SUPPORT SET NEXT_ID = NEXT_ID + 5 WHERE TABLE_NAME = $1 AND NEXT_ID = $2").
			WithArgs("ARTIST", 200).WillReturnResult(sqlmock.NewResult(0, 1))

		id, err := keys.Generate(ctx, drv, e)
		require.NoError(t, err)
		assert.Equal(t, int64(200), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing_row", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Generic)
		keys := pkgen.NewProvider(adapter(t, dialect.Generic))
		mock.ExpectQuery(selectNext).WithArgs("ARTIST").WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}))

		_, err := keys.Generate(ctx, drv, artist)
		require.Error(t, err)
		assert.True(t, strata.IsKeyGenerationError(err))
		assert.ErrorIs(t, err, strata.ErrKeyGeneration)
		assert.Contains(t, err.Error(), "no AUTO_PK_SUPPORT row for table ARTIST")
	})

	t.Run("driver_error", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Generic)
		keys := pkgen.NewProvider(adapter(t, dialect.Generic))
		mock.ExpectQuery(selectNext).WithArgs("ARTIST").WillReturnError(errors.New("no such table: AUTO_PK_SUPPORT"))

		_, err := keys.Generate(ctx, drv, artist)
		var kerr *strata.KeyGenerationError
		require.ErrorAs(t, err, &kerr)
		assert.Equal(t, "Artist", kerr.Entity)
	})
}

func TestLookupTableConcurrentKeys(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Generic)
	keys := pkgen.NewProvider(adapter(t, dialect.Generic), pkgen.WithCacheSize(10))
	artist := fixture.Registry().MustEntity("Artist")
	update := "UPDATE AUTO_PK_SUPPORT SET NEXT_ID = NEXT_ID + 10 WHERE TABLE_NAME = ? AND NEXT_ID = ?"
	for i := range 10 {
		next := 200 + 10*i
		mock.ExpectQuery(selectNext).WithArgs("ARTIST").
			WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}).AddRow(next))
		mock.ExpectExec(update).WithArgs("ARTIST", next).WillReturnResult(sqlmock.NewResult(0, 1))
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		g    errgroup.Group
	)
	for range 10 {
		g.Go(func() error {
			for range 10 {
				id, err := keys.Generate(context.Background(), drv, artist)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[id.(int64)] = true
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, seen, 100)
	for id := int64(200); id < 300; id++ {
		assert.True(t, seen[id], "key %d was not handed out", id)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSequence(t *testing.T) {
	ctx := context.Background()
	reg := fixture.Registry()

	t.Run("generate", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		keys := pkgen.NewProvider(adapter(t, dialect.Postgres))
		painting := reg.MustEntity("Painting")
		mock.ExpectQuery("SELECT nextval('pk_painting')").
			WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(200))
		mock.ExpectQuery("SELECT nextval('pk_painting')").
			WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(220))

		var last any
		for range 21 {
			id, err := keys.Generate(ctx, drv, painting)
			require.NoError(t, err)
			last = id
		}
		assert.Equal(t, int64(220), last)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("firebird", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Firebird)
		keys := pkgen.NewProvider(adapter(t, dialect.Firebird))
		e := &schema.Entity{
			Name: "Artist", Table: "ARTIST", SequenceName: "GEN_ARTIST",
			Columns: []*schema.Column{{Name: "ARTIST_ID", Type: schema.BigInt, PrimaryKey: true}},
		}
		mock.ExpectQuery("SELECT NEXT VALUE FOR GEN_ARTIST FROM RDB$DATABASE").
			WillReturnRows(sqlmock.NewRows([]string{"GEN_ID"}).AddRow(nil))

		_, err := keys.Generate(ctx, drv, e)
		require.True(t, strata.IsKeyGenerationError(err))
		assert.Contains(t, err.Error(), "returned NULL")
	})

	t.Run("setup_once", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		keys := pkgen.NewProvider(adapter(t, dialect.Postgres))
		mock.ExpectQuery("SELECT LOWER(sequence_name) FROM information_schema.sequences").
			WillReturnRows(sqlmock.NewRows([]string{"lower"}).AddRow("pk_artist"))
		for _, name := range []string{"pk_gallery", "pk_locking_test", "pk_painting"} {
			mock.ExpectExec("CREATE SEQUENCE " + name + " START 200 INCREMENT 20").WillReturnResult(sqlmock.NewResult(0, 0))
		}

		var g errgroup.Group
		for range 8 {
			g.Go(func() error { return keys.Setup(ctx, drv, reg.Entities()) })
		}
		require.NoError(t, g.Wait())
		require.NoError(t, keys.Setup(ctx, drv, reg.Entities()))
		require.NoError(t, mock.ExpectationsWereMet())

		mock.ExpectQuery("SELECT LOWER(sequence_name) FROM information_schema.sequences").
			WillReturnRows(sqlmock.NewRows([]string{"lower"}).AddRow("pk_artist").AddRow("pk_painting"))
		mock.ExpectExec("DROP SEQUENCE pk_artist").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DROP SEQUENCE pk_painting").WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, keys.Teardown(ctx, drv, reg.Entities()))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLookupTableSetup(t *testing.T) {
	ctx := context.Background()
	reg := fixture.Registry()
	drv, mock := mockDriver(t, dialect.Generic)
	keys := pkgen.NewProvider(adapter(t, dialect.Generic))

	mock.ExpectQuery("SELECT TABLE_NAME FROM AUTO_PK_SUPPORT").WillReturnError(errors.New("no such table"))
	mock.ExpectExec("CREATE TABLE AUTO_PK_SUPPORT (TABLE_NAME CHAR(100) NOT NULL, NEXT_ID INTEGER NOT NULL, PRIMARY KEY (TABLE_NAME))").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, table := range []string{"ARTIST", "GALLERY", "LOCKING_TEST", "PAINTING"} {
		mock.ExpectExec("INSERT INTO AUTO_PK_SUPPORT (TABLE_NAME, NEXT_ID) VALUES (?, 200)").
			WithArgs(table).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	require.NoError(t, keys.Setup(ctx, drv, reg.Entities()))
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery("SELECT TABLE_NAME FROM AUTO_PK_SUPPORT").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("ARTIST    ").AddRow("PAINTING"))
	mock.ExpectExec("DELETE FROM AUTO_PK_SUPPORT WHERE TABLE_NAME = ?").WithArgs("ARTIST").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, keys.Teardown(ctx, drv, []*schema.Entity{reg.MustEntity("Artist")}))
	require.NoError(t, mock.ExpectationsWereMet())
}

// gatedDriver holds the first lookup table probe until a second one
// arrives or the wait expires, and counts the table creations.
type gatedDriver struct {
	dialect.ExecQuerier
	mu      sync.Mutex
	probes  int
	creates int
	second  chan struct{}
}

func (d *gatedDriver) Query(ctx context.Context, query string, args, v any) error {
	if query == "SELECT TABLE_NAME FROM AUTO_PK_SUPPORT" {
		d.mu.Lock()
		d.probes++
		first := d.probes == 1
		if d.probes == 2 {
			close(d.second)
		}
		d.mu.Unlock()
		if first {
			select {
			case <-d.second:
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
	return d.ExecQuerier.Query(ctx, query, args, v)
}

func (d *gatedDriver) Exec(ctx context.Context, query string, args, v any) error {
	if strings.HasPrefix(query, "CREATE TABLE "+pkgen.LookupTableName) {
		d.mu.Lock()
		d.creates++
		d.mu.Unlock()
	}
	return d.ExecQuerier.Exec(ctx, query, args, v)
}

func TestLookupTableConcurrentSetup(t *testing.T) {
	ctx := context.Background()
	reg := fixture.Registry()
	drv, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	ex := &gatedDriver{ExecQuerier: drv, second: make(chan struct{})}
	keys := pkgen.NewProvider(adapter(t, dialect.Generic))

	artist, gallery := reg.MustEntity("Artist"), reg.MustEntity("Gallery")
	painting, locking := reg.MustEntity("Painting"), reg.MustEntity("LockingTest")
	sets := [][]*schema.Entity{
		{artist, painting},
		{painting, gallery},
		{gallery, locking},
		{locking, artist},
	}
	var g errgroup.Group
	for _, set := range sets {
		g.Go(func() error { return keys.Setup(ctx, ex, set) })
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, ex.creates)

	n, err := sql.QueryInt64(ctx, drv, "SELECT COUNT(*) FROM AUTO_PK_SUPPORT")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	require.NoError(t, keys.Setup(ctx, ex, reg.Entities()))
	assert.Equal(t, 1, ex.creates)
	id, err := keys.Generate(ctx, drv, painting)
	require.NoError(t, err)
	assert.EqualValues(t, pkgen.InitialValue, id)
}

func TestStatements(t *testing.T) {
	entities := fixture.Registry().Entities()[:2]

	keys := pkgen.NewProvider(adapter(t, dialect.Generic))
	assert.Equal(t, []string{
		"CREATE TABLE AUTO_PK_SUPPORT (TABLE_NAME CHAR(100) NOT NULL, NEXT_ID INTEGER NOT NULL, PRIMARY KEY (TABLE_NAME))",
		"DELETE FROM AUTO_PK_SUPPORT WHERE TABLE_NAME IN ('ARTIST', 'GALLERY')",
		"INSERT INTO AUTO_PK_SUPPORT (TABLE_NAME, NEXT_ID) VALUES ('ARTIST', 200)",
		"INSERT INTO AUTO_PK_SUPPORT (TABLE_NAME, NEXT_ID) VALUES ('GALLERY', 200)",
	}, keys.SetupStatements(entities))
	assert.Equal(t, []string{"DROP TABLE AUTO_PK_SUPPORT"}, keys.DropStatements(entities))

	keys = pkgen.NewProvider(adapter(t, dialect.Oracle), pkgen.WithCacheSize(50))
	assert.Equal(t, []string{
		"CREATE SEQUENCE pk_artist START WITH 200 INCREMENT BY 50",
		"CREATE SEQUENCE pk_gallery START WITH 200 INCREMENT BY 50",
	}, keys.SetupStatements(entities))
	assert.Equal(t, []string{"DROP SEQUENCE pk_artist", "DROP SEQUENCE pk_gallery"}, keys.DropStatements(entities))

	keys = pkgen.NewProvider(adapter(t, dialect.MySQL))
	assert.Empty(t, keys.SetupStatements(entities))
}

func TestIdentityAndUUID(t *testing.T) {
	ctx := context.Background()
	drv, mock := mockDriver(t, dialect.MySQL)
	artist := fixture.Registry().MustEntity("Artist")

	keys := pkgen.NewProvider(adapter(t, dialect.MySQL))
	assert.True(t, keys.PostInsert(artist))
	id, err := keys.Generate(ctx, drv, artist)
	require.NoError(t, err)
	assert.Nil(t, id)

	tokens := &schema.Entity{
		Name: "Token", Table: "TOKEN", PKGeneration: schema.PKUUID,
		Columns: []*schema.Column{{Name: "TOKEN_ID", Type: schema.Char, Length: 36, PrimaryKey: true}},
	}
	assert.False(t, keys.PostInsert(tokens))
	id, err = keys.Generate(ctx, drv, tokens)
	require.NoError(t, err)
	_, err = uuid.Parse(id.(string))
	require.NoError(t, err)

	tokens.Columns[0].Type = schema.Binary
	tokens.Columns[0].Length = 16
	id, err = keys.Generate(ctx, drv, tokens)
	require.NoError(t, err)
	assert.Len(t, id, 16)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateBinaryAndCompoundKeys(t *testing.T) {
	ctx := context.Background()
	drv, mock := mockDriver(t, dialect.Generic)
	keys := pkgen.NewProvider(adapter(t, dialect.Generic))

	blob := &schema.Entity{
		Name: "Blob", Table: "BLOB_TEST",
		Columns: []*schema.Column{{Name: "BLOB_ID", Type: schema.VarBinary, Length: 8, PrimaryKey: true}},
	}
	id, err := keys.Generate(ctx, drv, blob)
	require.NoError(t, err)
	assert.IsType(t, []byte{}, id)
	assert.Len(t, id, 8)

	join := &schema.Entity{
		Name: "ArtistExhibit", Table: "ARTIST_EXHIBIT",
		Columns: []*schema.Column{
			{Name: "ARTIST_ID", Type: schema.BigInt, PrimaryKey: true},
			{Name: "EXHIBIT_ID", Type: schema.BigInt, PrimaryKey: true},
		},
	}
	_, err = keys.Generate(ctx, drv, join)
	require.True(t, strata.IsKeyGenerationError(err))
	assert.Contains(t, err.Error(), "2 primary key columns")
	require.NoError(t, mock.ExpectationsWereMet())
}
