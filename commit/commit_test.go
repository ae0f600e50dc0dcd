package commit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/commit"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/internal/fixture"
	"github.com/syssam/strata/pkgen"
	"github.com/syssam/strata/translator"
)

const (
	selectNext = "SELECT NEXT_ID FROM AUTO_PK_SUPPORT WHERE TABLE_NAME = ?"
	updateNext = "UPDATE AUTO_PK_SUPPORT SET NEXT_ID = NEXT_ID + 10 WHERE TABLE_NAME = ? AND NEXT_ID = ?"
)

func newCommitter(t *testing.T, name string, opts ...commit.Option) (*commit.Committer, *sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a, err := dialect.Get(name)
	require.NoError(t, err)
	tr := translator.New(a, fixture.Registry())
	c := commit.New(tr, pkgen.NewProvider(a, pkgen.WithCacheSize(10)), opts...)
	return c, sql.OpenDB(name, db), mock
}

func expectKey(mock sqlmock.Sqlmock, table string, next int64) {
	mock.ExpectQuery(selectNext).WithArgs(table).
		WillReturnRows(sqlmock.NewRows([]string{"NEXT_ID"}).AddRow(next))
	mock.ExpectExec(updateNext).WithArgs(table, next).WillReturnResult(sqlmock.NewResult(0, 1))
}

func artist(id int64) graph.ObjectID   { return graph.NewSingleID("Artist", "ARTIST_ID", id) }
func painting(id int64) graph.ObjectID { return graph.NewSingleID("Painting", "PAINTING_ID", id) }

func TestCommitInsert(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	tr := graph.NewTracker()
	a, p := graph.NewTempID("Artist"), graph.NewTempID("Painting")
	tr.NodeCreated(a)
	tr.NodePropertyChanged(a, "artistName", nil, "Monet")
	tr.NodeCreated(p)
	tr.NodePropertyChanged(p, "paintingTitle", nil, "Water Lilies")
	tr.ArcCreated(p, a, "toArtist")
	tr.ArcCreated(a, p, "paintings")

	expectKey(mock, "ARTIST", 200)
	expectKey(mock, "PAINTING", 500)
	mock.ExpectExec("INSERT INTO ARTIST (ARTIST_ID, ARTIST_NAME) VALUES (?, ?)").
		WithArgs(200, "Monet").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO PAINTING (ARTIST_ID, PAINTING_ID, PAINTING_TITLE) VALUES (?, ?, ?)").
		WithArgs(200, 500, "Water Lilies").WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := c.Commit(context.Background(), drv, tr.Diffs())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2, s.Statements)
	assert.EqualValues(t, 2, s.Inserted)
	require.Len(t, s.Replaced, 2)
	assert.Equal(t, "Artist<ARTIST_ID=200>", s.ID(a).Key())
	assert.Equal(t, "Painting<PAINTING_ID=500>", s.ID(p).Key())
	for _, d := range s.Diffs {
		assert.False(t, d.Node().IsTemp(), "diff %v still references a temporary id", d)
	}
	require.Len(t, s.Changes, 2)
	assert.Equal(t, commit.Insert, s.Changes[0].Type)
	assert.Equal(t, "Artist<ARTIST_ID=200>", s.Changes[0].PostCommitID.Key())
	assert.Equal(t, map[string]any{"artistName": "Monet"}, s.Changes[0].After)

	g := graph.New()
	tr.Diffs().Apply(g)
	s.Apply(g)
	v, ok := g.Property(s.ID(a), "artistName")
	require.True(t, ok)
	assert.Equal(t, "Monet", v)
}

func TestCommitBatch(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	var l graph.List
	for i, name := range []string{"a", "b", "c"} {
		l = append(l, graph.PropertyChange{ID: artist(int64(i + 1)), Property: "artistName", Old: "x", New: name})
	}
	prep := mock.ExpectPrepare("UPDATE ARTIST SET ARTIST_NAME = ? WHERE ARTIST_ID = ?")
	prep.ExpectExec().WithArgs("a", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("b", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("c", 3).WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := c.Commit(context.Background(), drv, l)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 3, s.Statements)
	assert.EqualValues(t, 2, s.Updated)
}

func TestCommitOrder(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	gallery := graph.NewSingleID("Gallery", "GALLERY_ID", int64(3))
	created := artist(7)
	l := graph.List{
		graph.NodeDelete{ID: artist(1)},
		graph.NodeDelete{ID: painting(10)},
		graph.PropertyChange{ID: gallery, Property: "galleryName", Old: "South", New: "North"},
		graph.NodeCreate{ID: created},
		graph.PropertyChange{ID: created, Property: "artistName", New: "New"},
	}
	mock.ExpectExec("INSERT INTO ARTIST (ARTIST_ID, ARTIST_NAME) VALUES (?, ?)").
		WithArgs(7, "New").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE GALLERY SET GALLERY_NAME = ? WHERE GALLERY_ID = ?").
		WithArgs("North", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM PAINTING WHERE PAINTING_ID = ?").
		WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM ARTIST WHERE ARTIST_ID = ?").
		WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := c.Commit(context.Background(), drv, l)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, s.Replaced)
	assert.EqualValues(t, 1, s.Inserted)
	assert.EqualValues(t, 1, s.Updated)
	assert.EqualValues(t, 2, s.Deleted)
}

func TestCommitRelationships(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	l := graph.List{
		// Moved to another artist, recorded on both sides in either order.
		graph.ArcCreate{ID: artist(2), Target: painting(10), Arc: "paintings"},
		graph.ArcDelete{ID: artist(1), Target: painting(10), Arc: "paintings"},
		graph.ArcDelete{ID: painting(10), Target: artist(1), Arc: "toArtist"},
		graph.ArcCreate{ID: painting(10), Target: artist(2), Arc: "toArtist"},
		// Removed from its gallery.
		graph.ArcDelete{ID: painting(11), Target: graph.NewSingleID("Gallery", "GALLERY_ID", int64(3)), Arc: "toGallery"},
	}
	mock.ExpectExec("UPDATE PAINTING SET ARTIST_ID = ? WHERE PAINTING_ID = ?").
		WithArgs(2, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE PAINTING SET GALLERY_ID = ? WHERE PAINTING_ID = ?").
		WithArgs(nil, 11).WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := c.Commit(context.Background(), drv, l)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.EqualValues(t, 2, s.Updated)
}

func TestCommitOptimisticLock(t *testing.T) {
	id := graph.NewSingleID("LockingTest", "LOCKING_TEST_ID", int64(1))
	l := graph.List{graph.PropertyChange{ID: id, Property: "description", Old: "old", New: "new"}}

	t.Run("null lock value", func(t *testing.T) {
		snapshots := graph.New()
		snapshots.Register(id, map[string]any{"name": nil, "description": "old"})
		c, drv, mock := newCommitter(t, dialect.Generic, commit.WithSnapshots(snapshots))
		mock.ExpectExec("UPDATE LOCKING_TEST SET DESCRIPTION = ? WHERE LOCKING_TEST_ID = ? AND NAME IS NULL").
			WithArgs("new", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		_, err := c.Commit(context.Background(), drv, l)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale", func(t *testing.T) {
		snapshots := graph.New()
		snapshots.Register(id, map[string]any{"name": "lock"})
		c, drv, mock := newCommitter(t, dialect.Generic, commit.WithSnapshots(snapshots))
		mock.ExpectExec("UPDATE LOCKING_TEST SET DESCRIPTION = ? WHERE LOCKING_TEST_ID = ? AND NAME = ?").
			WithArgs("new", 1, "lock").WillReturnResult(sqlmock.NewResult(0, 0))
		_, err := c.Commit(context.Background(), drv, l)
		require.ErrorIs(t, err, strata.ErrOptimisticLock)
		var lerr *strata.OptimisticLockError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, "LockingTest", lerr.Entity)
		assert.Equal(t, "LockingTest<LOCKING_TEST_ID=1>", lerr.ID)
		assert.Zero(t, lerr.Affected)
		assert.Equal(t, "UPDATE LOCKING_TEST SET DESCRIPTION = ? WHERE LOCKING_TEST_ID = ? AND NAME = ?", lerr.SQL)
	})

	t.Run("changed lock column", func(t *testing.T) {
		c, drv, mock := newCommitter(t, dialect.Generic)
		changed := graph.List{graph.PropertyChange{ID: id, Property: "name", Old: "v1", New: "v2"}}
		mock.ExpectExec("DELETE FROM LOCKING_TEST WHERE LOCKING_TEST_ID = ? AND NAME = ?").
			WithArgs(1, "v1").WillReturnResult(sqlmock.NewResult(0, 1))
		_, err := c.Commit(context.Background(), drv, append(changed, graph.NodeDelete{ID: id}))
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCommitKeyChange(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	tr := graph.NewTracker()
	tr.NodePropertyChanged(artist(1), "artistName", "Monet", "C. Monet")
	tr.NodeIDChanged(artist(1), artist(10))

	mock.ExpectExec("UPDATE ARTIST SET ARTIST_ID = ?, ARTIST_NAME = ? WHERE ARTIST_ID = ?").
		WithArgs(10, "C. Monet", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := c.Commit(context.Background(), drv, tr.Diffs())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.EqualValues(t, 1, s.Updated)
	require.Len(t, s.Changes, 1)
	assert.Equal(t, commit.Update, s.Changes[0].Type)
	assert.Equal(t, "Artist<ARTIST_ID=10>", s.Changes[0].PostCommitID.Key())
}

func TestCommitKeyFailure(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	a := graph.NewTempID("Artist")
	l := graph.List{
		graph.PropertyChange{ID: artist(1), Property: "artistName", Old: "x", New: "y"},
		graph.NodeCreate{ID: a},
		graph.PropertyChange{ID: a, Property: "artistName", New: "Monet"},
	}
	mock.ExpectQuery(selectNext).WithArgs("ARTIST").WillReturnError(errors.New("no such table: AUTO_PK_SUPPORT"))

	_, err := c.Commit(context.Background(), drv, l)
	require.Error(t, err)
	assert.True(t, strata.IsKeyGenerationError(err))
	require.NoError(t, mock.ExpectationsWereMet(), "no statement runs after a key failure")
}

func TestCommitCreatedThenDeleted(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	tr := graph.NewTracker()
	p := graph.NewTempID("Painting")
	tr.NodeCreated(p)
	tr.NodePropertyChanged(p, "paintingTitle", nil, "draft")
	tr.ArcCreated(p, artist(1), "toArtist")
	tr.NodeRemoved(p)

	s, err := c.Commit(context.Background(), drv, tr.Diffs())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, s.Statements)
	require.Len(t, s.Changes, 1)
	assert.Equal(t, commit.Delete, s.Changes[0].Type)
	assert.True(t, s.Changes[0].Created)
	assert.True(t, s.Changes[0].Deleted)
}

func TestCommitExecutionError(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.Generic)
	gallery := graph.NewSingleID("Gallery", "GALLERY_ID", int64(3))
	l := graph.List{graph.PropertyChange{ID: gallery, Property: "galleryName", Old: "South", New: "North"}}
	mock.ExpectExec("UPDATE GALLERY SET GALLERY_NAME = ? WHERE GALLERY_ID = ?").
		WithArgs("North", 3).WillReturnError(errors.New("UNIQUE constraint failed: GALLERY.GALLERY_NAME"))

	_, err := c.Commit(context.Background(), drv, l)
	var eerr *strata.ExecutionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "UPDATE GALLERY SET GALLERY_NAME = ? WHERE GALLERY_ID = ?", eerr.SQL)
	assert.Equal(t, []any{"North", int64(3)}, eerr.Args)
	assert.True(t, strata.IsConstraintError(err))
	assert.True(t, sql.IsUniqueConstraintError(err))
}

func TestCommitUnknownProperty(t *testing.T) {
	c, drv, _ := newCommitter(t, dialect.Generic)
	_, err := c.Commit(context.Background(), drv, graph.List{
		graph.PropertyChange{ID: artist(1), Property: "nickname", New: "x"},
	})
	assert.True(t, strata.IsTranslationError(err))
}

func TestCommitIdentity(t *testing.T) {
	c, drv, mock := newCommitter(t, dialect.MySQL)
	a, p := graph.NewTempID("Artist"), graph.NewTempID("Painting")
	l := graph.List{
		graph.NodeCreate{ID: p},
		graph.PropertyChange{ID: p, Property: "paintingTitle", New: "Olympia"},
		graph.ArcCreate{ID: p, Target: a, Arc: "toArtist"},
		graph.NodeCreate{ID: a},
		graph.PropertyChange{ID: a, Property: "artistName", New: "Manet"},
	}
	mock.ExpectExec("INSERT INTO ARTIST (ARTIST_NAME) VALUES (?)").
		WithArgs("Manet").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO PAINTING (ARTIST_ID, PAINTING_TITLE) VALUES (?, ?)").
		WithArgs(42, "Olympia").WillReturnResult(sqlmock.NewResult(43, 1))

	s, err := c.Commit(context.Background(), drv, l)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "Artist<ARTIST_ID=42>", s.ID(a).Key())
	assert.Equal(t, "Painting<PAINTING_ID=43>", s.ID(p).Key())
	require.Len(t, s.Replaced, 2)
	assert.Equal(t, p, s.Replaced[0].ID, "replacements follow the order of first appearance")
}

func TestCommitTx(t *testing.T) {
	ctx := context.Background()
	update := graph.List{graph.PropertyChange{ID: artist(1), Property: "artistName", Old: "x", New: "y"}}

	t.Run("commit", func(t *testing.T) {
		var got [][]commit.ObjectChange
		c, drv, mock := newCommitter(t, dialect.Generic, commit.WithListener(commit.ListenerFunc(
			func(_ context.Context, changes []commit.ObjectChange) { got = append(got, changes) },
		)))
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE ARTIST SET ARTIST_NAME = ? WHERE ARTIST_ID = ?").
			WithArgs("y", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := c.CommitTx(ctx, drv, update)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
		require.Len(t, got, 1)
		require.Len(t, got[0], 1)
		assert.Equal(t, commit.Update, got[0][0].Type)
		assert.Equal(t, map[string]any{"artistName": "x"}, got[0][0].Before)
	})

	t.Run("rollback", func(t *testing.T) {
		called := false
		c, drv, mock := newCommitter(t, dialect.Generic, commit.WithListener(commit.ListenerFunc(
			func(context.Context, []commit.ObjectChange) { called = true },
		)))
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE ARTIST SET ARTIST_NAME = ? WHERE ARTIST_ID = ?").
			WithArgs("y", 1).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := c.CommitTx(ctx, drv, update)
		require.Error(t, err)
		assert.True(t, strata.IsExecutionError(err))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.False(t, called)
	})
}
