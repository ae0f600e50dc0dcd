package privacy_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/commit"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/internal/fixture"
	"github.com/syssam/strata/privacy"
	"github.com/syssam/strata/translator"
)

func change(entity string, typ commit.ChangeType, after map[string]any) commit.ObjectChange {
	return commit.ObjectChange{
		ID:     graph.NewSingleID(entity, "ID", int64(1)),
		Type:   typ,
		Before: map[string]any{},
		After:  after,
	}
}

func TestDecisionErrors(t *testing.T) {
	tests := []struct {
		name     string
		decision error
		want     error
		message  string
	}{
		{name: "allow", decision: privacy.Allowf("admin %s", "42"), want: privacy.Allow, message: "admin 42: strata/privacy: allow rule"},
		{name: "deny", decision: privacy.Denyf("not %d", 7), want: privacy.Deny, message: "not 7: strata/privacy: deny rule"},
		{name: "skip", decision: privacy.Skipf("abstain"), want: privacy.Skip, message: "abstain: strata/privacy: skip rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.decision, tt.want)
			assert.Equal(t, tt.message, tt.decision.Error())
		})
	}
}

func TestPolicyEvalChange(t *testing.T) {
	ctx := context.Background()
	insert := change("Artist", commit.Insert, map[string]any{"artistName": "Monet"})
	tests := []struct {
		name   string
		policy privacy.Policy
		want   error
	}{
		{name: "empty", policy: nil},
		{name: "all skip", policy: privacy.Policy{privacy.ContextRule(func(context.Context) error { return nil })}},
		{name: "allow stops", policy: privacy.Policy{privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()}},
		{name: "deny", policy: privacy.Policy{privacy.AlwaysDenyRule(), privacy.AlwaysAllowRule()}, want: privacy.Deny},
		{name: "other error", policy: privacy.Policy{privacy.ContextRule(func(context.Context) error { return assert.AnError })}, want: assert.AnError},
		{name: "other type skipped", policy: privacy.Policy{privacy.DenyChangeTypeRule(commit.Delete)}},
		{name: "type denied", policy: privacy.Policy{privacy.DenyChangeTypeRule(commit.Insert)}, want: privacy.Deny},
		{name: "type allowed", policy: privacy.Policy{privacy.AllowChangeTypeRule(commit.Insert), privacy.AlwaysDenyRule()}},
		{name: "other entity skipped", policy: privacy.Policy{privacy.OnEntity(privacy.AlwaysDenyRule(), "Gallery")}},
		{name: "entity denied", policy: privacy.Policy{privacy.OnEntity(privacy.AlwaysDenyRule(), "Gallery", "Artist")}, want: privacy.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.EvalChange(ctx, insert)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPolicyEvalCommit(t *testing.T) {
	ctx := context.Background()
	changes := []commit.ObjectChange{
		change("Artist", commit.Update, map[string]any{"artistName": "b"}),
		change("Painting", commit.Delete, map[string]any{}),
	}
	p := privacy.Policy{privacy.DenyChangeTypeRule(commit.Delete)}

	err := p.EvalCommit(ctx, changes)
	require.Error(t, err)
	var denied *privacy.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "Painting", denied.Change.ID.Entity)
	assert.True(t, privacy.IsDenied(err))
	assert.Contains(t, err.Error(), "DELETE of Painting<ID=1> denied")

	t.Run("decision context", func(t *testing.T) {
		assert.NoError(t, p.EvalCommit(privacy.DecisionContext(ctx, privacy.Allow), changes))
		err := privacy.Policy{}.EvalCommit(privacy.DecisionContext(ctx, privacy.Denyf("maintenance")), changes)
		assert.ErrorIs(t, err, privacy.Deny)
		assert.Equal(t, ctx, privacy.DecisionContext(ctx, privacy.Skip))
		assert.Equal(t, ctx, privacy.DecisionContext(ctx, nil))
	})

	t.Run("policies", func(t *testing.T) {
		ps := privacy.Policies{privacy.Policy{privacy.AlwaysAllowRule()}, p}
		assert.True(t, privacy.IsDenied(ps.EvalCommit(ctx, changes)), "every policy must pass")
		assert.NoError(t, ps.EvalCommit(ctx, changes[:1]))
		assert.NoError(t, privacy.Policies{p}.EvalCommit(privacy.DecisionContext(ctx, privacy.Allow), changes))
	})

	assert.False(t, privacy.IsDenied(fmt.Errorf("wrapped: %w", assert.AnError)))
}

func TestCommitWithPolicy(t *testing.T) {
	newCommitter := func(t *testing.T, p commit.Policy) (*commit.Committer, *sql.Driver, sqlmock.Sqlmock) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		a, err := dialect.Get(dialect.Generic)
		require.NoError(t, err)
		return commit.New(translator.New(a, fixture.Registry()), nil, commit.WithPolicy(p)), sql.OpenDB(dialect.Generic, db), mock
	}
	policy := privacy.Policy{
		privacy.DenyIfNoViewer(),
		privacy.HasRole("admin"),
		privacy.DenyChangeTypeRule(commit.Delete),
		privacy.AllowChangeTypeRule(commit.Update),
		privacy.AlwaysDenyRule(),
	}
	update := graph.List{graph.PropertyChange{ID: graph.NewSingleID("Artist", "ARTIST_ID", int64(1)), Property: "artistName", Old: "x", New: "y"}}
	insert := graph.List{graph.NodeCreate{ID: graph.NewTempID("Artist")}}

	t.Run("no viewer", func(t *testing.T) {
		c, drv, mock := newCommitter(t, policy)
		_, err := c.Commit(context.Background(), drv, update)
		require.Error(t, err)
		assert.True(t, privacy.IsDenied(err))
		require.NoError(t, mock.ExpectationsWereMet(), "no statement runs")
	})

	t.Run("denied before key generation", func(t *testing.T) {
		c, drv, mock := newCommitter(t, policy)
		ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "7"})
		_, err := c.Commit(ctx, drv, insert)
		require.Error(t, err)
		assert.ErrorIs(t, err, privacy.Deny)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("allowed", func(t *testing.T) {
		c, drv, mock := newCommitter(t, policy)
		mock.ExpectExec("UPDATE ARTIST SET ARTIST_NAME = ? WHERE ARTIST_ID = ?").
			WithArgs("y", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "7"})
		s, err := c.Commit(ctx, drv, update)
		require.NoError(t, err)
		assert.EqualValues(t, 1, s.Updated)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
