package commit

import (
	"context"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/pkgen"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/translator"
)

// Snapshotter returns the committed property values of an object, keyed by
// property name. *graph.Graph implements it.
type Snapshotter interface {
	Snapshot(id graph.ObjectID) map[string]any
}

// Listener is notified of the changes of every successful commit, e.g. to
// write an audit or commit log.
type Listener interface {
	OnCommit(ctx context.Context, changes []ObjectChange)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, changes []ObjectChange)

// OnCommit implements Listener.
func (f ListenerFunc) OnCommit(ctx context.Context, changes []ObjectChange) { f(ctx, changes) }

// Policy decides whether the changes of a commit may be written. A non-nil
// error aborts the commit before any key is generated.
type Policy interface {
	EvalCommit(ctx context.Context, changes []ObjectChange) error
}

// Committer drives diff lists through key generation, batch translation
// and execution. It holds no per-commit state and is safe for concurrent
// use by independent units of work.
type Committer struct {
	tr        *translator.Translator
	keys      *pkgen.Provider
	log       *sql.QueryLogger
	snapshots Snapshotter
	listeners []Listener
	policy    Policy
	order     []*schema.Entity
}

// Option configures a Committer.
type Option func(*Committer)

// WithQueryLogger logs every executed statement with its bindings.
func WithQueryLogger(l *sql.QueryLogger) Option {
	return func(c *Committer) {
		c.log = l
	}
}

// WithSnapshots sets the source of the committed values of unchanged
// optimistic lock columns.
func WithSnapshots(s Snapshotter) Option {
	return func(c *Committer) {
		c.snapshots = s
	}
}

// WithListener adds a commit listener.
func WithListener(l Listener) Option {
	return func(c *Committer) {
		c.listeners = append(c.listeners, l)
	}
}

// WithPolicy evaluates p before every commit.
func WithPolicy(p Policy) Option {
	return func(c *Committer) {
		c.policy = p
	}
}

// New returns a committer translating with tr and generating keys with
// keys. A nil provider uses the defaults of the translator adapter.
func New(tr *translator.Translator, keys *pkgen.Provider, opts ...Option) *Committer {
	c := &Committer{tr: tr, keys: keys}
	for _, opt := range opts {
		opt(c)
	}
	if c.keys == nil {
		c.keys = pkgen.NewProvider(tr.Adapter(), pkgen.WithQueryLogger(c.log))
	}
	c.order = Order(tr.Registry())
	return c
}

// Summary is the result of a successful commit.
type Summary struct {
	// Changes is the commit-log view of the committed list.
	Changes []ObjectChange
	// Replaced lists the temporary ids replaced by permanent ones, in
	// insert order.
	Replaced []graph.NodeIDChange
	// Diffs is the compressed list with every replaced id rewritten.
	Diffs graph.List
	// Statements is the number of executed statement rows.
	Statements int
	// Inserted, Updated and Deleted count the affected rows.
	Inserted, Updated, Deleted int64
}

// ID returns the permanent id of an object, or id itself when it was not
// replaced.
func (s *Summary) ID(id graph.ObjectID) graph.ObjectID {
	for _, r := range s.Replaced {
		if r.ID.Equal(id) {
			return r.NewID
		}
	}
	return id
}

// Apply replays the id replacements on h, e.g. the Graph or Tracker of the
// unit of work.
func (s *Summary) Apply(h graph.Handler) {
	for _, r := range s.Replaced {
		r.Apply(h)
	}
}

// Commit executes the diff list on ex and notifies the listeners. Every key
// is generated before the first statement runs, a key failure aborts the
// commit with no statement executed. Statement failures abort the commit as
// well, rolling back is up to the owner of ex.
func (c *Committer) Commit(ctx context.Context, ex dialect.ExecQuerier, l graph.List) (*Summary, error) {
	s, err := c.commit(ctx, ex, l)
	if err != nil {
		return nil, err
	}
	c.notify(ctx, s)
	return s, nil
}

// CommitTx commits the diff list in a new transaction of drv. The
// transaction is rolled back on any failure, the listeners are notified
// once it is committed.
func (c *Committer) CommitTx(ctx context.Context, drv dialect.Driver, l graph.List) (*Summary, error) {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit: begin transaction: %w", err)
	}
	s, err := c.commit(ctx, tx, l)
	if err != nil {
		return nil, rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: commit transaction: %w", err)
	}
	c.notify(ctx, s)
	return s, nil
}

func (c *Committer) notify(ctx context.Context, s *Summary) {
	for _, lis := range c.listeners {
		lis.OnCommit(ctx, cloneChanges(s.Changes))
	}
}

func cloneChanges(changes []ObjectChange) []ObjectChange {
	out := make([]ObjectChange, len(changes))
	for i, ch := range changes {
		out[i] = ch.Clone()
	}
	return out
}

func (c *Committer) commit(ctx context.Context, ex dialect.ExecQuerier, l graph.List) (*Summary, error) {
	diffs := graph.Compress(l)
	p, err := newPlan(c.tr.Registry(), diffs)
	if err != nil {
		return nil, err
	}
	s := &Summary{Changes: Classify(diffs)}
	if c.policy != nil {
		if err := c.policy.EvalCommit(ctx, cloneChanges(s.Changes)); err != nil {
			return nil, err
		}
	}
	if err := c.assignKeys(ctx, ex, p); err != nil {
		return nil, err
	}
	r := &run{Committer: c, ex: ex, plan: p, summary: s}
	for _, e := range c.order {
		if err := r.inserts(ctx, e); err != nil {
			return nil, err
		}
	}
	for _, e := range c.order {
		if err := r.updates(ctx, e); err != nil {
			return nil, err
		}
	}
	for i := len(c.order) - 1; i >= 0; i-- {
		if err := r.deletes(ctx, c.order[i]); err != nil {
			return nil, err
		}
	}
	for _, o := range p.objects {
		if !o.id.IsTemp() || !o.inserted {
			continue
		}
		s.Replaced = append(s.Replaced, graph.NodeIDChange{ID: o.id, NewID: graph.NewID(o.entity.Name, o.pk)})
	}
	s.Diffs = diffs
	for _, rep := range s.Replaced {
		s.Diffs = s.Diffs.ReplaceID(rep.ID, rep.NewID)
	}
	for i := range s.Changes {
		s.Changes[i].PostCommitID = s.ID(s.Changes[i].PostCommitID)
	}
	return s, nil
}

// assignKeys generates the keys of every new object. Objects with a
// permanent id keep it, objects whose key columns are all set by values or
// relationships take them at insert time, identity keys are read back after
// the insert.
func (c *Committer) assignKeys(ctx context.Context, ex dialect.ExecQuerier, p *plan) error {
	for _, o := range p.objects {
		if !o.created || o.deleted || !o.id.IsTemp() {
			continue
		}
		pk := o.entity.PrimaryKey()
		if o.coversKey(pk) {
			continue
		}
		if c.keys.PostInsert(o.entity) {
			o.identity = true
			continue
		}
		key, err := c.keys.Generate(ctx, ex, o.entity)
		if err != nil {
			return err
		}
		o.pk[pk[0].Name] = key
	}
	return nil
}

func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}

// executionError wraps a driver failure with the statement, classifying
// constraint violations.
func executionError(query string, args []any, err error) error {
	return strata.NewExecutionError(query, args, sql.WrapConstraint(err))
}
