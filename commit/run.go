package commit

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/translator"
)

// run is the state of one commit.
type run struct {
	*Committer
	ex      dialect.ExecQuerier
	plan    *plan
	summary *Summary
}

// group is a homogeneous batch under construction with the objects of its
// rows.
type group struct {
	query   *translator.BatchQuery
	objects []*object
}

// batches groups rows by statement template, in order of first appearance.
type batches struct {
	groups []*group
	index  map[string]*group
}

func (b *batches) add(q *translator.BatchQuery, row translator.Row, o *object) {
	if b.index == nil {
		b.index = make(map[string]*group)
	}
	key := q.Key()
	g, ok := b.index[key]
	if !ok {
		g = &group{query: q}
		b.index[key] = g
		b.groups = append(b.groups, g)
	}
	g.query.Rows = append(g.query.Rows, row)
	g.objects = append(g.objects, o)
}

func (r *run) inserts(ctx context.Context, e *schema.Entity) error {
	var b batches
	for _, o := range r.plan.objects {
		if o.entity != e || !o.created || o.deleted {
			continue
		}
		values := make(map[string]any, len(o.values)+len(o.pk))
		for col, v := range o.values {
			lit, err := r.plan.resolve(v)
			if err != nil {
				return err
			}
			values[col] = lit
		}
		for col, v := range o.pk {
			if _, ok := values[col]; !ok {
				values[col] = v
			}
		}
		for _, c := range e.PrimaryKey() {
			if v, ok := values[c.Name]; ok {
				o.pk[c.Name] = v
			}
		}
		q := &translator.BatchQuery{Op: translator.OpInsert, Entity: e.Name, Columns: slices.Sorted(maps.Keys(values))}
		if o.identity {
			// Generated keys are read per row.
			q.Rows = []translator.Row{{Values: values}}
			if err := r.insertIdentity(ctx, q, o); err != nil {
				return err
			}
			continue
		}
		b.add(q, translator.Row{Values: values}, o)
	}
	for _, g := range b.groups {
		if err := r.exec(ctx, g); err != nil {
			return err
		}
		for _, o := range g.objects {
			o.inserted = true
		}
	}
	return nil
}

func (r *run) updates(ctx context.Context, e *schema.Entity) error {
	var b batches
	for _, o := range r.plan.objects {
		if o.entity != e || o.created || o.deleted || len(o.values) == 0 {
			continue
		}
		cols := o.changed()
		values := make(map[string]any, len(cols))
		for _, col := range cols {
			lit, err := r.plan.resolve(o.values[col])
			if err != nil {
				return err
			}
			values[col] = lit
		}
		q, where, err := r.qualifier(translator.OpUpdate, o)
		if err != nil {
			return err
		}
		q.Columns = cols
		b.add(q, translator.Row{Values: values, Where: where}, o)
	}
	return r.execAll(ctx, b)
}

func (r *run) deletes(ctx context.Context, e *schema.Entity) error {
	var b batches
	for _, o := range r.plan.objects {
		if o.entity != e || o.created || !o.deleted {
			continue
		}
		q, where, err := r.qualifier(translator.OpDelete, o)
		if err != nil {
			return err
		}
		b.add(q, translator.Row{Where: where}, o)
	}
	return r.execAll(ctx, b)
}

func (r *run) execAll(ctx context.Context, b batches) error {
	for _, g := range b.groups {
		if err := r.exec(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// qualifier returns the batch query and the row qualifier of an UPDATE or
// DELETE: the key columns followed by the optimistic lock columns holding
// their committed values.
func (r *run) qualifier(op translator.Op, o *object) (*translator.BatchQuery, map[string]any, error) {
	e := o.entity
	if o.id.IsTemp() {
		return nil, nil, fmt.Errorf("commit: %s of unsaved object %s", op, o.id)
	}
	q := &translator.BatchQuery{Op: op, Entity: e.Name}
	where := make(map[string]any)
	for _, c := range e.PrimaryKey() {
		v, ok := o.id.Value(c.Name)
		if !ok {
			return nil, nil, strata.NewPathError(e.Name, c.Name, fmt.Sprintf("id %s has no value for the key column", o.id))
		}
		q.Qualifier = append(q.Qualifier, c.Name)
		where[c.Name] = v
	}
	var snapshot map[string]any
	if locks := e.LockColumns(); len(locks) > 0 && r.snapshots != nil {
		snapshot = r.snapshots.Snapshot(o.id)
	}
	for _, c := range e.LockColumns() {
		v, ok := o.before[c.Name]
		if !ok {
			v = snapshotValue(snapshot, c)
		}
		q.Qualifier = append(q.Qualifier, c.Name)
		where[c.Name] = v
	}
	for _, name := range q.Qualifier {
		if where[name] == nil {
			q.NullColumns = append(q.NullColumns, name)
		}
	}
	return q, where, nil
}

func snapshotValue(snapshot map[string]any, c *schema.Column) any {
	if c.Property != "" {
		if v, ok := snapshot[c.Property]; ok {
			return v
		}
	}
	return snapshot[c.Name]
}

// exec executes a batch, prepared once when the adapter supports batch
// updates, and checks the row counts.
func (r *run) exec(ctx context.Context, g *group) error {
	b, err := r.tr.Batch(ctx, g.query)
	if err != nil {
		return err
	}
	var counts []int64
	if b.Len() > 1 && r.tr.Adapter().Capabilities().BatchUpdates {
		rows := make([][]any, b.Len())
		for i := range rows {
			rows[i] = b.RowArgs(i)
		}
		r.log.LogBatch(ctx, b.Template.SQL, b.RowBindings(0), b.Len())
		counts, err = sql.ExecBatch(ctx, r.ex, b.Template.SQL, rows)
		if err != nil {
			var args []any
			if len(counts) < len(rows) {
				args = rows[len(counts)]
			}
			return executionError(b.Template.SQL, args, err)
		}
	} else {
		for i := range b.Len() {
			stmt := b.RowStatement(i)
			r.log.LogStatement(ctx, stmt.SQL, stmt.Bindings)
			n, err := sql.ExecAffected(ctx, r.ex, stmt.SQL, stmt.Args()...)
			if err != nil {
				return executionError(stmt.SQL, stmt.Args(), err)
			}
			counts = append(counts, n)
		}
	}
	for i, n := range counts {
		r.log.LogUpdateCount(ctx, n)
		if err := r.count(g, i, n, b.Template.SQL); err != nil {
			return err
		}
	}
	return nil
}

// count checks the rows affected by row i of a batch and adds them to the
// summary. UPDATEs and DELETEs of optimistically locked entities must match
// exactly one row.
func (r *run) count(g *group, i int, n int64, query string) error {
	r.summary.Statements++
	switch g.query.Op {
	case translator.OpInsert:
		r.summary.Inserted += n
		return nil
	case translator.OpUpdate:
		r.summary.Updated += n
	case translator.OpDelete:
		r.summary.Deleted += n
	}
	e := g.objects[i].entity
	if e.LockType == schema.LockOptimistic && n != 1 {
		return &strata.OptimisticLockError{Entity: e.Name, ID: g.objects[i].id.Key(), SQL: query, Affected: n}
	}
	return nil
}

// insertIdentity inserts one row and reads back the key generated by the
// database.
func (r *run) insertIdentity(ctx context.Context, q *translator.BatchQuery, o *object) error {
	b, err := r.tr.Batch(ctx, q)
	if err != nil {
		return err
	}
	stmt := b.RowStatement(0)
	r.log.LogStatement(ctx, stmt.SQL, stmt.Bindings)
	var res sql.Result
	if err := r.ex.Exec(ctx, stmt.SQL, stmt.Args(), &res); err != nil {
		return executionError(stmt.SQL, stmt.Args(), err)
	}
	if n, err := res.RowsAffected(); err == nil {
		r.log.LogUpdateCount(ctx, n)
		r.summary.Inserted += n
	}
	r.summary.Statements++
	key, err := r.generatedKey(ctx, res)
	if err != nil {
		return strata.NewKeyGenerationError(o.entity.Name, err)
	}
	r.log.LogGeneratedKey(ctx, o.entity.Name, key)
	for _, c := range o.entity.PrimaryKey() {
		o.pk[c.Name] = key
	}
	o.inserted = true
	return nil
}

func (r *run) generatedKey(ctx context.Context, res sql.Result) (int64, error) {
	a := r.tr.Adapter()
	if a.Capabilities().GeneratedKeys {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("commit: last insert id: %w", err)
		}
		return id, nil
	}
	if query := a.IdentitySelect(); query != "" {
		return sql.QueryInt64(ctx, r.ex, query)
	}
	return 0, fmt.Errorf("commit: %s reports no generated keys", a.Name())
}
