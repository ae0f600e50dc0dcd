package translator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/sqlast"
)

// Op is the operation of a batch.
type Op uint8

// Batch operations.
const (
	OpInsert Op = iota + 1
	OpUpdate
	OpDelete
)

// String returns the SQL keyword of the operation.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Row holds the values of one batch row.
type Row struct {
	// Values are the inserted or updated values, keyed by column name.
	Values map[string]any
	// Where are the qualifier values, keyed by column name.
	Where map[string]any
}

// BatchQuery is a homogeneous batch of row mutations: every row shares the
// entity, the changed column set and the set of NULL qualifier columns, so
// one statement template serves all of them.
type BatchQuery struct {
	Op     Op
	Entity string
	// Columns are the inserted columns (INSERT) or the SET columns (UPDATE).
	Columns []string
	// Qualifier lists the columns identifying a row (UPDATE, DELETE),
	// typically the primary key followed by the optimistic lock columns.
	Qualifier []string
	// NullColumns are the qualifier columns whose value is NULL in every row.
	// They render as IS NULL and produce no binding.
	NullColumns []string
	Rows        []Row
}

// Key returns the template key of the batch: two batches with equal keys
// share the same SQL.
func (q *BatchQuery) Key() string {
	return fmt.Sprintf("%s %s set=%s where=%s null=%s", q.Op, q.Entity,
		strings.Join(q.Columns, ","), strings.Join(q.Qualifier, ","), strings.Join(q.NullColumns, ","))
}

func (q *BatchQuery) translate(ctx context.Context, t *Translator) (sqlast.Statement, error) {
	b, err := t.Batch(ctx, q)
	if err != nil {
		return sqlast.Statement{}, err
	}
	if len(q.Rows) == 0 {
		return b.Template, nil
	}
	return b.RowStatement(0), nil
}

// Batch is a translated batch: one template plus per-row bindings.
type Batch struct {
	Query    *BatchQuery
	Template sqlast.Statement
	entity   *schema.Entity
	adapter  dialect.Adapter
}

// Len returns the number of rows.
func (b *Batch) Len() int { return len(b.Query.Rows) }

// RowStatement returns the template bound to the values of row i.
func (b *Batch) RowStatement(i int) sqlast.Statement {
	row := b.Query.Rows[i]
	return b.Template.WithValues(func(key string) any {
		kind, name, _ := strings.Cut(key, ":")
		var v any
		if kind == "w" {
			v = row.Where[name]
		} else {
			v = row.Values[name]
		}
		col, _ := b.entity.Column(name)
		return b.adapter.BindValue(col, v)
	})
}

// RowBindings returns the bindings of row i in placeholder order.
func (b *Batch) RowBindings(i int) []sqlast.Binding {
	return b.RowStatement(i).Bindings
}

// RowArgs returns the driver arguments of row i.
func (b *Batch) RowArgs(i int) []any {
	return b.RowStatement(i).Args()
}

// Batch translates a batch into its template. Row values are bound later,
// the template is never re-rendered per row.
func (t *Translator) Batch(ctx context.Context, q *BatchQuery) (*Batch, error) {
	e, err := t.entity(q.Entity)
	if err != nil {
		return nil, err
	}
	if err := t.checkBatch(e, q); err != nil {
		return nil, err
	}
	b := &Batch{Query: q, entity: e, adapter: t.adapter}
	key := t.cacheKey(q.Entity, "batch", q.Key())
	if stmt, ok := t.cached(ctx, key); ok {
		b.Template = stmt
		return b, nil
	}
	s := newScope(t, e, false)
	table := s.tree.Table(e.Schema, e.Table, "")
	var root sqlast.NodeID
	switch q.Op {
	case OpInsert:
		if len(q.Columns) == 0 {
			root = s.tree.Append(s.tree.Add(sqlast.Node{Kind: sqlast.KindInsert}), table, s.tree.Literal("DEFAULT VALUES"))
			break
		}
		cols := make([]sqlast.NodeID, len(q.Columns))
		vals := make([]sqlast.NodeID, len(q.Columns))
		for i, name := range q.Columns {
			cols[i] = s.tree.Column("", name)
			vals[i] = s.rowParam(e, "v", name)
		}
		root = s.tree.Insert(table, s.tree.ColumnList(cols...), s.tree.Values(vals...))
	case OpUpdate:
		if len(q.Columns) == 0 {
			return nil, strata.NewPathError(e.Name, "", "update batch without changed columns")
		}
		assigns := make([]sqlast.NodeID, len(q.Columns))
		for i, name := range q.Columns {
			assigns[i] = s.tree.Assign(s.tree.Column("", name), s.rowParam(e, "v", name))
		}
		root = s.tree.Update(table, s.tree.Set(assigns...), s.where(e, q))
	case OpDelete:
		root = s.tree.Delete(table, s.where(e, q))
	default:
		return nil, strata.NewTranslationError("unknown batch operation %s", q.Op)
	}
	stmt, err := sqlast.Render(s.tree, root, t.options())
	if err != nil {
		return nil, err
	}
	t.store(ctx, key, stmt)
	b.Template = stmt
	return b, nil
}

// where renders the row qualifier. NULL columns use IS NULL, never "= NULL".
func (s *scope) where(e *schema.Entity, q *BatchQuery) sqlast.NodeID {
	if len(q.Qualifier) == 0 {
		return sqlast.None
	}
	conds := make([]sqlast.NodeID, len(q.Qualifier))
	for i, name := range q.Qualifier {
		col := s.tree.Column("", name)
		if slices.Contains(q.NullColumns, name) {
			conds[i] = s.tree.IsNull(col, false)
			continue
		}
		conds[i] = s.tree.Binary("=", col, s.rowParam(e, "w", name))
	}
	return s.tree.Where(s.tree.Nary("AND", conds...))
}

func (s *scope) rowParam(e *schema.Entity, kind, name string) sqlast.NodeID {
	b := sqlast.Binding{Key: kind + ":" + name, Precision: schema.Unspecified, Scale: schema.Unspecified}
	if c, ok := e.Column(name); ok {
		b.Type, b.Precision, b.Scale = c.Type, c.Precision, c.Scale
	}
	return s.tree.Param(b)
}

// checkBatch validates column names and that every row agrees with the
// NULL pattern of the template.
func (t *Translator) checkBatch(e *schema.Entity, q *BatchQuery) error {
	for _, list := range [][]string{q.Columns, q.Qualifier} {
		for _, name := range list {
			if _, ok := e.Column(name); !ok {
				return strata.NewPathError(e.Name, name, "unknown column")
			}
		}
	}
	for _, name := range q.NullColumns {
		if !slices.Contains(q.Qualifier, name) {
			return strata.NewPathError(e.Name, name, "null column is not part of the qualifier")
		}
	}
	if q.Op == OpDelete && len(q.Qualifier) == 0 {
		return strata.NewPathError(e.Name, "", "delete batch without qualifier")
	}
	for i, row := range q.Rows {
		for _, name := range q.Qualifier {
			isNull := row.Where[name] == nil
			if isNull != slices.Contains(q.NullColumns, name) {
				return strata.NewPathError(e.Name, name, fmt.Sprintf("row %d does not match the NULL pattern of the batch", i))
			}
		}
	}
	return nil
}
