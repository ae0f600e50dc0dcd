package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/strata/exp"
	"github.com/syssam/strata/sqlast"
)

// Ordering orders the result by a path.
type Ordering struct {
	// Path is an object path, or a column path prefixed with "db:".
	Path       string
	Desc       bool
	IgnoreCase bool
}

// SelectQuery is a logical SELECT over a root entity.
type SelectQuery struct {
	Entity string
	// Columns are the selected expressions. Empty selects every column of
	// the root entity.
	Columns   []*exp.Expression
	Qualifier *exp.Expression
	GroupBy   []string
	Having    *exp.Expression
	Orderings []Ordering
	Distinct  bool
	// Limit and Offset page the result. Zero values mean no paging.
	Limit  int
	Offset int
}

// String returns a canonical form of the query.
func (q *SelectQuery) String() string {
	return q.format((*exp.Expression).String)
}

// Key returns the canonical form of the query including the types of its
// values, used as cache key.
func (q *SelectQuery) Key() string {
	return q.format((*exp.Expression).Key)
}

func (q *SelectQuery) format(str func(*exp.Expression) string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "select distinct=%t entity=%s columns=[", q.Distinct, q.Entity)
	for i, c := range q.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(str(c))
	}
	sb.WriteString("] where=")
	if q.Qualifier != nil {
		sb.WriteString(str(q.Qualifier))
	}
	fmt.Fprintf(&sb, " group=%v having=", q.GroupBy)
	if q.Having != nil {
		sb.WriteString(str(q.Having))
	}
	fmt.Fprintf(&sb, " order=%v limit=%d offset=%d", q.Orderings, q.Limit, q.Offset)
	return sb.String()
}

func (q *SelectQuery) translate(ctx context.Context, t *Translator) (sqlast.Statement, error) {
	return t.Select(ctx, q)
}

// Select translates q into a SELECT statement. Clauses are translated in SQL
// order, so aliases follow the first use in the select list, then the
// qualifier, grouping, having and orderings.
func (t *Translator) Select(ctx context.Context, q *SelectQuery) (sqlast.Statement, error) {
	key := t.cacheKey(q.Entity, "select", q.Key())
	if stmt, ok := t.cached(ctx, key); ok {
		return stmt, nil
	}
	root, err := t.entity(q.Entity)
	if err != nil {
		return sqlast.Statement{}, err
	}
	s := newScope(t, root, true)

	var columns []sqlast.NodeID
	if len(q.Columns) == 0 {
		for _, c := range root.Columns {
			columns = append(columns, s.tree.Column(s.alias, c.Name))
		}
	}
	for _, c := range q.Columns {
		id, err := s.expr(c, nil)
		if err != nil {
			return sqlast.Statement{}, err
		}
		columns = append(columns, id)
	}
	where, err := s.qualifier(q.Qualifier)
	if err != nil {
		return sqlast.Statement{}, err
	}
	var groupBy []sqlast.NodeID
	for _, p := range q.GroupBy {
		id, err := s.expr(pathExpr(p), nil)
		if err != nil {
			return sqlast.Statement{}, err
		}
		groupBy = append(groupBy, id)
	}
	having, err := s.qualifier(q.Having)
	if err != nil {
		return sqlast.Statement{}, err
	}
	var orders []sqlast.NodeID
	for _, o := range q.Orderings {
		id, err := s.expr(pathExpr(o.Path), nil)
		if err != nil {
			return sqlast.Statement{}, err
		}
		if o.IgnoreCase {
			id = s.tree.Func("UPPER", id)
		}
		orders = append(orders, s.tree.OrderItem(id, o.Desc))
	}

	clauses := []sqlast.NodeID{s.tree.SelectList(columns...), s.tree.From(s.from())}
	if where != sqlast.None {
		clauses = append(clauses, s.tree.Where(where))
	}
	if len(groupBy) > 0 {
		clauses = append(clauses, s.tree.GroupBy(groupBy...))
	}
	if having != sqlast.None {
		clauses = append(clauses, s.tree.Having(having))
	}
	if len(orders) > 0 {
		clauses = append(clauses, s.tree.OrderBy(orders...))
	}
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		if clause := t.adapter.LimitClause(limit, q.Offset); clause != "" {
			clauses = append(clauses, s.tree.Limit(clause))
		}
	}
	// Rows joined through to-many relationships repeat the root row.
	distinct := q.Distinct || (s.toMany && len(q.Columns) == 0)
	stmt, err := sqlast.Render(s.tree, s.tree.Select(distinct, clauses...), t.options())
	if err != nil {
		return sqlast.Statement{}, err
	}
	t.log.DebugContext(ctx, "translated select", "entity", q.Entity, "sql", stmt.SQL)
	t.store(ctx, key, stmt)
	return stmt, nil
}

// pathExpr parses an ordering or grouping path.
func pathExpr(p string) *exp.Expression {
	if db, ok := strings.CutPrefix(p, "db:"); ok {
		return exp.DbPath(db)
	}
	return exp.Path(p)
}
