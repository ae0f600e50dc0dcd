package translator

import (
	"strconv"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/exp"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/sqlast"
)

// join is a table reached from its parent alias through a relationship.
type join struct {
	alias  string
	parent string
	rel    *schema.Relationship
	source *schema.Entity
	target *schema.Entity
	outer  bool
}

// scope holds the per-statement translation state: the AST arena, the alias
// allocator and the joins inferred from relationship paths.
type scope struct {
	t      *Translator
	tree   *sqlast.Tree
	root   *schema.Entity
	alias  string // Root alias, empty in DML.
	next   int
	joins  []*join
	byPath map[string]*join
	toMany bool
}

func newScope(t *Translator, root *schema.Entity, aliased bool) *scope {
	s := &scope{t: t, tree: sqlast.New(), root: root, byPath: make(map[string]*join)}
	if aliased {
		s.alias = s.newAlias()
	}
	return s
}

func (s *scope) newAlias() string {
	a := "t" + strconv.Itoa(s.next)
	s.next++
	return a
}

// resolve resolves a dotted path to the alias of the table holding the
// column and the column itself. Intermediate segments are relationships and
// allocate joins; a trailing "+" on a segment requests an outer join.
func (s *scope) resolve(e *exp.Expression) (string, *schema.Column, error) {
	segments := strings.Split(e.Path, ".")
	entity, alias, prefix := s.root, s.alias, ""
	for _, seg := range segments[:len(segments)-1] {
		name := strings.TrimSuffix(seg, "+")
		rel, ok := entity.Relationship(name)
		if !ok {
			return "", nil, strata.NewPathError(entity.Name, name, "unknown relationship")
		}
		if s.alias == "" {
			return "", nil, strata.NewPathError(entity.Name, name, "relationship paths are not allowed in this statement")
		}
		prefix += "." + seg
		j, ok := s.byPath[prefix]
		if !ok {
			target, err := s.t.entity(rel.Target)
			if err != nil {
				return "", nil, err
			}
			j = &join{
				alias:  s.newAlias(),
				parent: alias,
				rel:    rel,
				source: entity,
				target: target,
				outer:  strings.HasSuffix(seg, "+"),
			}
			s.joins = append(s.joins, j)
			s.byPath[prefix] = j
		}
		if rel.ToMany {
			s.toMany = true
		}
		entity, alias = j.target, j.alias
	}
	name := strings.TrimSuffix(segments[len(segments)-1], "+")
	var (
		col *schema.Column
		ok  bool
	)
	if e.Kind == exp.KindDbPath {
		col, ok = entity.Column(name)
	} else {
		col, ok = entity.ColumnForProperty(name)
	}
	if !ok {
		// A to-one relationship compares by its foreign key.
		if rel, isRel := entity.Relationship(name); isRel && !rel.ToMany && len(rel.Joins) == 1 {
			col, ok = entity.Column(rel.Joins[0].Source)
		}
	}
	if !ok {
		return "", nil, strata.NewPathError(entity.Name, name, "unknown property")
	}
	return alias, col, nil
}

// from returns the FROM item: the root table joined, left-deep, with every
// table reached so far.
func (s *scope) from() sqlast.NodeID {
	item := s.tree.Table(s.root.Schema, s.root.Table, s.alias)
	for _, j := range s.joins {
		conds := make([]sqlast.NodeID, len(j.rel.Joins))
		for i, jc := range j.rel.Joins {
			conds[i] = s.tree.Binary("=", s.tree.Column(j.parent, jc.Source), s.tree.Column(j.alias, jc.Target))
		}
		typ := "JOIN"
		if j.outer {
			typ = "LEFT JOIN"
		}
		item = s.tree.Join(typ, item, s.tree.Table(j.target.Schema, j.target.Table, j.alias), s.tree.Nary("AND", conds...))
	}
	return item
}

// param returns a placeholder bound with the column's type information.
func (s *scope) param(v any, col *schema.Column) sqlast.NodeID {
	b := sqlast.Binding{Value: v, Precision: schema.Unspecified, Scale: schema.Unspecified}
	if col != nil {
		b.Value = s.t.adapter.BindValue(col, v)
		b.Type, b.Precision, b.Scale = col.Type, col.Precision, col.Scale
	}
	return s.tree.Param(b)
}

var comparisons = map[exp.Kind]string{
	exp.KindEqual: "=", exp.KindNotEqual: "<>",
	exp.KindLess: "<", exp.KindLessOrEqual: "<=",
	exp.KindGreater: ">", exp.KindGreaterOrEqual: ">=",
	exp.KindLike: "LIKE", exp.KindNotLike: "NOT LIKE",
	exp.KindLikeIgnoreCase: "LIKE", exp.KindNotLikeIgnoreCase: "NOT LIKE",
}

var arithmetic = map[exp.Kind]string{
	exp.KindAdd: "+", exp.KindSubtract: "-", exp.KindMultiply: "*", exp.KindDivide: "/",
}

// qualifier translates a boolean expression. A nil result means no filter.
func (s *scope) qualifier(e *exp.Expression) (sqlast.NodeID, error) {
	if e == nil || e.IsNullLiteral() {
		return sqlast.None, nil
	}
	if rw := s.t.adapter.Rewriter(); rw != nil {
		e = rw.Rewrite(e)
	}
	return s.expr(e, nil)
}

// expr translates e. col is the column compared against, used to type the
// bindings of scalar operands.
func (s *scope) expr(e *exp.Expression, col *schema.Column) (sqlast.NodeID, error) {
	if e == nil {
		return sqlast.None, strata.NewTranslationError("nil expression")
	}
	switch e.Kind {
	case exp.KindAnd, exp.KindOr:
		ops, err := s.each(e.Operands, nil)
		if err != nil {
			return sqlast.None, err
		}
		op := "AND"
		if e.Kind == exp.KindOr {
			op = "OR"
		}
		return s.tree.Nary(op, ops...), nil
	case exp.KindNot:
		if len(e.Operands) != 1 {
			return sqlast.None, strata.NewTranslationError("NOT expects 1 operand, got %d", len(e.Operands))
		}
		op, err := s.expr(e.Operands[0], nil)
		if err != nil {
			return sqlast.None, err
		}
		return s.tree.Unary("NOT", op), nil
	case exp.KindEqual, exp.KindNotEqual:
		if len(e.Operands) == 2 {
			lhs, rhs := e.Operands[0], e.Operands[1]
			if lhs.IsNullLiteral() {
				lhs, rhs = rhs, lhs
			}
			if rhs.IsNullLiteral() {
				op, err := s.expr(lhs, nil)
				if err != nil {
					return sqlast.None, err
				}
				return s.tree.IsNull(op, e.Kind == exp.KindNotEqual), nil
			}
		}
		return s.comparison(e)
	case exp.KindLess, exp.KindLessOrEqual, exp.KindGreater, exp.KindGreaterOrEqual,
		exp.KindLike, exp.KindNotLike, exp.KindLikeIgnoreCase, exp.KindNotLikeIgnoreCase:
		return s.comparison(e)
	case exp.KindIn, exp.KindNotIn:
		if len(e.Operands) != 2 || e.Operands[1].Kind != exp.KindList {
			return sqlast.None, strata.NewTranslationError("%s expects a value and a list", e.Kind)
		}
		if len(e.Operands[1].Values) == 0 {
			// Nothing is IN an empty list.
			if e.Kind == exp.KindIn {
				return s.tree.Literal("1 = 0"), nil
			}
			return s.tree.Literal("1 = 1"), nil
		}
		ops, err := s.typed(e.Operands)
		if err != nil {
			return sqlast.None, err
		}
		return s.tree.In(ops[0], ops[1], e.Kind == exp.KindNotIn), nil
	case exp.KindBetween, exp.KindNotBetween:
		if len(e.Operands) != 3 {
			return sqlast.None, strata.NewTranslationError("%s expects 3 operands, got %d", e.Kind, len(e.Operands))
		}
		ops, err := s.typed(e.Operands)
		if err != nil {
			return sqlast.None, err
		}
		return s.tree.Between(ops[0], ops[1], ops[2], e.Kind == exp.KindNotBetween), nil
	case exp.KindAdd, exp.KindSubtract, exp.KindMultiply, exp.KindDivide:
		if len(e.Operands) != 2 {
			return sqlast.None, strata.NewTranslationError("%s expects 2 operands, got %d", e.Kind, len(e.Operands))
		}
		ops, err := s.each(e.Operands, col)
		if err != nil {
			return sqlast.None, err
		}
		for i, op := range e.Operands {
			if _, ok := arithmetic[op.Kind]; ok {
				s.tree.Paren(ops[i])
			}
		}
		return s.tree.Binary(arithmetic[e.Kind], ops[0], ops[1]), nil
	case exp.KindNegate:
		if len(e.Operands) != 1 {
			return sqlast.None, strata.NewTranslationError("negation expects 1 operand, got %d", len(e.Operands))
		}
		op, err := s.expr(e.Operands[0], col)
		if err != nil {
			return sqlast.None, err
		}
		if _, ok := arithmetic[e.Operands[0].Kind]; ok {
			s.tree.Paren(op)
		}
		return s.tree.Unary("-", op), nil
	case exp.KindObjPath, exp.KindDbPath:
		alias, c, err := s.resolve(e)
		if err != nil {
			return sqlast.None, err
		}
		return s.tree.Column(alias, c.Name), nil
	case exp.KindScalar:
		return s.param(e.Value, col), nil
	case exp.KindList:
		items := make([]sqlast.NodeID, len(e.Values))
		for i, v := range e.Values {
			items[i] = s.param(v, col)
		}
		return s.tree.List(items...), nil
	case exp.KindTrue:
		return s.tree.Literal("1 = 1"), nil
	case exp.KindFalse:
		return s.tree.Literal("1 = 0"), nil
	case exp.KindFunction:
		if e.Name == "" {
			return sqlast.None, strata.NewTranslationError("function without a name")
		}
		args, err := s.each(e.Operands, col)
		if err != nil {
			return sqlast.None, err
		}
		return s.tree.Func(e.Name, args...), nil
	}
	return sqlast.None, strata.NewTranslationError("unsupported expression %s", e.Kind)
}

func (s *scope) comparison(e *exp.Expression) (sqlast.NodeID, error) {
	if len(e.Operands) != 2 {
		return sqlast.None, strata.NewTranslationError("%s expects 2 operands, got %d", e.Kind, len(e.Operands))
	}
	ops, err := s.typed(e.Operands)
	if err != nil {
		return sqlast.None, err
	}
	if e.Kind == exp.KindLikeIgnoreCase || e.Kind == exp.KindNotLikeIgnoreCase {
		ops[0], ops[1] = s.tree.Func("UPPER", ops[0]), s.tree.Func("UPPER", ops[1])
	}
	return s.tree.Binary(comparisons[e.Kind], ops[0], ops[1]), nil
}

// typed translates operands, binding scalars with the type of the first
// column operand.
func (s *scope) typed(operands []*exp.Expression) ([]sqlast.NodeID, error) {
	var col *schema.Column
	for _, op := range operands {
		if op.IsPath() {
			_, c, err := s.resolve(op)
			if err != nil {
				return nil, err
			}
			col = c
			break
		}
	}
	return s.each(operands, col)
}

func (s *scope) each(operands []*exp.Expression, col *schema.Column) ([]sqlast.NodeID, error) {
	ids := make([]sqlast.NodeID, len(operands))
	for i, op := range operands {
		id, err := s.expr(op, col)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
