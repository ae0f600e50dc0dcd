package sqlast

import (
	"strings"

	"github.com/syssam/strata"
)

// Visitor receives the events of a depth-first traversal. StartNode returns
// false to skip the children of a node; EndNode is still called.
type Visitor interface {
	StartNode(t *Tree, id NodeID) bool
	StartChild(t *Tree, parent NodeID, child NodeID, index int)
	EndChild(t *Tree, parent NodeID, child NodeID, index int)
	EndNode(t *Tree, id NodeID)
}

// Walk traverses the sub-tree rooted at id in order.
func Walk(t *Tree, id NodeID, v Visitor) {
	if !v.StartNode(t, id) {
		v.EndNode(t, id)
		return
	}
	for i, c := range t.Children(id) {
		v.StartChild(t, id, c, i)
		Walk(t, c, v)
		v.EndChild(t, id, c, i)
	}
	v.EndNode(t, id)
}

// Options configures rendering for a dialect.
type Options struct {
	// Quote quotes one identifier. Nil leaves identifiers as they are.
	Quote func(string) string
	// Placeholder returns the placeholder of the n-th (1-based) parameter.
	// Nil renders "?".
	Placeholder func(n int) string
}

// Render renders the statement rooted at root.
func Render(t *Tree, root NodeID, opts Options) (Statement, error) {
	if err := t.Err(); err != nil {
		return Statement{}, err
	}
	if t.Node(root) == nil {
		return Statement{}, strata.NewTranslationError("sqlast: render unknown node %d", root)
	}
	r := &renderer{opts: opts}
	Walk(t, root, r)
	if r.err != nil {
		return Statement{}, r.err
	}
	return Statement{SQL: r.sb.String(), Bindings: r.bindings}, nil
}

// renderer is the Visitor that writes SQL text. Separators between siblings
// are written by the parent in StartChild, so nodes never look at their
// siblings.
type renderer struct {
	opts     Options
	sb       strings.Builder
	bindings []Binding
	err      error
}

var _ Visitor = (*renderer)(nil)

// arity lists the exact child count of fixed-shape nodes.
var arity = map[Kind]int{
	KindJoin: 3, KindWhere: 1, KindHaving: 1, KindOrderItem: 1, KindAssign: 2,
	KindBinary: 2, KindUnary: 1, KindIsNull: 1, KindIn: 2, KindBetween: 3,
}

// nonEmpty lists nodes that need at least one child.
var nonEmpty = map[Kind]bool{
	KindSelectList: true, KindFrom: true, KindGroupBy: true, KindOrderBy: true, KindSet: true,
	KindColumnList: true, KindValues: true, KindNary: true, KindList: true,
}

func (r *renderer) fail(n *Node, format string, args ...any) bool {
	if r.err == nil {
		r.err = strata.NewTranslationError("sqlast: %s node: "+format, append([]any{n.Kind}, args...)...)
	}
	return false
}

func (r *renderer) StartNode(t *Tree, id NodeID) bool {
	if r.err != nil {
		return false
	}
	n := t.Node(id)
	kids := len(n.children)
	if want, ok := arity[n.Kind]; ok && kids != want {
		return r.fail(n, "expect %d children, got %d", want, kids)
	}
	if nonEmpty[n.Kind] && kids == 0 {
		return r.fail(n, "no children")
	}
	switch n.Kind {
	case KindSelect:
		r.sb.WriteString("SELECT ")
		if n.Distinct {
			r.sb.WriteString("DISTINCT ")
		}
	case KindUpdate:
		r.sb.WriteString("UPDATE ")
	case KindInsert:
		r.sb.WriteString("INSERT INTO ")
	case KindDelete:
		r.sb.WriteString("DELETE FROM ")
	case KindCall:
		r.sb.WriteByte('{')
		if !n.Returns {
			r.writeCall(n)
		} else if kids == 0 {
			return r.fail(n, "missing return value parameter")
		}
	case KindFrom:
		r.sb.WriteString("FROM ")
	case KindTable:
		if n.Text == "" {
			return r.fail(n, "missing table name")
		}
		r.sb.WriteString(r.qualified(n.Schema, n.Text))
		if n.Alias != "" {
			r.sb.WriteByte(' ')
			r.sb.WriteString(n.Alias)
		}
	case KindJoin:
		if n.Text == "" {
			return r.fail(n, "missing join type")
		}
		r.sb.WriteByte('(')
	case KindWhere:
		r.sb.WriteString("WHERE ")
	case KindGroupBy:
		r.sb.WriteString("GROUP BY ")
	case KindHaving:
		r.sb.WriteString("HAVING ")
	case KindOrderBy:
		r.sb.WriteString("ORDER BY ")
	case KindSet:
		r.sb.WriteString("SET ")
	case KindColumnList, KindList:
		r.sb.WriteByte('(')
	case KindValues:
		r.sb.WriteString("VALUES (")
	case KindLimit, KindLiteral:
		r.sb.WriteString(n.Text)
	case KindColumn:
		if n.Text == "" {
			return r.fail(n, "missing column name")
		}
		if n.Alias != "" {
			r.sb.WriteString(n.Alias)
			r.sb.WriteByte('.')
		}
		r.sb.WriteString(r.quote(n.Text))
	case KindParam:
		r.bindings = append(r.bindings, n.Binding)
		if r.opts.Placeholder != nil {
			r.sb.WriteString(r.opts.Placeholder(len(r.bindings)))
		} else {
			r.sb.WriteByte('?')
		}
	case KindUnary:
		r.sb.WriteString(n.Text)
		if isWord(n.Text) {
			r.sb.WriteByte(' ')
		}
	case KindFunc:
		r.sb.WriteString(n.Text)
		r.sb.WriteByte('(')
	case KindBinary, KindNary:
		if n.Text == "" {
			return r.fail(n, "missing operator")
		}
	case KindSelectList, KindAssign, KindOrderItem, KindIsNull, KindIn, KindBetween, KindEmpty:
	default:
		return r.fail(n, "unknown kind")
	}
	return true
}

func (r *renderer) StartChild(t *Tree, parent, child NodeID, i int) {
	if r.err != nil {
		return
	}
	p := t.Node(parent)
	switch p.Kind {
	case KindSelect, KindUpdate, KindInsert, KindDelete:
		if i > 0 {
			r.sb.WriteByte(' ')
		}
	case KindCall:
		if arg := i - boolInt(p.Returns); arg > 0 {
			r.sb.WriteString(", ")
		}
	case KindSelectList, KindFrom, KindGroupBy, KindOrderBy, KindSet, KindColumnList, KindValues, KindList, KindFunc:
		if i > 0 {
			r.sb.WriteString(", ")
		}
	case KindJoin:
		switch i {
		case 1:
			r.sb.WriteByte(' ')
			r.sb.WriteString(p.Text)
			r.sb.WriteByte(' ')
		case 2:
			r.sb.WriteString(" ON (")
		}
	case KindAssign:
		if i == 1 {
			r.sb.WriteString(" = ")
		}
	case KindBinary:
		if i == 1 {
			r.sb.WriteByte(' ')
			r.sb.WriteString(p.Text)
			r.sb.WriteByte(' ')
		}
	case KindNary:
		if i > 0 {
			r.sb.WriteByte(' ')
			r.sb.WriteString(p.Text)
			r.sb.WriteByte(' ')
		}
	case KindIn:
		if i == 1 {
			if p.Not {
				r.sb.WriteString(" NOT IN ")
			} else {
				r.sb.WriteString(" IN ")
			}
		}
	case KindBetween:
		switch i {
		case 1:
			if p.Not {
				r.sb.WriteString(" NOT BETWEEN ")
			} else {
				r.sb.WriteString(" BETWEEN ")
			}
		case 2:
			r.sb.WriteString(" AND ")
		}
	}
	if paren(p, t.Node(child)) {
		r.sb.WriteByte('(')
	}
}

func (r *renderer) EndChild(t *Tree, parent, child NodeID, i int) {
	if r.err != nil {
		return
	}
	p := t.Node(parent)
	if paren(p, t.Node(child)) {
		r.sb.WriteByte(')')
	}
	if p.Kind == KindCall && p.Returns && i == 0 {
		r.sb.WriteString(" = ")
		r.writeCall(p)
	}
}

func (r *renderer) EndNode(t *Tree, id NodeID) {
	if r.err != nil {
		return
	}
	n := t.Node(id)
	switch n.Kind {
	case KindCall:
		r.sb.WriteString(")}")
	case KindJoin:
		r.sb.WriteString("))")
	case KindColumnList, KindValues, KindList, KindFunc:
		r.sb.WriteByte(')')
	case KindOrderItem:
		if n.Desc {
			r.sb.WriteString(" DESC")
		}
	case KindIsNull:
		if n.Not {
			r.sb.WriteString(" IS NOT NULL")
		} else {
			r.sb.WriteString(" IS NULL")
		}
	}
}

func (r *renderer) writeCall(n *Node) {
	r.sb.WriteString("call ")
	r.sb.WriteString(r.qualified("", n.Text))
	r.sb.WriteByte('(')
}

func (r *renderer) quote(s string) string {
	if r.opts.Quote == nil {
		return s
	}
	return r.opts.Quote(s)
}

// qualified quotes every part of a dotted name.
func (r *renderer) qualified(schema, name string) string {
	if schema != "" {
		name = schema + "." + name
	}
	if r.opts.Quote == nil {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = r.opts.Quote(p)
	}
	return strings.Join(parts, ".")
}

// paren reports whether child renders inside parentheses under p. Logical
// operands of NOT and of other logical operators are always wrapped.
func paren(p, child *Node) bool {
	if child.Paren {
		return true
	}
	switch p.Kind {
	case KindNary:
		return child.Kind == KindNary && len(child.children) > 1
	case KindUnary:
		return isWord(p.Text) && child.Kind != KindColumn && child.Kind != KindParam && child.Kind != KindLiteral
	}
	return false
}

func isWord(op string) bool {
	return op != "" && (op[0] >= 'A' && op[0] <= 'Z' || op[0] >= 'a' && op[0] <= 'z')
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
