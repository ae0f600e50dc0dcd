// Package sqlast holds the abstract syntax tree of a single SQL statement
// and renders it into dialect-correct text plus ordered parameter bindings.
//
// Trees are arenas: nodes live in one slice and reference their children by
// NodeID. A node belongs to at most one parent. Reusing a sub-tree in a
// second place requires a Copy (or a Graft from another tree).
//
//	t := sqlast.New()
//	tbl := t.Table("", "ARTIST", "t0")
//	where := t.Where(t.Binary("=", t.Column("t0", "ARTIST_NAME"), t.Param(sqlast.Binding{Value: "Dali"})))
//	root := t.Select(false, t.SelectList(t.Column("t0", "ARTIST_ID")), t.From(tbl), where)
//	stmt, err := sqlast.Render(t, root, sqlast.Options{})
package sqlast

import (
	"fmt"

	"github.com/syssam/strata"
)

// NodeID addresses a node inside its Tree.
type NodeID int32

// None is the zero value of optional node references.
const None NodeID = -1

// Kind is the type of a node.
type Kind uint8

// Node kinds.
const (
	KindSelect Kind = iota + 1
	KindUpdate
	KindInsert
	KindDelete
	KindCall
	KindSelectList
	KindFrom
	KindTable
	KindJoin
	KindWhere
	KindGroupBy
	KindHaving
	KindOrderBy
	KindOrderItem
	KindSet
	KindAssign
	KindColumnList
	KindValues
	KindLimit
	KindColumn
	KindParam
	KindBinary
	KindNary
	KindUnary
	KindIsNull
	KindIn
	KindList
	KindBetween
	KindFunc
	KindLiteral
	KindEmpty
)

var kindNames = [...]string{
	KindSelect: "select", KindUpdate: "update", KindInsert: "insert", KindDelete: "delete",
	KindCall: "call", KindSelectList: "select-list", KindFrom: "from", KindTable: "table",
	KindJoin: "join", KindWhere: "where", KindGroupBy: "group-by", KindHaving: "having",
	KindOrderBy: "order-by", KindOrderItem: "order-item", KindSet: "set", KindAssign: "assign",
	KindColumnList: "column-list", KindValues: "values", KindLimit: "limit", KindColumn: "column",
	KindParam: "param", KindBinary: "binary", KindNary: "nary", KindUnary: "unary",
	KindIsNull: "is-null", KindIn: "in", KindList: "list", KindBetween: "between",
	KindFunc: "func", KindLiteral: "literal", KindEmpty: "empty",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Node is a typed AST node. The meaning of Text depends on the kind: table
// or column name, operator, function or procedure name, join type, or raw
// literal text.
type Node struct {
	Kind    Kind
	Text    string
	Schema  string // Database schema of a table.
	Alias   string // Alias of a table, or table alias qualifying a column.
	Binding Binding

	// Not negates IS NULL, IN and BETWEEN nodes.
	Not bool
	// Distinct marks SELECT DISTINCT, Desc a descending order item and
	// Returns a procedure call with a return value placeholder.
	Distinct, Desc, Returns bool
	// Paren wraps the rendered node in parentheses.
	Paren bool

	parent   NodeID
	children []NodeID
}

// Tree is an arena of nodes. The zero value is not usable; call New.
// Builder methods record the first composition error and keep going, the
// error is reported by Err and by Render.
type Tree struct {
	nodes []Node
	err   error
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{nodes: make([]Node, 0, 32)}
}

// Err returns the first composition error.
func (t *Tree) Err() error { return t.err }

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Add stores a detached copy of n and returns its id.
func (t *Tree) Add(n Node) NodeID {
	n.parent = None
	n.children = nil
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// Node returns the node stored at id. The pointer is valid until the next
// Add.
func (t *Tree) Node(id NodeID) *Node {
	if !t.valid(id) {
		return nil
	}
	return &t.nodes[id]
}

// Parent returns the parent of id, or None.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return None
	}
	return t.nodes[id].parent
}

// Children returns the ordered children of id.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].children
}

// Append attaches children to parent in order. A child that already has a
// parent, an unknown id, or a cycle is a composition error.
func (t *Tree) Append(parent NodeID, children ...NodeID) NodeID {
	if !t.valid(parent) {
		t.fail("append to unknown node %d", parent)
		return parent
	}
	for _, c := range children {
		switch {
		case c == None:
			continue
		case !t.valid(c):
			t.fail("append unknown node %d", c)
		case t.nodes[c].parent != None:
			t.fail("node %d (%s) is already a child of node %d", c, t.nodes[c].Kind, t.nodes[c].parent)
		case t.ancestorOf(c, parent):
			t.fail("appending node %d to node %d creates a cycle", c, parent)
		default:
			t.nodes[c].parent = parent
			t.nodes[parent].children = append(t.nodes[parent].children, c)
		}
	}
	return parent
}

// Copy deep-copies the sub-tree rooted at id and returns the detached copy.
func (t *Tree) Copy(id NodeID) NodeID {
	return t.Graft(t, id)
}

// Graft deep-copies the sub-tree rooted at id in src into t and returns the
// detached copy. src may be t itself.
func (t *Tree) Graft(src *Tree, id NodeID) NodeID {
	if !src.valid(id) {
		t.fail("copy unknown node %d", id)
		return None
	}
	n := src.nodes[id]
	kids := append([]NodeID(nil), n.children...)
	c := t.Add(n)
	for _, k := range kids {
		t.Append(c, t.Graft(src, k))
	}
	return c
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// ancestorOf reports whether a is id or one of its ancestors.
func (t *Tree) ancestorOf(a, id NodeID) bool {
	for ; id != None; id = t.nodes[id].parent {
		if id == a {
			return true
		}
	}
	return false
}

func (t *Tree) fail(format string, args ...any) {
	if t.err == nil {
		t.err = strata.NewTranslationError("sqlast: "+format, args...)
	}
}

func (t *Tree) node(n Node, children ...NodeID) NodeID {
	return t.Append(t.Add(n), children...)
}

// Select returns a SELECT statement node. Clause children render in the
// order given: select list, FROM, WHERE, GROUP BY, HAVING, ORDER BY, limit.
func (t *Tree) Select(distinct bool, clauses ...NodeID) NodeID {
	return t.node(Node{Kind: KindSelect, Distinct: distinct}, clauses...)
}

// Update returns an UPDATE statement node over a table, a SET clause and an
// optional WHERE clause.
func (t *Tree) Update(table, set, where NodeID) NodeID {
	return t.node(Node{Kind: KindUpdate}, table, set, where)
}

// Insert returns an INSERT statement node.
func (t *Tree) Insert(table, columns, values NodeID) NodeID {
	return t.node(Node{Kind: KindInsert}, table, columns, values)
}

// Delete returns a DELETE statement node.
func (t *Tree) Delete(table, where NodeID) NodeID {
	return t.node(Node{Kind: KindDelete}, table, where)
}

// Call returns a stored procedure call node. When returns is set the first
// argument is the return value placeholder.
func (t *Tree) Call(name string, returns bool, args ...NodeID) NodeID {
	return t.node(Node{Kind: KindCall, Text: name, Returns: returns}, args...)
}

// SelectList returns the list of selected expressions.
func (t *Tree) SelectList(exprs ...NodeID) NodeID {
	return t.node(Node{Kind: KindSelectList}, exprs...)
}

// From returns a FROM clause.
func (t *Tree) From(items ...NodeID) NodeID {
	return t.node(Node{Kind: KindFrom}, items...)
}

// Table returns a table reference.
func (t *Tree) Table(schema, name, alias string) NodeID {
	return t.Add(Node{Kind: KindTable, Schema: schema, Text: name, Alias: alias})
}

// Join returns a join of left and right on cond. typ is the join keyword,
// "JOIN" or "LEFT JOIN".
func (t *Tree) Join(typ string, left, right, cond NodeID) NodeID {
	return t.node(Node{Kind: KindJoin, Text: typ}, left, right, cond)
}

// Where returns a WHERE clause.
func (t *Tree) Where(cond NodeID) NodeID { return t.node(Node{Kind: KindWhere}, cond) }

// GroupBy returns a GROUP BY clause.
func (t *Tree) GroupBy(exprs ...NodeID) NodeID { return t.node(Node{Kind: KindGroupBy}, exprs...) }

// Having returns a HAVING clause.
func (t *Tree) Having(cond NodeID) NodeID { return t.node(Node{Kind: KindHaving}, cond) }

// OrderBy returns an ORDER BY clause of order items.
func (t *Tree) OrderBy(items ...NodeID) NodeID { return t.node(Node{Kind: KindOrderBy}, items...) }

// OrderItem returns a single ordering.
func (t *Tree) OrderItem(expr NodeID, desc bool) NodeID {
	return t.node(Node{Kind: KindOrderItem, Desc: desc}, expr)
}

// Set returns the SET clause of an UPDATE.
func (t *Tree) Set(assigns ...NodeID) NodeID { return t.node(Node{Kind: KindSet}, assigns...) }

// Assign returns "column = value".
func (t *Tree) Assign(column, value NodeID) NodeID {
	return t.node(Node{Kind: KindAssign}, column, value)
}

// ColumnList returns the parenthesized column list of an INSERT.
func (t *Tree) ColumnList(columns ...NodeID) NodeID {
	return t.node(Node{Kind: KindColumnList}, columns...)
}

// Values returns the VALUES clause of an INSERT.
func (t *Tree) Values(values ...NodeID) NodeID { return t.node(Node{Kind: KindValues}, values...) }

// Limit returns a paging clause rendered verbatim.
func (t *Tree) Limit(text string) NodeID { return t.Add(Node{Kind: KindLimit, Text: text}) }

// Column returns a column reference, qualified by alias when not empty.
func (t *Tree) Column(alias, name string) NodeID {
	return t.Add(Node{Kind: KindColumn, Alias: alias, Text: name})
}

// Param returns a parameter placeholder carrying its binding.
func (t *Tree) Param(b Binding) NodeID { return t.Add(Node{Kind: KindParam, Binding: b}) }

// Binary returns "lhs op rhs".
func (t *Tree) Binary(op string, lhs, rhs NodeID) NodeID {
	return t.node(Node{Kind: KindBinary, Text: op}, lhs, rhs)
}

// Nary joins operands with a logical operator (AND, OR).
func (t *Tree) Nary(op string, operands ...NodeID) NodeID {
	return t.node(Node{Kind: KindNary, Text: op}, operands...)
}

// Unary returns a prefix operator applied to operand (NOT, -).
func (t *Tree) Unary(op string, operand NodeID) NodeID {
	return t.node(Node{Kind: KindUnary, Text: op}, operand)
}

// IsNull returns "expr IS [NOT] NULL".
func (t *Tree) IsNull(expr NodeID, not bool) NodeID {
	return t.node(Node{Kind: KindIsNull, Not: not}, expr)
}

// In returns "expr [NOT] IN list".
func (t *Tree) In(expr, list NodeID, not bool) NodeID {
	return t.node(Node{Kind: KindIn, Not: not}, expr, list)
}

// List returns a parenthesized list.
func (t *Tree) List(items ...NodeID) NodeID { return t.node(Node{Kind: KindList}, items...) }

// Between returns "expr [NOT] BETWEEN lo AND hi".
func (t *Tree) Between(expr, lo, hi NodeID, not bool) NodeID {
	return t.node(Node{Kind: KindBetween, Not: not}, expr, lo, hi)
}

// Func returns a function call.
func (t *Tree) Func(name string, args ...NodeID) NodeID {
	return t.node(Node{Kind: KindFunc, Text: name}, args...)
}

// Literal returns raw SQL text.
func (t *Tree) Literal(text string) NodeID { return t.Add(Node{Kind: KindLiteral, Text: text}) }

// Empty returns a node that renders nothing.
func (t *Tree) Empty() NodeID { return t.Add(Node{Kind: KindEmpty}) }

// Paren marks id to render inside parentheses and returns it.
func (t *Tree) Paren(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		n.Paren = true
	}
	return id
}
