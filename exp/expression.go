// Package exp models the abstract boolean and arithmetic expressions used as
// query qualifiers, orderings and select columns.
//
// Expressions are plain trees. They never reference a database: object paths
// ("toArtist.artistName") are resolved against the schema registry by the
// translator, which also assigns table aliases.
package exp

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the type of an expression node.
type Kind uint8

// Expression kinds.
const (
	KindAnd Kind = iota + 1
	KindOr
	KindNot
	KindEqual
	KindNotEqual
	KindLess
	KindLessOrEqual
	KindGreater
	KindGreaterOrEqual
	KindLike
	KindNotLike
	KindLikeIgnoreCase
	KindNotLikeIgnoreCase
	KindIn
	KindNotIn
	KindBetween
	KindNotBetween
	KindAdd
	KindSubtract
	KindMultiply
	KindDivide
	KindNegate
	KindObjPath
	KindDbPath
	KindScalar
	KindList
	KindTrue
	KindFalse
	KindFunction
)

var kindNames = map[Kind]string{
	KindAnd: "and", KindOr: "or", KindNot: "not",
	KindEqual: "=", KindNotEqual: "!=", KindLess: "<", KindLessOrEqual: "<=",
	KindGreater: ">", KindGreaterOrEqual: ">=",
	KindLike: "like", KindNotLike: "not like",
	KindLikeIgnoreCase: "likeIgnoreCase", KindNotLikeIgnoreCase: "not likeIgnoreCase",
	KindIn: "in", KindNotIn: "not in", KindBetween: "between", KindNotBetween: "not between",
	KindAdd: "+", KindSubtract: "-", KindMultiply: "*", KindDivide: "/", KindNegate: "-",
	KindObjPath: "obj:", KindDbPath: "db:", KindScalar: "scalar", KindList: "list",
	KindTrue: "true", KindFalse: "false", KindFunction: "function",
}

// String returns the operator name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsComparison reports whether the kind is a binary comparison.
func (k Kind) IsComparison() bool {
	return k >= KindEqual && k <= KindNotLikeIgnoreCase
}

// Expression is a node of a qualifier tree.
type Expression struct {
	Kind     Kind
	Operands []*Expression
	// Path is the dotted path of KindObjPath and KindDbPath nodes. A segment
	// ending with "+" requests an outer join.
	Path string
	// Value is the value of a KindScalar node. A nil Value is the NULL literal.
	Value any
	// Values holds the members of a KindList node.
	Values []any
	// Name is the function name of a KindFunction node.
	Name string
}

// operand converts v to an expression: expressions are used as is, any
// other value becomes a scalar.
func operand(v any) *Expression {
	if e, ok := v.(*Expression); ok {
		return e
	}
	return Val(v)
}

// Path returns an object path expression ("toArtist.artistName").
func Path(path string) *Expression {
	return &Expression{Kind: KindObjPath, Path: path}
}

// DbPath returns a database path expression ("toArtist.ARTIST_NAME"): the
// last segment names a column instead of a property.
func DbPath(path string) *Expression {
	return &Expression{Kind: KindDbPath, Path: path}
}

// Val returns a scalar expression.
func Val(v any) *Expression {
	return &Expression{Kind: KindScalar, Value: v}
}

// Null returns the NULL literal. Used as a whole qualifier it means
// "no filter".
func Null() *Expression {
	return &Expression{Kind: KindScalar}
}

// List returns a list literal.
func List(vs ...any) *Expression {
	return &Expression{Kind: KindList, Values: vs}
}

// True returns the boolean literal TRUE.
func True() *Expression { return &Expression{Kind: KindTrue} }

// False returns the boolean literal FALSE.
func False() *Expression { return &Expression{Kind: KindFalse} }

// Func returns a function call expression.
func Func(name string, args ...any) *Expression {
	e := &Expression{Kind: KindFunction, Name: name}
	for _, a := range args {
		e.Operands = append(e.Operands, operand(a))
	}
	return e
}

func binary(k Kind, lhs, rhs any) *Expression {
	return &Expression{Kind: k, Operands: []*Expression{operand(lhs), operand(rhs)}}
}

// Eq returns lhs = rhs. A nil rhs translates to IS NULL.
func Eq(lhs, rhs any) *Expression { return binary(KindEqual, lhs, rhs) }

// Ne returns lhs <> rhs. A nil rhs translates to IS NOT NULL.
func Ne(lhs, rhs any) *Expression { return binary(KindNotEqual, lhs, rhs) }

// Lt returns lhs < rhs.
func Lt(lhs, rhs any) *Expression { return binary(KindLess, lhs, rhs) }

// Le returns lhs <= rhs.
func Le(lhs, rhs any) *Expression { return binary(KindLessOrEqual, lhs, rhs) }

// Gt returns lhs > rhs.
func Gt(lhs, rhs any) *Expression { return binary(KindGreater, lhs, rhs) }

// Ge returns lhs >= rhs.
func Ge(lhs, rhs any) *Expression { return binary(KindGreaterOrEqual, lhs, rhs) }

// Like returns lhs LIKE pattern.
func Like(lhs any, pattern string) *Expression { return binary(KindLike, lhs, pattern) }

// NotLike returns lhs NOT LIKE pattern.
func NotLike(lhs any, pattern string) *Expression { return binary(KindNotLike, lhs, pattern) }

// LikeIgnoreCase returns a case-insensitive LIKE.
func LikeIgnoreCase(lhs any, pattern string) *Expression {
	return binary(KindLikeIgnoreCase, lhs, pattern)
}

// NotLikeIgnoreCase returns a case-insensitive NOT LIKE.
func NotLikeIgnoreCase(lhs any, pattern string) *Expression {
	return binary(KindNotLikeIgnoreCase, lhs, pattern)
}

// In returns lhs IN (vs...).
func In(lhs any, vs ...any) *Expression {
	return &Expression{Kind: KindIn, Operands: []*Expression{operand(lhs), List(vs...)}}
}

// NotIn returns lhs NOT IN (vs...).
func NotIn(lhs any, vs ...any) *Expression {
	return &Expression{Kind: KindNotIn, Operands: []*Expression{operand(lhs), List(vs...)}}
}

// Between returns lhs BETWEEN lo AND hi.
func Between(lhs, lo, hi any) *Expression {
	return &Expression{Kind: KindBetween, Operands: []*Expression{operand(lhs), operand(lo), operand(hi)}}
}

// NotBetween returns lhs NOT BETWEEN lo AND hi.
func NotBetween(lhs, lo, hi any) *Expression {
	return &Expression{Kind: KindNotBetween, Operands: []*Expression{operand(lhs), operand(lo), operand(hi)}}
}

// Add returns lhs + rhs.
func Add(lhs, rhs any) *Expression { return binary(KindAdd, lhs, rhs) }

// Sub returns lhs - rhs.
func Sub(lhs, rhs any) *Expression { return binary(KindSubtract, lhs, rhs) }

// Mul returns lhs * rhs.
func Mul(lhs, rhs any) *Expression { return binary(KindMultiply, lhs, rhs) }

// Div returns lhs / rhs.
func Div(lhs, rhs any) *Expression { return binary(KindDivide, lhs, rhs) }

// Neg returns -e.
func Neg(e any) *Expression {
	return &Expression{Kind: KindNegate, Operands: []*Expression{operand(e)}}
}

// Not negates e.
func Not(e *Expression) *Expression {
	return &Expression{Kind: KindNot, Operands: []*Expression{e}}
}

// And joins the non-nil expressions with AND. A single expression is
// returned as is.
func And(es ...*Expression) *Expression { return junction(KindAnd, es) }

// Or joins the non-nil expressions with OR.
func Or(es ...*Expression) *Expression { return junction(KindOr, es) }

func junction(k Kind, es []*Expression) *Expression {
	ops := make([]*Expression, 0, len(es))
	for _, e := range es {
		if e != nil {
			ops = append(ops, e)
		}
	}
	switch len(ops) {
	case 0:
		return nil
	case 1:
		return ops[0]
	}
	return &Expression{Kind: k, Operands: ops}
}

// AndExp returns e AND other, skipping nil sides.
func (e *Expression) AndExp(other *Expression) *Expression { return And(e, other) }

// OrExp returns e OR other, skipping nil sides.
func (e *Expression) OrExp(other *Expression) *Expression { return Or(e, other) }

// IsNullLiteral reports whether e is the NULL scalar.
func (e *Expression) IsNullLiteral() bool {
	return e != nil && e.Kind == KindScalar && e.Value == nil
}

// IsPath reports whether e is an object or database path.
func (e *Expression) IsPath() bool {
	return e != nil && (e.Kind == KindObjPath || e.Kind == KindDbPath)
}

// Copy returns a deep copy of e. Scalar values are shared.
func (e *Expression) Copy() *Expression {
	if e == nil {
		return nil
	}
	c := *e
	if e.Values != nil {
		c.Values = append([]any(nil), e.Values...)
	}
	if e.Operands != nil {
		c.Operands = make([]*Expression, len(e.Operands))
		for i, op := range e.Operands {
			c.Operands[i] = op.Copy()
		}
	}
	return &c
}

// String returns a canonical, deterministic rendering of e. Equal trees
// always produce equal strings, which makes it usable as a cache key.
func (e *Expression) String() string {
	w := writer{}
	w.expr(e)
	return w.sb.String()
}

// Key returns the canonical form of e with the Go type of every scalar
// value, so equal keys translate to statements with equal bindings.
func (e *Expression) Key() string {
	w := writer{typed: true}
	w.expr(e)
	return w.sb.String()
}

// arity lists the operand counts of kinds rendered in a fixed layout.
var arity = map[Kind]int{
	KindNot: 1, KindNegate: 1, KindBetween: 3, KindNotBetween: 3,
}

type writer struct {
	sb    strings.Builder
	typed bool
}

func (w *writer) expr(e *Expression) {
	sb := &w.sb
	if e == nil {
		sb.WriteString("<nil>")
		return
	}
	if n, ok := arity[e.Kind]; ok && len(e.Operands) != n {
		// Malformed trees fail translation; render them without panicking.
		sb.WriteString(e.Kind.String())
		w.operands(e.Operands)
		return
	}
	switch e.Kind {
	case KindObjPath:
		sb.WriteString(e.Path)
	case KindDbPath:
		sb.WriteString("db:")
		sb.WriteString(e.Path)
	case KindScalar:
		w.scalar(e.Value)
	case KindList:
		sb.WriteByte('(')
		for i, v := range e.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			w.scalar(v)
		}
		sb.WriteByte(')')
	case KindTrue, KindFalse:
		sb.WriteString(e.Kind.String())
	case KindNot:
		sb.WriteString("not ")
		w.nested(e.Operands[0])
	case KindNegate:
		sb.WriteByte('-')
		w.nested(e.Operands[0])
	case KindFunction:
		sb.WriteString(e.Name)
		w.operands(e.Operands)
	case KindBetween, KindNotBetween:
		w.nested(e.Operands[0])
		sb.WriteByte(' ')
		sb.WriteString(e.Kind.String())
		sb.WriteByte(' ')
		w.nested(e.Operands[1])
		sb.WriteString(" and ")
		w.nested(e.Operands[2])
	default:
		for i, op := range e.Operands {
			if i > 0 {
				sb.WriteByte(' ')
				sb.WriteString(e.Kind.String())
				sb.WriteByte(' ')
			}
			w.nested(op)
		}
	}
}

func (w *writer) operands(ops []*Expression) {
	w.sb.WriteByte('(')
	for i, op := range ops {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.expr(op)
	}
	w.sb.WriteByte(')')
}

func (w *writer) nested(e *Expression) {
	if e != nil && len(e.Operands) > 1 {
		w.sb.WriteByte('(')
		w.expr(e)
		w.sb.WriteByte(')')
		return
	}
	w.expr(e)
}

func (w *writer) scalar(v any) {
	sb := &w.sb
	switch v := v.(type) {
	case nil:
		sb.WriteString("null")
		return
	case string:
		fmt.Fprintf(sb, "%q", v)
	case time.Time:
		sb.WriteString(v.UTC().Format(time.RFC3339Nano))
	case []byte:
		fmt.Fprintf(sb, "0x%x", v)
	default:
		fmt.Fprintf(sb, "%v", v)
	}
	if w.typed {
		fmt.Fprintf(sb, "::%T", v)
	}
}
