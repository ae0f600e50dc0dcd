package exp

// Rewriter is a pure tree transform applied to a qualifier before it is
// translated. Dialect adapters supply rewriters for syntax they cannot
// accept as is.
type Rewriter interface {
	Rewrite(*Expression) *Expression
}

// RewriterFunc adapts a function to the Rewriter interface.
type RewriterFunc func(*Expression) *Expression

// Rewrite implements Rewriter.
func (f RewriterFunc) Rewrite(e *Expression) *Expression { return f(e) }

// Chain applies rewriters in order. Nil rewriters are skipped.
func Chain(rs ...Rewriter) Rewriter {
	return RewriterFunc(func(e *Expression) *Expression {
		for _, r := range rs {
			if r != nil {
				e = r.Rewrite(e)
			}
		}
		return e
	})
}

// Transform returns a copy of e where every node, visited children first,
// is replaced by fn(node). The input tree is not modified.
func Transform(e *Expression, fn func(*Expression) *Expression) *Expression {
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
			c.Operands[i] = Transform(op, fn)
		}
	}
	return fn(&c)
}

// SplitIn returns a rewriter that breaks IN lists longer than max elements
// into a disjunction of IN predicates of at most max elements each:
//
//	x IN (v1..vN)  =>  (x IN (v1..vMax) OR x IN (vMax+1..) OR ...)
//
// NOT IN lists become a conjunction of NOT IN predicates. The rewrite is
// semantically equivalent to the original predicate.
func SplitIn(max int) Rewriter {
	return RewriterFunc(func(e *Expression) *Expression {
		if max <= 0 {
			return e
		}
		return Transform(e, func(n *Expression) *Expression {
			if (n.Kind != KindIn && n.Kind != KindNotIn) || len(n.Operands) != 2 {
				return n
			}
			list := n.Operands[1]
			if list.Kind != KindList || len(list.Values) <= max {
				return n
			}
			parts := make([]*Expression, 0, (len(list.Values)+max-1)/max)
			for start := 0; start < len(list.Values); start += max {
				end := min(start+max, len(list.Values))
				parts = append(parts, &Expression{
					Kind:     n.Kind,
					Operands: []*Expression{n.Operands[0].Copy(), List(list.Values[start:end:end]...)},
				})
			}
			if n.Kind == KindNotIn {
				return &Expression{Kind: KindAnd, Operands: parts}
			}
			return &Expression{Kind: KindOr, Operands: parts}
		})
	})
}
