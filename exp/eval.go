package exp

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Values resolves object paths during in-memory evaluation. Keys are full
// paths as written in the expression ("toArtist.artistName").
type Values map[string]any

// Match evaluates e as a boolean against v. A nil expression matches
// everything, as does the NULL literal.
func (e *Expression) Match(v Values) (bool, error) {
	if e == nil || e.IsNullLiteral() {
		return true, nil
	}
	r, err := Evaluate(e, v)
	if err != nil {
		return false, err
	}
	b, ok := r.(bool)
	if !ok {
		return false, fmt.Errorf("exp: %s does not evaluate to a boolean", e)
	}
	return b, nil
}

// Evaluate computes the value of e against v.
func Evaluate(e *Expression, v Values) (any, error) {
	switch e.Kind {
	case KindObjPath, KindDbPath:
		return v[strings.ReplaceAll(e.Path, "+", "")], nil
	case KindScalar:
		return e.Value, nil
	case KindList:
		return e.Values, nil
	case KindTrue:
		return true, nil
	case KindFalse:
		return false, nil
	case KindAnd, KindOr:
		for _, op := range e.Operands {
			b, err := op.Match(v)
			if err != nil {
				return nil, err
			}
			if e.Kind == KindAnd && !b {
				return false, nil
			}
			if e.Kind == KindOr && b {
				return true, nil
			}
		}
		return e.Kind == KindAnd, nil
	case KindNot:
		b, err := e.Operands[0].Match(v)
		return !b, err
	}
	args := make([]any, len(e.Operands))
	for i, op := range e.Operands {
		r, err := Evaluate(op, v)
		if err != nil {
			return nil, err
		}
		args[i] = r
	}
	switch e.Kind {
	case KindEqual:
		return equal(args[0], args[1]), nil
	case KindNotEqual:
		return !equal(args[0], args[1]), nil
	case KindLess, KindLessOrEqual, KindGreater, KindGreaterOrEqual:
		c, ok := compare(args[0], args[1])
		if !ok {
			return false, nil
		}
		switch e.Kind {
		case KindLess:
			return c < 0, nil
		case KindLessOrEqual:
			return c <= 0, nil
		case KindGreater:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case KindLike, KindNotLike, KindLikeIgnoreCase, KindNotLikeIgnoreCase:
		s, ok1 := args[0].(string)
		p, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		ignoreCase := e.Kind == KindLikeIgnoreCase || e.Kind == KindNotLikeIgnoreCase
		m := likePattern(p, ignoreCase).MatchString(s)
		if e.Kind == KindNotLike || e.Kind == KindNotLikeIgnoreCase {
			return !m, nil
		}
		return m, nil
	case KindIn, KindNotIn:
		list, _ := args[1].([]any)
		found := false
		for _, item := range list {
			if equal(args[0], item) {
				found = true
				break
			}
		}
		if e.Kind == KindNotIn {
			return !found, nil
		}
		return found, nil
	case KindBetween, KindNotBetween:
		lo, ok1 := compare(args[0], args[1])
		hi, ok2 := compare(args[0], args[2])
		in := ok1 && ok2 && lo >= 0 && hi <= 0
		if e.Kind == KindNotBetween {
			return !in, nil
		}
		return in, nil
	case KindAdd, KindSubtract, KindMultiply, KindDivide:
		a, ok1 := toFloat(args[0])
		b, ok2 := toFloat(args[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("exp: non-numeric operand in %s", e)
		}
		switch e.Kind {
		case KindAdd:
			return a + b, nil
		case KindSubtract:
			return a - b, nil
		case KindMultiply:
			return a * b, nil
		default:
			return a / b, nil
		}
	case KindNegate:
		a, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("exp: non-numeric operand in %s", e)
		}
		return -a, nil
	case KindFunction:
		return evalFunc(e.Name, args)
	}
	return nil, fmt.Errorf("exp: cannot evaluate %s", e.Kind)
}

func evalFunc(name string, args []any) (any, error) {
	switch strings.ToUpper(name) {
	case "UPPER":
		if s, ok := args[0].(string); ok {
			return strings.ToUpper(s), nil
		}
	case "LOWER":
		if s, ok := args[0].(string); ok {
			return strings.ToLower(s), nil
		}
	case "LENGTH":
		if s, ok := args[0].(string); ok {
			return float64(len([]rune(s))), nil
		}
	case "ABS":
		if f, ok := toFloat(args[0]); ok {
			return math.Abs(f), nil
		}
	default:
		return nil, fmt.Errorf("exp: function %s is not supported in memory", name)
	}
	return nil, nil
}

func likePattern(p string, ignoreCase bool) *regexp.Regexp {
	var sb strings.Builder
	if ignoreCase {
		sb.WriteString("(?i)")
	}
	sb.WriteString("(?s)^")
	for _, r := range p {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Equal(y)
		}
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
