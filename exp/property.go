package exp

// Property is a typed object path that provides predicate methods.
// It removes the need to spell Path(...) in every qualifier.
//
// Usage:
//
//	var ArtistName = exp.Property[string]("artistName")
//	q.Qualifier = exp.And(ArtistName.Like("P%"), exp.Property[int64]("paintings.estimatedPrice").Gt(100))
type Property[T any] string

// Name returns the property path.
func (p Property[T]) Name() string { return string(p) }

// Path returns the path expression of the property.
func (p Property[T]) Path() *Expression { return Path(string(p)) }

// Outer returns the property with its relationship segments joined as
// outer joins.
func (p Property[T]) Outer() Property[T] {
	path := string(p)
	out := make([]byte, 0, len(path)+4)
	for i := 0; i < len(path); i++ {
		if path[i] == '.' && (i == 0 || path[i-1] != '+') {
			out = append(out, '+')
		}
		out = append(out, path[i])
	}
	return Property[T](out)
}

// Eq returns a predicate that checks if the property equals the given value.
func (p Property[T]) Eq(v T) *Expression { return Eq(p.Path(), v) }

// Ne returns a predicate that checks if the property does not equal the given value.
func (p Property[T]) Ne(v T) *Expression { return Ne(p.Path(), v) }

// Lt returns a predicate that checks if the property is less than the given value.
func (p Property[T]) Lt(v T) *Expression { return Lt(p.Path(), v) }

// Le returns a predicate that checks if the property is less than or equal to the given value.
func (p Property[T]) Le(v T) *Expression { return Le(p.Path(), v) }

// Gt returns a predicate that checks if the property is greater than the given value.
func (p Property[T]) Gt(v T) *Expression { return Gt(p.Path(), v) }

// Ge returns a predicate that checks if the property is greater than or equal to the given value.
func (p Property[T]) Ge(v T) *Expression { return Ge(p.Path(), v) }

// Between returns a predicate that checks if the property lies in [lo, hi].
func (p Property[T]) Between(lo, hi T) *Expression { return Between(p.Path(), lo, hi) }

// In returns a predicate that checks if the property value is in the given list.
func (p Property[T]) In(vs ...T) *Expression { return In(p.Path(), toAny(vs)...) }

// NotIn returns a predicate that checks if the property value is not in the given list.
func (p Property[T]) NotIn(vs ...T) *Expression { return NotIn(p.Path(), toAny(vs)...) }

// Like returns a predicate that matches the property against a LIKE pattern.
func (p Property[T]) Like(pattern string) *Expression { return Like(p.Path(), pattern) }

// LikeIgnoreCase returns a case-insensitive LIKE predicate.
func (p Property[T]) LikeIgnoreCase(pattern string) *Expression {
	return LikeIgnoreCase(p.Path(), pattern)
}

// IsNull returns a predicate that checks if the property is NULL.
func (p Property[T]) IsNull() *Expression { return Eq(p.Path(), nil) }

// NotNull returns a predicate that checks if the property is not NULL.
func (p Property[T]) NotNull() *Expression { return Ne(p.Path(), nil) }

func toAny[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
