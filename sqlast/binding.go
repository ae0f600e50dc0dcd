package sqlast

import (
	"database/sql"

	"github.com/syssam/strata/schema"
)

// Direction is the direction of a bound parameter.
type Direction uint8

// Parameter directions.
const (
	In Direction = iota
	Out
	InOut
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Out:
		return "OUT"
	case InOut:
		return "INOUT"
	default:
		return "IN"
	}
}

// Binding is a value bound to one placeholder. For OUT and INOUT parameters
// Value is the destination pointer the driver writes into.
type Binding struct {
	Value     any
	Type      schema.Type
	Precision int
	Scale     int
	Direction Direction
	// Key names the batch row value the binding is refreshed from. Empty for
	// constants.
	Key string
}

// Statement is a rendered statement and its bindings in placeholder order.
type Statement struct {
	SQL      string
	Bindings []Binding
}

// Args returns the driver arguments. OUT and INOUT parameters are passed as
// sql.Out.
func (s Statement) Args() []any {
	args := make([]any, len(s.Bindings))
	for i, b := range s.Bindings {
		switch b.Direction {
		case Out:
			args[i] = sql.Out{Dest: b.Value}
		case InOut:
			args[i] = sql.Out{Dest: b.Value, In: true}
		default:
			args[i] = b.Value
		}
	}
	return args
}

// LogBindings returns the values to log. OUT parameters only receive values
// after execution and are left out.
func (s Statement) LogBindings() []any {
	args := make([]any, 0, len(s.Bindings))
	for _, b := range s.Bindings {
		if b.Direction != Out {
			args = append(args, b.Value)
		}
	}
	return args
}

// WithValues returns a copy of s whose bindings take their values from fn,
// keyed by Binding.Key. Bindings without a key keep their value.
func (s Statement) WithValues(fn func(key string) any) Statement {
	out := Statement{SQL: s.SQL, Bindings: make([]Binding, len(s.Bindings))}
	for i, b := range s.Bindings {
		if b.Key != "" {
			b.Value = fn(b.Key)
		}
		out.Bindings[i] = b
	}
	return out
}
