package translator

import (
	"context"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/sqlast"
)

// Param is a stored procedure parameter. OUT and INOUT parameters carry a
// pointer in Value that receives the result.
type Param struct {
	Name      string
	Value     any
	Type      schema.Type
	Precision int
	Scale     int
	Direction sqlast.Direction
}

// ProcedureQuery is a stored procedure call.
type ProcedureQuery struct {
	Name   string
	Schema string
	// Return, when set, receives the return value of the procedure and
	// renders as "? = call".
	Return *Param
	Params []Param
}

func (q *ProcedureQuery) translate(_ context.Context, t *Translator) (sqlast.Statement, error) {
	return t.Procedure(q)
}

// Procedure translates a call into "{[? =] call name(?, ...)}". Log the
// result with Statement.LogBindings, which leaves OUT parameters out.
func (t *Translator) Procedure(q *ProcedureQuery) (sqlast.Statement, error) {
	if q.Name == "" {
		return sqlast.Statement{}, strata.NewTranslationError("procedure without a name")
	}
	tree := sqlast.New()
	var args []sqlast.NodeID
	if q.Return != nil {
		r := *q.Return
		r.Direction = sqlast.Out
		args = append(args, tree.Param(binding(r)))
	}
	for _, p := range q.Params {
		args = append(args, tree.Param(binding(p)))
	}
	name := q.Name
	if q.Schema != "" {
		name = q.Schema + "." + name
	}
	return sqlast.Render(tree, tree.Call(name, q.Return != nil, args...), t.options())
}

func binding(p Param) sqlast.Binding {
	return sqlast.Binding{
		Value:     p.Value,
		Type:      p.Type,
		Precision: p.Precision,
		Scale:     p.Scale,
		Direction: p.Direction,
		Key:       p.Name,
	}
}
