package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/syssam/strata/exp"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/sqlast"
	"github.com/syssam/strata/translator"
)

// ParseFilters turns "path=value" filters into a conjunction of equalities
// over entity e. A path is a property name, or a column name prefixed with
// "db:". Values are converted to the column type; "null" matches NULL.
func ParseFilters(e *schema.Entity, filters []string) (*exp.Expression, error) {
	var es []*exp.Expression
	for _, f := range filters {
		path, raw, ok := strings.Cut(f, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, GeneralError("parsing filter", fmt.Errorf("%q is not of the form path=value", f))
		}
		var (
			col *schema.Column
			lhs *exp.Expression
		)
		if name, isDB := strings.CutPrefix(path, "db:"); isDB {
			col, ok = e.Column(name)
			lhs = exp.DbPath(name)
		} else {
			col, ok = e.ColumnForProperty(path)
			lhs = exp.Path(path)
		}
		if !ok {
			return nil, SchemaError("parsing filter", fmt.Errorf("entity %s has no %s", e.Name, path))
		}
		v, err := convert(col, raw)
		if err != nil {
			return nil, GeneralError("parsing filter", fmt.Errorf("%s: %w", path, err))
		}
		es = append(es, exp.Eq(lhs, v))
	}
	switch len(es) {
	case 0:
		return nil, nil
	case 1:
		return es[0], nil
	default:
		return exp.And(es...), nil
	}
}

func convert(c *schema.Column, s string) (any, error) {
	if strings.EqualFold(s, "null") {
		return nil, nil
	}
	switch c.Type {
	case schema.Boolean:
		return strconv.ParseBool(s)
	case schema.Bit, schema.TinyInt, schema.SmallInt, schema.Integer, schema.BigInt:
		return strconv.ParseInt(s, 10, 64)
	case schema.Real, schema.Float, schema.Double:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

// Select renders the SELECT of entity with the given filters.
func Select(ctx context.Context, tr *translator.Translator, entity string, filters []string, limit int) (sqlast.Statement, error) {
	e, ok := tr.Registry().Entity(entity)
	if !ok {
		return sqlast.Statement{}, SchemaError("rendering select", fmt.Errorf("unknown entity %q", entity))
	}
	qualifier, err := ParseFilters(e, filters)
	if err != nil {
		return sqlast.Statement{}, err
	}
	stmt, err := tr.Select(ctx, &translator.SelectQuery{Entity: e.Name, Qualifier: qualifier, Limit: limit})
	if err != nil {
		return sqlast.Statement{}, GeneralError("rendering select", err)
	}
	return stmt, nil
}

// WriteStatement writes the SQL of stmt followed by one comment line per
// binding.
func WriteStatement(w io.Writer, stmt sqlast.Statement) error {
	if _, err := fmt.Fprintln(w, stmt.SQL); err != nil {
		return err
	}
	for i, b := range stmt.Bindings {
		if _, err := fmt.Fprintf(w, "-- %d: %v (%s)\n", i+1, b.Value, b.Type); err != nil {
			return err
		}
	}
	return nil
}
