package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/pkgen"
	"github.com/syssam/strata/translator"
)

// Generator renders and applies the DDL of a schema.
type Generator struct {
	tr   *translator.Translator
	keys *pkgen.Provider
}

// NewGenerator returns a generator for the registry and adapter of tr.
func NewGenerator(tr *translator.Translator, keys *pkgen.Provider) *Generator {
	return &Generator{tr: tr, keys: keys}
}

// CreateStatements returns the statements creating the tables, their
// constraints and the key support objects.
func (g *Generator) CreateStatements() ([]string, error) {
	tables, err := g.tr.SchemaStatements()
	if err != nil {
		return nil, SchemaError("rendering tables", err)
	}
	return slices.Concat(tables, g.keys.SetupStatements(g.tr.Registry().Entities())), nil
}

// DropStatements returns the statements dropping the tables and the key
// support objects.
func (g *Generator) DropStatements() []string {
	return slices.Concat(g.tr.DropStatements(), g.keys.DropStatements(g.tr.Registry().Entities()))
}

// Create executes the table statements and sets up key generation. Key
// support objects that already exist are kept.
func (g *Generator) Create(ctx context.Context, ex dialect.ExecQuerier) error {
	tables, err := g.tr.SchemaStatements()
	if err != nil {
		return SchemaError("rendering tables", err)
	}
	if err := execAll(ctx, ex, tables); err != nil {
		return err
	}
	if err := g.keys.Setup(ctx, ex, g.tr.Registry().Entities()); err != nil {
		return GeneralError("setting up key generation", err)
	}
	return nil
}

// Drop executes the drop statements and tears down key generation.
func (g *Generator) Drop(ctx context.Context, ex dialect.ExecQuerier) error {
	if err := execAll(ctx, ex, g.tr.DropStatements()); err != nil {
		return err
	}
	if err := g.keys.Teardown(ctx, ex, g.tr.Registry().Entities()); err != nil {
		return GeneralError("tearing down key generation", err)
	}
	return nil
}

func execAll(ctx context.Context, ex dialect.ExecQuerier, stmts []string) error {
	for _, stmt := range stmts {
		if err := ex.Exec(ctx, stmt, []any{}, nil); err != nil {
			return GeneralError(fmt.Sprintf("executing %q", stmt), err)
		}
	}
	return nil
}

// WriteScript writes stmts as a SQL script, one statement per line.
func WriteScript(w io.Writer, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := fmt.Fprintf(w, "%s;\n", stmt); err != nil {
			return err
		}
	}
	return nil
}
