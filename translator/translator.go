// Package translator compiles logical queries, row mutation batches, stored
// procedure calls and schema DDL into rendered SQL for one dialect adapter.
//
//	tr := translator.New(adapter, registry, translator.WithCache(strata.NewMemoryCache(0)))
//	stmt, err := tr.Translate(ctx, &translator.SelectQuery{
//		Entity:    "Painting",
//		Qualifier: exp.Property[string]("toArtist.artistName").Like("P%"),
//	})
//
// Every query is translated into a sqlast tree first and rendered with the
// adapter's quoting and placeholder strategies. Table aliases (t0, t1, ...)
// are allocated in first-use order, so the same logical query always
// renders the same text.
package translator

import (
	"context"
	"log/slog"
	"slices"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/sqlast"
)

// Query is a logical statement that can be translated: *SelectQuery,
// *BatchQuery or *ProcedureQuery.
type Query interface {
	translate(context.Context, *Translator) (sqlast.Statement, error)
}

// Translator translates queries for one adapter and schema registry. It is
// safe for concurrent use.
type Translator struct {
	adapter  dialect.Adapter
	registry *schema.Registry
	cache    strata.Cache
	log      *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithCache caches rendered statements and batch templates.
func WithCache(c strata.Cache) Option {
	return func(t *Translator) {
		t.cache = c
	}
}

// WithLogger sets the logger used for translation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		t.log = l
	}
}

// New returns a translator for the given adapter and registry.
func New(a dialect.Adapter, r *schema.Registry, opts ...Option) *Translator {
	t := &Translator{adapter: a, registry: r, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Adapter returns the dialect adapter.
func (t *Translator) Adapter() dialect.Adapter { return t.adapter }

// Registry returns the schema registry.
func (t *Translator) Registry() *schema.Registry { return t.registry }

// Translate translates q into a statement with ordered bindings. Batches
// render their template bound to the first row.
func (t *Translator) Translate(ctx context.Context, q Query) (sqlast.Statement, error) {
	return q.translate(ctx, t)
}

// options returns the render options of the adapter. Quoting is a property
// of the registry and applies to DDL and DML alike.
func (t *Translator) options() sqlast.Options {
	opts := sqlast.Options{Placeholder: t.adapter.Placeholder}
	if t.registry.QuoteIdentifiers() {
		opts.Quote = t.adapter.QuoteIdentifier
	}
	return opts
}

// quote quotes a possibly qualified name when quoting is enabled.
func (t *Translator) quote(name string) string {
	if t.registry.QuoteIdentifiers() {
		return t.adapter.QuoteIdentifier(name)
	}
	return name
}

func (t *Translator) entity(name string) (*schema.Entity, error) {
	e, ok := t.registry.Entity(name)
	if !ok {
		return nil, strata.NewPathError(name, name, "unknown entity")
	}
	return e, nil
}

func (t *Translator) cached(ctx context.Context, key strata.CacheKey) (sqlast.Statement, bool) {
	if t.cache == nil {
		return sqlast.Statement{}, false
	}
	v, ok := t.cache.Get(ctx, key)
	if !ok {
		return sqlast.Statement{}, false
	}
	stmt, ok := v.(sqlast.Statement)
	if !ok {
		return sqlast.Statement{}, false
	}
	stmt.Bindings = slices.Clone(stmt.Bindings)
	return stmt, true
}

func (t *Translator) store(ctx context.Context, key strata.CacheKey, stmt sqlast.Statement) {
	if t.cache == nil {
		return
	}
	stmt.Bindings = slices.Clone(stmt.Bindings)
	t.cache.Set(ctx, key, stmt)
}

func (t *Translator) cacheKey(entity, op, query string) strata.CacheKey {
	return strata.CacheKey{Dialect: t.adapter.Name(), Entity: entity, Operation: op, Query: query}
}
