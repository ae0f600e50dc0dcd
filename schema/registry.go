package schema

import (
	"fmt"
	"maps"
	"slices"
)

// Registry is the read-mostly entity descriptor provider. It is immutable
// after Build and safe for concurrent reads without locking.
type Registry struct {
	entities map[string]*Entity
	quote    bool
	names    []string
}

// Entity returns the descriptor of the named entity.
func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// MustEntity is like Entity but panics if the entity does not exist.
func (r *Registry) MustEntity(name string) *Entity {
	e, ok := r.entities[name]
	if !ok {
		panic(fmt.Sprintf("schema: unknown entity %q", name))
	}
	return e
}

// Entities returns all entities ordered by name.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, len(r.names))
	for i, n := range r.names {
		out[i] = r.entities[n]
	}
	return out
}

// QuoteIdentifiers reports whether identifiers of this schema are quoted.
// The flag applies to DDL and DML alike.
func (r *Registry) QuoteIdentifiers() bool {
	return r.quote
}

// Builder assembles a Registry.
type Builder struct {
	entities map[string]*Entity
	quote    bool
	errs     []error
}

// NewBuilder returns an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{entities: make(map[string]*Entity)}
}

// QuoteIdentifiers enables identifier quoting for the whole schema.
func (b *Builder) QuoteIdentifiers(quote bool) *Builder {
	b.quote = quote
	return b
}

// Add registers entities. Adding two entities with the same name is an error
// reported by Build.
func (b *Builder) Add(entities ...*Entity) *Builder {
	for _, e := range entities {
		if e == nil || e.Name == "" {
			b.errs = append(b.errs, fmt.Errorf("schema: entity without a name"))
			continue
		}
		if _, ok := b.entities[e.Name]; ok {
			b.errs = append(b.errs, fmt.Errorf("schema: duplicate entity %q", e.Name))
			continue
		}
		b.entities[e.Name] = e
	}
	return b
}

// Build validates the entities and returns the registry. A failed
// validation is returned as a *ValidationResult.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if res := validate(b.entities); res.HasErrors() {
		return nil, res
	}
	return &Registry{
		entities: maps.Clone(b.entities),
		quote:    b.quote,
		names:    sortedKeys(b.entities),
	}, nil
}

// MustBuild is like Build but panics on error. It is intended for tests and
// static schema definitions.
func (b *Builder) MustBuild() *Registry {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
