package pkgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
)

// Sequence generates keys from one database sequence per entity. Sequences
// are created with an increment equal to the cache size, so every value
// read from a sequence reserves a whole block.
type Sequence struct {
	syntax    dialect.SequenceSyntax
	cacheSize int
	log       *sql.QueryLogger
	ranges    ranges
}

var _ Generator = (*Sequence)(nil)

// NewSequence returns a sequence generator for an adapter with sequence
// support.
func NewSequence(a dialect.Adapter, cacheSize int, log *sql.QueryLogger) *Sequence {
	return &Sequence{syntax: a.Sequences(), cacheSize: max(cacheSize, 1), log: log}
}

// Generate implements Generator.
func (s *Sequence) Generate(ctx context.Context, ex dialect.ExecQuerier, e *schema.Entity) (any, error) {
	size := cacheSize(e, s.cacheSize)
	return s.ranges.next(e.Name, size, func() (int64, error) {
		query := s.syntax.NextValue(e.Sequence())
		s.log.LogStatement(ctx, query, nil)
		v, err := sql.QueryInt64(ctx, ex, query)
		if err != nil {
			return 0, fmt.Errorf("pkgen: sequence %s: %w", e.Sequence(), err)
		}
		return v, nil
	})
}

// PostInsert implements Generator.
func (*Sequence) PostInsert() bool { return false }

// SetupStatements implements Generator.
func (s *Sequence) SetupStatements(entities []*schema.Entity) []string {
	stmts := make([]string, 0, len(entities))
	for _, name := range s.names(entities) {
		stmts = append(stmts, s.create(name, entities))
	}
	return stmts
}

// DropStatements implements Generator.
func (s *Sequence) DropStatements(entities []*schema.Entity) []string {
	stmts := make([]string, 0, len(entities))
	for _, name := range s.names(entities) {
		stmts = append(stmts, s.syntax.Drop(name))
	}
	return stmts
}

// Setup creates the sequences that do not exist yet.
func (s *Sequence) Setup(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error {
	existing, err := s.existing(ctx, ex)
	if err != nil {
		return err
	}
	for _, name := range s.names(entities) {
		if existing[strings.ToLower(name)] {
			continue
		}
		query := s.create(name, entities)
		s.log.LogStatement(ctx, query, nil)
		if err := ex.Exec(ctx, query, []any{}, nil); err != nil {
			return fmt.Errorf("pkgen: create sequence %s: %w", name, err)
		}
	}
	return nil
}

// Teardown drops the existing sequences and forgets their cached blocks.
func (s *Sequence) Teardown(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error {
	existing, err := s.existing(ctx, ex)
	if err != nil {
		return err
	}
	for _, name := range s.names(entities) {
		if !existing[strings.ToLower(name)] {
			continue
		}
		query := s.syntax.Drop(name)
		s.log.LogStatement(ctx, query, nil)
		if err := ex.Exec(ctx, query, []any{}, nil); err != nil {
			return fmt.Errorf("pkgen: drop sequence %s: %w", name, err)
		}
	}
	s.ranges.reset(entities)
	return nil
}

// names returns the distinct sequence names of entities in input order.
func (s *Sequence) names(entities []*schema.Entity) []string {
	seen := make(map[string]bool, len(entities))
	var names []string
	for _, e := range entities {
		if name := e.Sequence(); !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// create renders the CREATE SEQUENCE of name. Entities sharing a sequence
// share its increment, the largest cache size among them.
func (s *Sequence) create(name string, entities []*schema.Entity) string {
	increment := 0
	for _, e := range entities {
		if e.Sequence() == name {
			increment = max(increment, cacheSize(e, s.cacheSize))
		}
	}
	return s.syntax.Create(name, InitialValue, increment)
}

func (s *Sequence) existing(ctx context.Context, ex dialect.ExecQuerier) (map[string]bool, error) {
	query := s.syntax.List()
	s.log.LogStatement(ctx, query, nil)
	var rows sql.Rows
	if err := ex.Query(ctx, query, []any{}, &rows); err != nil {
		return nil, fmt.Errorf("pkgen: list sequences: %w", err)
	}
	defer rows.Close()
	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("pkgen: list sequences: %w", err)
		}
		names[strings.ToLower(strings.TrimSpace(name))] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pkgen: list sequences: %w", err)
	}
	return names, nil
}
