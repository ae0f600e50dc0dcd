package pkgen

import (
	"context"

	"github.com/google/uuid"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// Identity leaves key generation to an identity (auto-increment) column.
// INSERT statements omit the key column and the commit pipeline reads the
// generated value back.
type Identity struct{}

var _ Generator = Identity{}

// Generate returns nil: the key is assigned by the INSERT.
func (Identity) Generate(context.Context, dialect.ExecQuerier, *schema.Entity) (any, error) {
	return nil, nil
}

// PostInsert implements Generator.
func (Identity) PostInsert() bool { return true }

// SetupStatements implements Generator. Identity columns are declared by
// CREATE TABLE.
func (Identity) SetupStatements([]*schema.Entity) []string { return nil }

// DropStatements implements Generator.
func (Identity) DropStatements([]*schema.Entity) []string { return nil }

// Setup implements Generator.
func (Identity) Setup(context.Context, dialect.ExecQuerier, []*schema.Entity) error { return nil }

// Teardown implements Generator.
func (Identity) Teardown(context.Context, dialect.ExecQuerier, []*schema.Entity) error { return nil }

// UUID generates random version 4 UUIDs without a database round trip.
// Binary key columns receive the 16 raw bytes, other columns the string
// form.
type UUID struct{}

var _ Generator = UUID{}

// Generate implements Generator.
func (UUID) Generate(_ context.Context, _ dialect.ExecQuerier, e *schema.Entity) (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	if pk := e.PrimaryKey(); len(pk) == 1 && (pk[0].Type == schema.Binary || pk[0].Type == schema.VarBinary) {
		return id[:], nil
	}
	return id.String(), nil
}

// PostInsert implements Generator.
func (UUID) PostInsert() bool { return false }

// SetupStatements implements Generator.
func (UUID) SetupStatements([]*schema.Entity) []string { return nil }

// DropStatements implements Generator.
func (UUID) DropStatements([]*schema.Entity) []string { return nil }

// Setup implements Generator.
func (UUID) Setup(context.Context, dialect.ExecQuerier, []*schema.Entity) error { return nil }

// Teardown implements Generator.
func (UUID) Teardown(context.Context, dialect.ExecQuerier, []*schema.Entity) error { return nil }
