package schema

import (
	"slices"
	"strings"
)

// Unspecified marks a precision or scale that falls back to the dialect default.
const Unspecified = -1

// CascadeAction defines the referential action of a foreign key.
type CascadeAction string

// Referential actions rendered in foreign key DDL.
const (
	NoAction   CascadeAction = "NO ACTION"
	Restrict   CascadeAction = "RESTRICT"
	Cascade    CascadeAction = "CASCADE"
	SetNull    CascadeAction = "SET NULL"
	SetDefault CascadeAction = "SET DEFAULT"
)

// PKGeneration selects how new primary key values are produced for an entity.
type PKGeneration string

// Primary key generation strategies. The empty value defers to the adapter.
const (
	PKDefault  PKGeneration = ""
	PKIdentity PKGeneration = "identity"
	PKSequence PKGeneration = "sequence"
	PKLookup   PKGeneration = "lookup"
	PKUUID     PKGeneration = "uuid"
)

// LockType is the locking mode of an entity.
type LockType string

// Lock types.
const (
	LockNone       LockType = ""
	LockOptimistic LockType = "optimistic"
)

// Column describes one mapped table column.
type Column struct {
	Name     string `yaml:"name"`
	Property string `yaml:"property"`
	Type     Type   `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
	// Length is the maximum length for sized types. Zero or negative means
	// unbounded: the adapter substitutes its largest safe type.
	Length int `yaml:"length"`
	// Precision and Scale apply to decimal types; Unspecified (-1) uses the
	// dialect default.
	Precision      int    `yaml:"-"`
	Scale          int    `yaml:"-"`
	PrimaryKey     bool   `yaml:"primaryKey"`
	Generated      bool   `yaml:"generated"`
	UsedForLocking bool   `yaml:"lock"`
	Charset        string `yaml:"charset"`
}

// Join pairs a source column with a target column.
type Join struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Relationship describes an arc between two entities.
type Relationship struct {
	Name     string        `yaml:"name"`
	Target   string        `yaml:"target"`
	Joins    []Join        `yaml:"joins"`
	ToMany   bool          `yaml:"toMany"`
	OnDelete CascadeAction `yaml:"onDelete"`
}

// ToDependentPK reports whether the relationship points from a row that owns
// the foreign key to the referenced primary key, i.e. the source row depends
// on the target row.
func (r *Relationship) ToDependentPK(reg *Registry) bool {
	if r.ToMany {
		return false
	}
	target, ok := reg.Entity(r.Target)
	if !ok {
		return false
	}
	for _, j := range r.Joins {
		c, ok := target.Column(j.Target)
		if !ok || !c.PrimaryKey {
			return false
		}
	}
	return len(r.Joins) > 0
}

// Entity maps a logical entity onto a table. Entities are immutable once
// added to a Registry.
type Entity struct {
	Name          string          `yaml:"name"`
	Table         string          `yaml:"table"`
	Schema        string          `yaml:"schema"`
	Columns       []*Column       `yaml:"-"`
	Relationships []*Relationship `yaml:"relationships"`
	PKGeneration  PKGeneration    `yaml:"pkGeneration"`
	SequenceName  string          `yaml:"sequence"`
	KeyCacheSize  int             `yaml:"keyCacheSize"`
	LockType      LockType        `yaml:"lock"`
	Unique        [][]string      `yaml:"unique"`
}

// QualifiedTable returns the table name prefixed by its schema, if any.
func (e *Entity) QualifiedTable() string {
	if e.Schema == "" {
		return e.Table
	}
	return e.Schema + "." + e.Table
}

// Column returns the column with the given name.
func (e *Entity) Column(name string) (*Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnForProperty returns the column mapped to the given object property.
// Column names are accepted as well, so DB-level paths resolve too.
func (e *Entity) ColumnForProperty(property string) (*Column, bool) {
	for _, c := range e.Columns {
		if c.Property == property {
			return c, true
		}
	}
	return e.Column(property)
}

// Relationship returns the relationship with the given name.
func (e *Entity) Relationship(name string) (*Relationship, bool) {
	for _, r := range e.Relationships {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// PrimaryKey returns the primary key columns, ordered by name.
func (e *Entity) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range e.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	slices.SortFunc(pk, func(a, b *Column) int { return strings.Compare(a.Name, b.Name) })
	return pk
}

// LockColumns returns the columns used for optimistic locking. Primary key
// columns are excluded since they are always part of the qualifier.
func (e *Entity) LockColumns() []*Column {
	if e.LockType != LockOptimistic {
		return nil
	}
	var cols []*Column
	for _, c := range e.Columns {
		if c.UsedForLocking && !c.PrimaryKey {
			cols = append(cols, c)
		}
	}
	return cols
}

// Sequence returns the sequence name used by sequence-backed key generation.
func (e *Entity) Sequence() string {
	if e.SequenceName != "" {
		return e.SequenceName
	}
	return "pk_" + strings.ToLower(e.Table)
}
