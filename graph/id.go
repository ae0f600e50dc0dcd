package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ObjectID identifies a persistent object by entity name and primary key
// values. A temporary id has no key values; it stands for a new object until
// its key is generated, and is then replaced by a permanent id.
type ObjectID struct {
	Entity string         `msgpack:"entity"`
	Values map[string]any `msgpack:"values"`
	Temp   string         `msgpack:"temp"`
}

// NewID returns a permanent id. The key map is copied.
func NewID(entity string, values map[string]any) ObjectID {
	return ObjectID{Entity: entity, Values: maps.Clone(values)}
}

// NewSingleID returns a permanent id with a single key column.
func NewSingleID(entity, column string, value any) ObjectID {
	return ObjectID{Entity: entity, Values: map[string]any{column: value}}
}

// NewTempID returns a process-unique temporary id.
func NewTempID(entity string) ObjectID {
	return ObjectID{Entity: entity, Temp: uuid.NewString()}
}

// IsTemp reports whether the id is temporary.
func (id ObjectID) IsTemp() bool { return id.Temp != "" }

// IsZero reports whether the id is unset.
func (id ObjectID) IsZero() bool {
	return id.Entity == "" && id.Temp == "" && len(id.Values) == 0
}

// Value returns the value of a key column.
func (id ObjectID) Value(column string) (any, bool) {
	v, ok := id.Values[column]
	return v, ok
}

// Key returns the canonical string form of the id: equal ids have equal
// keys whatever the order or integer width of their values.
func (id ObjectID) Key() string {
	if id.IsTemp() {
		return id.Entity + "<temp:" + id.Temp + ">"
	}
	var sb strings.Builder
	sb.WriteString(id.Entity)
	sb.WriteByte('<')
	for i, col := range slices.Sorted(maps.Keys(id.Values)) {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", col, id.Values[col])
	}
	sb.WriteByte('>')
	return sb.String()
}

// String implements fmt.Stringer.
func (id ObjectID) String() string { return id.Key() }

// Equal reports whether both ids identify the same object.
func (id ObjectID) Equal(other ObjectID) bool { return id.Key() == other.Key() }
