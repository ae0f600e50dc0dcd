package commit

import (
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/strata/graph"
)

// ChangeType classifies the change of one object in a unit of work. The
// ordinal order is the precedence: an object receiving several kinds of
// operations is classified by the highest one.
type ChangeType uint8

// Change types, lowest precedence first.
const (
	Update ChangeType = iota + 1
	Insert
	Delete
)

// String returns the name of the change type.
func (t ChangeType) String() string {
	switch t {
	case Update:
		return "UPDATE"
	case Insert:
		return "INSERT"
	case Delete:
		return "DELETE"
	}
	return fmt.Sprintf("ChangeType(%d)", t)
}

// ObjectChange is the commit-log view of one changed object: every diff
// targeting the object folded into a single record.
type ObjectChange struct {
	// ID is the id the object had before the commit.
	ID graph.ObjectID
	// PostCommitID is the id after the commit. It differs from ID for new
	// objects whose temporary id was replaced by a generated key and for
	// objects whose key was changed.
	PostCommitID graph.ObjectID
	Type         ChangeType
	// Before holds the earliest old value of each changed property, After
	// the latest new value.
	Before, After map[string]any
	// Arcs lists the relationships whose arcs changed.
	Arcs []string
	// Created and Deleted report the lifecycle operations of the object,
	// both are set for an object created and deleted in the same unit.
	Created, Deleted bool
}

// Classify folds a diff list into one change per object, in order of first
// appearance. The list need not be compressed.
func Classify(l graph.List) []ObjectChange {
	var (
		changes []ObjectChange
		index   = make(map[string]int)
	)
	get := func(id graph.ObjectID) *ObjectChange {
		i, ok := index[id.Key()]
		if !ok {
			i = len(changes)
			index[id.Key()] = i
			changes = append(changes, ObjectChange{
				ID:           id,
				PostCommitID: id,
				Before:       make(map[string]any),
				After:        make(map[string]any),
			})
		}
		return &changes[i]
	}
	for _, d := range l {
		c := get(d.Node())
		switch d := d.(type) {
		case graph.NodeCreate:
			c.Created = true
			c.promote(Insert)
		case graph.NodeDelete:
			c.Deleted = true
			c.promote(Delete)
		case graph.PropertyChange:
			if _, ok := c.Before[d.Property]; !ok {
				c.Before[d.Property] = d.Old
			}
			c.After[d.Property] = d.New
			c.promote(Update)
		case graph.ArcCreate:
			c.arc(d.Arc)
		case graph.ArcDelete:
			c.arc(d.Arc)
		case graph.NodeIDChange:
			c.PostCommitID = d.NewID
			index[d.NewID.Key()] = index[d.ID.Key()]
			if !d.ID.IsTemp() {
				c.promote(Update)
			}
		}
	}
	for i := range changes {
		c := &changes[i]
		for p, v := range c.Before {
			if graph.EqualValues(v, c.After[p]) {
				delete(c.Before, p)
				delete(c.After, p)
			}
		}
	}
	return changes
}

func (c *ObjectChange) promote(t ChangeType) {
	if t > c.Type {
		c.Type = t
	}
}

func (c *ObjectChange) arc(name string) {
	c.promote(Update)
	if !slices.Contains(c.Arcs, name) {
		c.Arcs = append(c.Arcs, name)
	}
}

// Clone returns a copy of c with its own maps.
func (c ObjectChange) Clone() ObjectChange {
	c.Before = maps.Clone(c.Before)
	c.After = maps.Clone(c.After)
	c.Arcs = append([]string(nil), c.Arcs...)
	return c
}
