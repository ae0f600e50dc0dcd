package graph

// Handler receives the six primitive graph mutations. Every higher level
// change of an object graph decomposes into calls of these methods.
type Handler interface {
	NodeCreated(id ObjectID)
	NodeRemoved(id ObjectID)
	NodeIDChanged(id, newID ObjectID)
	NodePropertyChanged(id ObjectID, property string, oldValue, newValue any)
	ArcCreated(id, target ObjectID, arc string)
	ArcDeleted(id, target ObjectID, arc string)
}

// Diff is one immutable recorded mutation. Diffs address nodes by id, never
// by reference, so they can be replayed on another graph.
type Diff interface {
	// Node returns the id of the mutated node.
	Node() ObjectID
	// Apply replays the mutation on h.
	Apply(h Handler)
	// Undo replays the inverse mutation on h.
	Undo(h Handler)
	// withID returns a copy with every reference to old replaced by id.
	withID(old, id ObjectID) (Diff, bool)
}

// NodeCreate records a new node.
type NodeCreate struct {
	ID ObjectID
}

// Node implements Diff.
func (d NodeCreate) Node() ObjectID { return d.ID }

// Apply implements Diff.
func (d NodeCreate) Apply(h Handler) { h.NodeCreated(d.ID) }

// Undo implements Diff.
func (d NodeCreate) Undo(h Handler) { h.NodeRemoved(d.ID) }

func (d NodeCreate) withID(old, id ObjectID) (Diff, bool) {
	if !d.ID.Equal(old) {
		return d, false
	}
	return NodeCreate{ID: id}, true
}

// NodeDelete records a removed node.
type NodeDelete struct {
	ID ObjectID
}

// Node implements Diff.
func (d NodeDelete) Node() ObjectID { return d.ID }

// Apply implements Diff.
func (d NodeDelete) Apply(h Handler) { h.NodeRemoved(d.ID) }

// Undo implements Diff.
func (d NodeDelete) Undo(h Handler) { h.NodeCreated(d.ID) }

func (d NodeDelete) withID(old, id ObjectID) (Diff, bool) {
	if !d.ID.Equal(old) {
		return d, false
	}
	return NodeDelete{ID: id}, true
}

// NodeIDChange records the replacement of a node id.
type NodeIDChange struct {
	ID    ObjectID
	NewID ObjectID
}

// Node implements Diff.
func (d NodeIDChange) Node() ObjectID { return d.ID }

// Apply implements Diff.
func (d NodeIDChange) Apply(h Handler) { h.NodeIDChanged(d.ID, d.NewID) }

// Undo implements Diff.
func (d NodeIDChange) Undo(h Handler) { h.NodeIDChanged(d.NewID, d.ID) }

func (d NodeIDChange) withID(old, id ObjectID) (Diff, bool) {
	changed := false
	if d.ID.Equal(old) {
		d.ID, changed = id, true
	}
	if d.NewID.Equal(old) {
		d.NewID, changed = id, true
	}
	return d, changed
}

// PropertyChange records a new value of a node property.
type PropertyChange struct {
	ID       ObjectID
	Property string
	Old, New any
}

// Node implements Diff.
func (d PropertyChange) Node() ObjectID { return d.ID }

// Apply implements Diff.
func (d PropertyChange) Apply(h Handler) { h.NodePropertyChanged(d.ID, d.Property, d.Old, d.New) }

// Undo implements Diff.
func (d PropertyChange) Undo(h Handler) { h.NodePropertyChanged(d.ID, d.Property, d.New, d.Old) }

func (d PropertyChange) withID(old, id ObjectID) (Diff, bool) {
	if !d.ID.Equal(old) {
		return d, false
	}
	d.ID = id
	return d, true
}

// ArcCreate records a new relationship arc from ID to Target.
type ArcCreate struct {
	ID     ObjectID
	Target ObjectID
	Arc    string
}

// Node implements Diff.
func (d ArcCreate) Node() ObjectID { return d.ID }

// Apply implements Diff.
func (d ArcCreate) Apply(h Handler) { h.ArcCreated(d.ID, d.Target, d.Arc) }

// Undo implements Diff.
func (d ArcCreate) Undo(h Handler) { h.ArcDeleted(d.ID, d.Target, d.Arc) }

func (d ArcCreate) withID(old, id ObjectID) (Diff, bool) {
	changed := false
	if d.ID.Equal(old) {
		d.ID, changed = id, true
	}
	if d.Target.Equal(old) {
		d.Target, changed = id, true
	}
	return d, changed
}

// ArcDelete records a removed relationship arc.
type ArcDelete struct {
	ID     ObjectID
	Target ObjectID
	Arc    string
}

// Node implements Diff.
func (d ArcDelete) Node() ObjectID { return d.ID }

// Apply implements Diff.
func (d ArcDelete) Apply(h Handler) { h.ArcDeleted(d.ID, d.Target, d.Arc) }

// Undo implements Diff.
func (d ArcDelete) Undo(h Handler) { h.ArcCreated(d.ID, d.Target, d.Arc) }

func (d ArcDelete) withID(old, id ObjectID) (Diff, bool) {
	changed := false
	if d.ID.Equal(old) {
		d.ID, changed = id, true
	}
	if d.Target.Equal(old) {
		d.Target, changed = id, true
	}
	return d, changed
}

// List is an ordered list of diffs.
type List []Diff

// Apply replays the diffs on h in order.
func (l List) Apply(h Handler) {
	for _, d := range l {
		d.Apply(h)
	}
}

// Undo replays the inverse diffs on h in reverse order.
func (l List) Undo(h Handler) {
	Undo(l, h)
}

// Undo replays the inverses of l on h in reverse order, restoring the state
// h had before l was applied.
func Undo(l List, h Handler) {
	for i := len(l) - 1; i >= 0; i-- {
		l[i].Undo(h)
	}
}

// ReplaceID returns a copy of l with every reference to old replaced by id.
func (l List) ReplaceID(old, id ObjectID) List {
	out := make(List, len(l))
	for i, d := range l {
		out[i], _ = d.withID(old, id)
	}
	return out
}

var (
	_ Diff = NodeCreate{}
	_ Diff = NodeDelete{}
	_ Diff = NodeIDChange{}
	_ Diff = PropertyChange{}
	_ Diff = ArcCreate{}
	_ Diff = ArcDelete{}
)
