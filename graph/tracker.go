package graph

import (
	"sync"
)

// Tracker records graph mutations as a diff list. It is safe for
// concurrent use, though a unit of work is normally owned by one goroutine.
type Tracker struct {
	mu  sync.Mutex
	ops List
}

var _ Handler = (*Tracker)(nil)

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) add(d Diff) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, d)
}

// NodeCreated implements Handler.
func (t *Tracker) NodeCreated(id ObjectID) { t.add(NodeCreate{ID: id}) }

// NodeRemoved implements Handler.
func (t *Tracker) NodeRemoved(id ObjectID) { t.add(NodeDelete{ID: id}) }

// NodePropertyChanged implements Handler.
func (t *Tracker) NodePropertyChanged(id ObjectID, property string, oldValue, newValue any) {
	t.add(PropertyChange{ID: id, Property: property, Old: oldValue, New: newValue})
}

// ArcCreated implements Handler.
func (t *Tracker) ArcCreated(id, target ObjectID, arc string) {
	t.add(ArcCreate{ID: id, Target: target, Arc: arc})
}

// ArcDeleted implements Handler.
func (t *Tracker) ArcDeleted(id, target ObjectID, arc string) {
	t.add(ArcDelete{ID: id, Target: target, Arc: arc})
}

// NodeIDChanged records an id replacement. A temporary id made permanent
// is rewritten in every pending diff referencing it, so no recorded
// mutation is left pointing at it; the change itself is recorded only when
// no pending diff referenced id. A permanent id change is always recorded,
// earlier diffs keep addressing the old id.
func (t *Tracker) NodeIDChanged(id, newID ObjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !id.IsTemp() {
		t.ops = append(t.ops, NodeIDChange{ID: id, NewID: newID})
		return
	}
	referenced := false
	for i, d := range t.ops {
		nd, changed := d.withID(id, newID)
		if changed {
			t.ops[i] = nd
			referenced = true
		}
	}
	if !referenced {
		t.ops = append(t.ops, NodeIDChange{ID: id, NewID: newID})
	}
}

// Diffs returns a copy of the recorded diffs.
func (t *Tracker) Diffs() List {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append(List(nil), t.ops...)
}

// Len returns the number of recorded diffs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// Reset drops the recorded diffs, e.g. after a commit or a rollback.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = nil
}

// Compress returns the compressed recorded diffs.
func (t *Tracker) Compress() List {
	return Compress(t.Diffs())
}

// Compress merges redundant diffs without changing their net effect:
//   - successive changes of one property collapse into one change holding
//     the earliest old value and the latest new value, dropped when both
//     are equal;
//   - an arc deletion cancels a pending creation of the same arc and vice
//     versa;
//   - the diffs of an object created and deleted in the same list are
//     dropped, except the creation and the deletion.
func Compress(l List) List {
	transient := make(map[string]bool)
	created := make(map[string]bool)
	for _, d := range l {
		switch d := d.(type) {
		case NodeCreate:
			created[d.ID.Key()] = true
			transient[d.ID.Key()] = false
		case NodeDelete:
			if created[d.ID.Key()] {
				transient[d.ID.Key()] = true
			}
		}
	}

	type propKey struct{ node, prop string }
	type arcKey struct{ node, target, arc string }
	var (
		out   = make(List, 0, len(l))
		drop  = make([]bool, 0, len(l))
		props = make(map[propKey]int)
		arcs  = make(map[arcKey]int)
	)
	for _, d := range l {
		node := d.Node().Key()
		if transient[node] {
			switch d.(type) {
			case NodeCreate, NodeDelete:
			default:
				continue
			}
		}
		switch d := d.(type) {
		case PropertyChange:
			k := propKey{node, d.Property}
			if i, ok := props[k]; ok {
				prev := out[i].(PropertyChange)
				prev.New = d.New
				out[i] = prev
				continue
			}
			props[k] = len(out)
		case ArcCreate, ArcDelete:
			var k arcKey
			switch d := d.(type) {
			case ArcCreate:
				k = arcKey{node, d.Target.Key(), d.Arc}
			case ArcDelete:
				k = arcKey{node, d.Target.Key(), d.Arc}
			}
			if i, ok := arcs[k]; ok && !drop[i] && opposite(out[i], d) {
				drop[i] = true
				delete(arcs, k)
				continue
			}
			arcs[k] = len(out)
		}
		out = append(out, d)
		drop = append(drop, false)
	}

	compressed := make(List, 0, len(out))
	for i, d := range out {
		if drop[i] {
			continue
		}
		if pc, ok := d.(PropertyChange); ok && EqualValues(pc.Old, pc.New) {
			continue
		}
		compressed = append(compressed, d)
	}
	return compressed
}

func opposite(a, b Diff) bool {
	switch a.(type) {
	case ArcCreate:
		_, ok := b.(ArcDelete)
		return ok
	case ArcDelete:
		_, ok := b.(ArcCreate)
		return ok
	}
	return false
}
