package graph

import (
	"bytes"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Node is a node of an in-memory Graph. Removed nodes are kept with their
// properties so a later creation of the same id restores them.
type Node struct {
	ID         ObjectID
	Properties map[string]any
	Removed    bool
}

type arc struct {
	source, target ObjectID
	name           string
}

// Graph is an in-memory object graph implementing Handler. It mirrors the
// state a diff list describes: replaying a list on a Graph, or undoing it,
// updates the nodes, their properties and their arcs.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	arcs  map[string]arc
}

var _ Handler = (*Graph)(nil)

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node), arcs: make(map[string]arc)}
}

// Register adds a live node with the given properties, e.g. an object just
// fetched from the database. Registering records no diff. Nil values are
// absent properties.
func (g *Graph) Register(id ObjectID, properties map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		if v != nil {
			props[k] = v
		}
	}
	g.nodes[id.Key()] = &Node{ID: id, Properties: props}
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id ObjectID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id.Key()]
	if !ok {
		return Node{}, false
	}
	return Node{ID: n.ID, Properties: maps.Clone(n.Properties), Removed: n.Removed}, true
}

// Snapshot returns a copy of the properties of a node, or nil.
func (g *Graph) Snapshot(id ObjectID) map[string]any {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	return n.Properties
}

// Property returns the value of a node property.
func (g *Graph) Property(id ObjectID, property string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id.Key()]
	if !ok {
		return nil, false
	}
	v, ok := n.Properties[property]
	return v, ok
}

// Targets returns the targets of the named arcs of a node, ordered by key.
func (g *Graph) Targets(id ObjectID, name string) []ObjectID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var targets []ObjectID
	for _, a := range g.arcs {
		if a.name == name && a.source.Equal(id) {
			targets = append(targets, a.target)
		}
	}
	slices.SortFunc(targets, func(a, b ObjectID) int { return strings.Compare(a.Key(), b.Key()) })
	return targets
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, node := range g.nodes {
		if !node.Removed {
			n++
		}
	}
	return n
}

// NodeCreated implements Handler.
func (g *Graph) NodeCreated(id ObjectID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id.Key()]; ok {
		n.Removed = false
		return
	}
	g.nodes[id.Key()] = &Node{ID: id, Properties: make(map[string]any)}
}

// NodeRemoved implements Handler.
func (g *Graph) NodeRemoved(id ObjectID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id.Key()]; ok {
		n.Removed = true
	}
}

// NodeIDChanged implements Handler. The node and every arc referencing it
// move to the new id.
func (g *Graph) NodeIDChanged(id, newID ObjectID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id.Key()]; ok {
		delete(g.nodes, id.Key())
		n.ID = newID
		g.nodes[newID.Key()] = n
	}
	for k, a := range g.arcs {
		if !a.source.Equal(id) && !a.target.Equal(id) {
			continue
		}
		delete(g.arcs, k)
		if a.source.Equal(id) {
			a.source = newID
		}
		if a.target.Equal(id) {
			a.target = newID
		}
		g.arcs[arcKey(a)] = a
	}
}

// NodePropertyChanged implements Handler. A nil new value removes the
// property. Changes of unknown nodes are ignored.
func (g *Graph) NodePropertyChanged(id ObjectID, property string, _, newValue any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id.Key()]
	if !ok {
		return
	}
	if newValue == nil {
		delete(n.Properties, property)
		return
	}
	n.Properties[property] = newValue
}

// ArcCreated implements Handler.
func (g *Graph) ArcCreated(id, target ObjectID, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := arc{source: id, target: target, name: name}
	g.arcs[arcKey(a)] = a
}

// ArcDeleted implements Handler.
func (g *Graph) ArcDeleted(id, target ObjectID, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.arcs, arcKey(arc{source: id, target: target, name: name}))
}

// Clone returns a deep copy of the graph. Property values are shared.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := New()
	for k, n := range g.nodes {
		c.nodes[k] = &Node{ID: n.ID, Properties: maps.Clone(n.Properties), Removed: n.Removed}
	}
	maps.Copy(c.arcs, g.arcs)
	return c
}

// Equal reports whether both graphs hold the same live nodes with equal
// properties, and the same arcs between them. Removed nodes and the arcs
// leaving them are ignored.
func (g *Graph) Equal(other *Graph) bool {
	if g == other {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()
	a, b := g.live(), other.live()
	if len(a) != len(b) {
		return false
	}
	for k, n := range a {
		m, ok := b[k]
		if !ok || len(n.Properties) != len(m.Properties) {
			return false
		}
		for p, v := range n.Properties {
			w, ok := m.Properties[p]
			if !ok || !EqualValues(v, w) {
				return false
			}
		}
	}
	return slices.Equal(g.liveArcs(), other.liveArcs())
}

func (g *Graph) live() map[string]*Node {
	nodes := make(map[string]*Node, len(g.nodes))
	for k, n := range g.nodes {
		if !n.Removed {
			nodes[k] = n
		}
	}
	return nodes
}

func (g *Graph) liveArcs() []string {
	var keys []string
	for k, a := range g.arcs {
		if n, ok := g.nodes[a.source.Key()]; ok && n.Removed {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func arcKey(a arc) string {
	return a.source.Key() + " -" + a.name + "-> " + a.target.Key()
}

// EqualValues reports whether two property values are equal. Integers of
// any width compare by value, as do byte slices and strings holding the
// same bytes.
func EqualValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isInt(va) && isInt(vb):
		return intValue(va) == intValue(vb)
	case isFloat(va) && isFloat(vb):
		return va.Float() == vb.Float()
	}
	ba, okA := asBytes(a)
	bb, okB := asBytes(b)
	return okA && okB && bytes.Equal(ba, bb)
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// intValue returns the value of an integer as int64 bits; uint64 values
// above the int64 range never equal a signed value in practice.
func intValue(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	}
	return v.Int()
}

func isFloat(v reflect.Value) bool {
	return v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func asBytes(v any) ([]byte, bool) {
	switch v := v.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}
