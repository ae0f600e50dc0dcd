// Package graph records and replays changes of an object graph.
//
// Objects are addressed by ObjectID, an entity name with primary key values
// or a temporary id for objects not yet saved. Every change decomposes into
// six primitive mutations received by a Handler:
//
//	NodeCreated, NodeRemoved, NodeIDChanged,
//	NodePropertyChanged, ArcCreated, ArcDeleted
//
// A Tracker is a Handler recording the mutations as a List of immutable
// Diff values. A List can be applied to any Handler, undone in reverse
// order, compressed into an equivalent shorter list with Compress, and
// encoded with Marshal for replay in another process.
//
// Graph is an in-memory Handler holding nodes, their properties and arcs.
// It serves as the snapshot source of the commit pipeline and as a mirror
// for replicated lists:
//
//	t := graph.NewTracker()
//	id := graph.NewTempID("Artist")
//	t.NodeCreated(id)
//	t.NodePropertyChanged(id, "artistName", nil, "Monet")
//
//	g := graph.New()
//	t.Compress().Apply(g)
package graph
