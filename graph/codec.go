package graph

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// op kinds of the encoded form.
const (
	opNodeCreate   = "node-create"
	opNodeDelete   = "node-delete"
	opNodeIDChange = "node-id-change"
	opProperty     = "property"
	opArcCreate    = "arc-create"
	opArcDelete    = "arc-delete"
)

type envelope struct {
	Op     string   `msgpack:"op"`
	ID     ObjectID `msgpack:"id"`
	Target ObjectID `msgpack:"target"`
	Name   string   `msgpack:"name"`
	Old    any      `msgpack:"old"`
	New    any      `msgpack:"new"`
}

// Marshal encodes a diff list with msgpack, e.g. to ship the pending
// changes of a unit of work to another process.
func Marshal(l List) ([]byte, error) {
	envs := make([]envelope, 0, len(l))
	for _, d := range l {
		var e envelope
		switch d := d.(type) {
		case NodeCreate:
			e = envelope{Op: opNodeCreate, ID: d.ID}
		case NodeDelete:
			e = envelope{Op: opNodeDelete, ID: d.ID}
		case NodeIDChange:
			e = envelope{Op: opNodeIDChange, ID: d.ID, Target: d.NewID}
		case PropertyChange:
			e = envelope{Op: opProperty, ID: d.ID, Name: d.Property, Old: d.Old, New: d.New}
		case ArcCreate:
			e = envelope{Op: opArcCreate, ID: d.ID, Target: d.Target, Name: d.Arc}
		case ArcDelete:
			e = envelope{Op: opArcDelete, ID: d.ID, Target: d.Target, Name: d.Arc}
		default:
			return nil, fmt.Errorf("graph: marshal: unexpected diff %T", d)
		}
		envs = append(envs, e)
	}
	b, err := msgpack.Marshal(envs)
	if err != nil {
		return nil, fmt.Errorf("graph: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a diff list encoded by Marshal. Integer values decode
// as int64 and compare equal to the encoded ones through EqualValues.
func Unmarshal(b []byte) (List, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	var envs []envelope
	if err := dec.Decode(&envs); err != nil {
		return nil, fmt.Errorf("graph: unmarshal: %w", err)
	}
	l := make(List, 0, len(envs))
	for i, e := range envs {
		var d Diff
		switch e.Op {
		case opNodeCreate:
			d = NodeCreate{ID: e.ID}
		case opNodeDelete:
			d = NodeDelete{ID: e.ID}
		case opNodeIDChange:
			d = NodeIDChange{ID: e.ID, NewID: e.Target}
		case opProperty:
			d = PropertyChange{ID: e.ID, Property: e.Name, Old: e.Old, New: e.New}
		case opArcCreate:
			d = ArcCreate{ID: e.ID, Target: e.Target, Arc: e.Name}
		case opArcDelete:
			d = ArcDelete{ID: e.ID, Target: e.Target, Arc: e.Name}
		default:
			return nil, fmt.Errorf("graph: unmarshal: unknown op %q at %d", e.Op, i)
		}
		l = append(l, d)
	}
	return l, nil
}
