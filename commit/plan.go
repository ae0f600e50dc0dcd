package commit

import (
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/strata"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/schema"
)

// value is the pending value of a column: a literal, or a reference to a
// key column of another object resolved when the row is written.
type value struct {
	v      any
	ref    *graph.ObjectID
	refCol string
}

// object accumulates the net change of one object.
type object struct {
	id       graph.ObjectID
	entity   *schema.Entity
	created  bool
	deleted  bool
	identity bool
	inserted bool
	values   map[string]value
	// before holds the earliest old value of each changed column.
	before map[string]any
	// pk holds the key values, known for permanent ids and filled for new
	// objects by key generation or at insert time.
	pk map[string]any
}

func (o *object) coversKey(pk []*schema.Column) bool {
	if len(pk) == 0 {
		return false
	}
	for _, c := range pk {
		if _, ok := o.values[c.Name]; !ok {
			return false
		}
	}
	return true
}

// changed returns the changed column names, sorted.
func (o *object) changed() []string {
	return slices.Sorted(maps.Keys(o.values))
}

// plan is the per-object view of a compressed diff list.
type plan struct {
	reg     *schema.Registry
	objects []*object
	index   map[string]*object
}

func newPlan(reg *schema.Registry, l graph.List) (*plan, error) {
	p := &plan{reg: reg, index: make(map[string]*object)}
	for _, d := range l {
		o, err := p.object(d.Node())
		if err != nil {
			return nil, err
		}
		switch d := d.(type) {
		case graph.NodeCreate:
			if o.deleted {
				o.deleted = false
			} else {
				o.created = true
			}
		case graph.NodeDelete:
			o.deleted = true
		case graph.PropertyChange:
			col, ok := o.entity.ColumnForProperty(d.Property)
			if !ok {
				return nil, strata.NewPathError(o.entity.Name, d.Property, "unknown property")
			}
			o.set(col.Name, value{v: d.New}, d.Old)
		case graph.ArcCreate, graph.ArcDelete:
			if err := p.arc(o, d); err != nil {
				return nil, err
			}
		case graph.NodeIDChange:
			for col, v := range d.NewID.Values {
				o.set(col, value{v: v}, o.id.Values[col])
			}
			p.index[d.NewID.Key()] = o
		}
	}
	return p, nil
}

func (p *plan) object(id graph.ObjectID) (*object, error) {
	if o, ok := p.index[id.Key()]; ok {
		return o, nil
	}
	e, ok := p.reg.Entity(id.Entity)
	if !ok {
		return nil, strata.NewPathError(id.Entity, "", "unknown entity")
	}
	o := &object{
		id:     id,
		entity: e,
		values: make(map[string]value),
		before: make(map[string]any),
		pk:     make(map[string]any),
	}
	if !id.IsTemp() {
		maps.Copy(o.pk, id.Values)
	}
	p.index[id.Key()] = o
	p.objects = append(p.objects, o)
	return o, nil
}

func (o *object) set(col string, v value, old any) {
	if _, ok := o.before[col]; !ok {
		o.before[col] = old
	}
	o.values[col] = v
}

// arc turns an arc change into foreign key values. A to-one arc sets the
// key columns of its source, a to-many arc those of its target. Deleting
// an arc clears the columns unless they were pointed to another object.
func (p *plan) arc(o *object, d graph.Diff) error {
	var (
		target graph.ObjectID
		name   string
		create bool
	)
	switch d := d.(type) {
	case graph.ArcCreate:
		target, name, create = d.Target, d.Arc, true
	case graph.ArcDelete:
		target, name = d.Target, d.Arc
	}
	rel, ok := o.entity.Relationship(name)
	if !ok {
		return strata.NewPathError(o.entity.Name, name, "unknown relationship")
	}
	owner, other := o, target
	if rel.ToMany {
		t, err := p.object(target)
		if err != nil {
			return err
		}
		owner, other = t, o.id
	}
	for _, j := range rel.Joins {
		col, refCol := j.Source, j.Target
		if rel.ToMany {
			col, refCol = j.Target, j.Source
		}
		if _, ok := owner.entity.Column(col); !ok {
			return strata.NewPathError(owner.entity.Name, col, fmt.Sprintf("unknown join column of %s", name))
		}
		if create {
			ref := other
			owner.set(col, value{ref: &ref, refCol: refCol}, nil)
			continue
		}
		if cur, ok := owner.values[col]; ok && (cur.ref == nil || !cur.ref.Equal(other)) {
			continue
		}
		owner.set(col, value{}, other.Values[refCol])
	}
	return nil
}

// resolve returns the literal value of v.
func (p *plan) resolve(v value) (any, error) {
	if v.ref == nil {
		return v.v, nil
	}
	if t, ok := p.index[v.ref.Key()]; ok {
		if k, ok := t.pk[v.refCol]; ok {
			return k, nil
		}
		if tv, ok := t.values[v.refCol]; ok && tv.ref == nil {
			return tv.v, nil
		}
		return nil, fmt.Errorf("commit: unresolved key %s of %s", v.refCol, v.ref)
	}
	if k, ok := v.ref.Values[v.refCol]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("commit: unresolved key %s of %s", v.refCol, v.ref)
}
