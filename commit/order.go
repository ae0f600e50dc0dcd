package commit

import (
	"slices"

	"github.com/syssam/strata/schema"
)

// Order returns the entities of the registry sorted so that every entity
// comes after the entities its to-one relationships point to: the order of
// INSERTs. DELETEs run in reverse. Ties are broken by entity name. A
// dependency cycle is broken by releasing the remaining entity with the
// smallest name, so the order is deterministic for any schema.
func Order(reg *schema.Registry) []*schema.Entity {
	entities := reg.Entities()
	deps := make(map[string]map[string]bool, len(entities))
	dependents := make(map[string][]string)
	for _, e := range entities {
		deps[e.Name] = make(map[string]bool)
		for _, r := range e.Relationships {
			if r.ToMany || r.Target == e.Name || deps[e.Name][r.Target] {
				continue
			}
			if _, ok := reg.Entity(r.Target); !ok {
				continue
			}
			deps[e.Name][r.Target] = true
			dependents[r.Target] = append(dependents[r.Target], e.Name)
		}
	}

	var (
		sorted = make([]*schema.Entity, 0, len(entities))
		done   = make(map[string]bool, len(entities))
	)
	release := func(name string) {
		done[name] = true
		sorted = append(sorted, reg.MustEntity(name))
		for _, d := range dependents[name] {
			delete(deps[d], name)
		}
	}
	for len(sorted) < len(entities) {
		var ready []string
		for _, e := range entities {
			if !done[e.Name] && len(deps[e.Name]) == 0 {
				ready = append(ready, e.Name)
			}
		}
		if len(ready) == 0 {
			// Cycle: entities are sorted by name, the first pending one wins.
			for _, e := range entities {
				if !done[e.Name] {
					ready = append(ready, e.Name)
					break
				}
			}
		}
		slices.Sort(ready)
		for _, name := range ready {
			release(name)
		}
	}
	return sorted
}
