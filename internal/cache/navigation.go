package cache

import (
	"fmt"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

func errNotAssignable(from, to *metadata.EntityType) error {
	return fmt.Errorf("%s is not assignable to %s", from.Name, to.Name)
}

// relinkScalar points e.nav at target and keeps the inverse edge in step.
// Foreign keys are not touched.
func (s *Session) relinkScalar(e *Entity, nav *metadata.NavigationProperty, target *Entity) {
	old := e.Navigation(nav.Name)
	if old == target {
		return
	}
	inv := nav.InverseProperty()
	if old != nil && inv != nil {
		if inv.IsScalar {
			if old.Navigation(inv.Name) == e {
				old.setEdge(inv, nil)
			}
		} else {
			s.collectionRemove(old, inv, e)
		}
	}

	e.setEdge(nav, target)

	if target == nil || inv == nil {
		return
	}
	if !inv.IsScalar {
		s.collectionAdd(target, inv, e)
		return
	}
	// One-to-one: whoever held target before loses it.
	if prev := target.Navigation(inv.Name); prev != nil && prev != e {
		prev.setEdge(nav, nil)
		if fks := nav.ForeignKeyProperties(); len(fks) > 0 {
			if err := s.writeForeignKeys(prev, fks, keyValuesOrNull(nil, len(fks))); err != nil {
				s.logger.Warn("foreign key not cleared", "key", prev.keyString(), "navigation", nav.QualifiedName(), "error", err)
			}
		}
	}
	target.setEdge(inv, e)
}

// collectionAdd appends child to owner.nav unless already present.
func (s *Session) collectionAdd(owner *Entity, nav *metadata.NavigationProperty, child *Entity) {
	if owner.inCollection(nav, child) {
		return
	}
	owner.collections[nav.Name] = append(owner.collections[nav.Name], child.aspect.ref)
	s.publishRelationshipChanged(owner, nav, []*Entity{child}, nil)
}

// collectionRemove drops child from owner.nav, pruning dead refs as it goes.
func (s *Session) collectionRemove(owner *Entity, nav *metadata.NavigationProperty, child *Entity) {
	refs := owner.collections[nav.Name]
	kept := refs[:0]
	removed := false
	for _, r := range refs {
		m := r.resolve()
		if m == child {
			removed = true
			continue
		}
		if m != nil {
			kept = append(kept, r)
		}
	}
	owner.collections[nav.Name] = kept
	if removed {
		s.publishRelationshipChanged(owner, nav, nil, []*Entity{child})
	}
}

// linkAttached wires a newly resident entity into the graph: its own
// foreign keys, principal-only collections it belongs to, and any children
// that were waiting for it. A Deleted entity stays out of the graph; its
// waiting children remain parked until it is rejected or restored.
func (s *Session) linkAttached(e *Entity) {
	if e.aspect.state == Deleted {
		return
	}
	for _, nav := range e.typ.NavigationProperties() {
		if nav.IsScalar && len(nav.ForeignKeyProperties()) > 0 {
			s.syncNavigationFromKeys(e, nav)
		}
	}
	seen := make(map[*metadata.NavigationProperty]bool)
	for _, p := range e.typ.DataProperties() {
		for _, nav := range p.InverseForeignKeyOf() {
			if seen[nav] || nav.InverseProperty() != nil || !e.typ.IsAssignableTo(nav.TargetType()) {
				continue
			}
			seen[nav] = true
			s.syncPrincipalCollection(e, nav, keyValuesOrNull(nil, len(nav.InverseForeignKeyProperties())))
		}
	}
	s.drainPending(e)
}

// drainPending resolves the table entries waiting for e's key.
func (s *Session) drainPending(e *Entity) {
	key := e.Key()
	for _, r := range s.unresolved.take(key) {
		child := r.Child
		if child.aspect.session != s || child.aspect.state == Deleted {
			continue
		}
		if r.Navigation.IsScalar {
			if value.EqualSlices(child.valuesOf(r.Navigation.ForeignKeyProperties()), key.values) {
				s.relinkScalar(child, r.Navigation, e)
			}
			continue
		}
		if value.EqualSlices(child.valuesOf(r.Navigation.InverseForeignKeyProperties()), key.values) {
			s.collectionAdd(e, r.Navigation, child)
		}
	}
}

// sever takes a Deleted entity out of the graph without dirtying the far
// side. Its own deferred references are dropped; reject recomputes them.
func (s *Session) sever(e *Entity) {
	s.loading++
	s.unlink(e)
	s.loading--
	s.unresolved.removeEntity(e)
}

// unlink severs every edge touching e. Dependents keep their foreign keys
// and are parked in the unresolved table so they relink if e returns.
func (s *Session) unlink(e *Entity) {
	key := e.Key()
	for _, nav := range e.typ.NavigationProperties() {
		inv := nav.InverseProperty()
		if nav.IsScalar {
			target := e.Navigation(nav.Name)
			switch {
			case target == nil:
				delete(e.scalars, nav.Name)
			case len(nav.ForeignKeyProperties()) > 0:
				s.relinkScalar(e, nav, nil)
			case inv != nil:
				target.setEdge(inv, nil)
				e.setEdge(nav, nil)
				if len(inv.ForeignKeyProperties()) > 0 {
					s.unresolved.AddChild(key.withType(inv.TargetType()), inv, target)
				}
			default:
				e.setEdge(nav, nil)
			}
			continue
		}

		children := e.Collection(nav.Name)
		delete(e.collections, nav.Name)
		for _, child := range children {
			switch {
			case inv != nil:
				child.setEdge(inv, nil)
				if len(inv.ForeignKeyProperties()) > 0 {
					s.unresolved.AddChild(key.withType(inv.TargetType()), inv, child)
				}
			case len(nav.InverseForeignKeyProperties()) > 0:
				s.unresolved.AddChild(key.withType(nav.Owner()), nav, child)
			}
		}
		if len(children) > 0 {
			s.publishRelationshipChanged(e, nav, nil, children)
		}
	}

	for _, nav := range e.typ.InboundForeignKeyNavigations() {
		if nav.InverseProperty() != nil {
			continue
		}
		for _, part := range s.family(nav.Owner()) {
			for _, dep := range part.Entities() {
				if dep.Navigation(nav.Name) == e {
					dep.setEdge(nav, nil)
					s.unresolved.AddChild(key.withType(nav.TargetType()), nav, dep)
				}
			}
		}
	}
}

// partition returns the partition for t, creating it on first use.
func (s *Session) partition(t *metadata.EntityType) *Partition {
	p, ok := s.partitions[t]
	if !ok {
		p = newPartition(t)
		s.partitions[t] = p
	}
	return p
}

// family returns the partitions of t and all of its subtypes.
func (s *Session) family(t *metadata.EntityType) []*Partition {
	out := []*Partition{s.partition(t)}
	for _, sub := range t.Subtypes() {
		out = append(out, s.partition(sub))
	}
	return out
}

// findIn looks key's values up in t's family.
func (s *Session) findIn(t *metadata.EntityType, key EntityKey) *Entity {
	ks := key.valueString()
	for _, p := range s.family(t) {
		if e := p.find(ks); e != nil {
			return e
		}
	}
	return nil
}

// findFamily searches the whole hierarchy key's type belongs to. Keys are
// unique across a hierarchy, not just within one concrete type.
func (s *Session) findFamily(key EntityKey) *Entity {
	return s.findIn(key.typ.RootType(), key)
}

// findLinkable returns a resident that relationships may point at.
// Deleted entities are resident but not linkable.
func (s *Session) findLinkable(key EntityKey) *Entity {
	e := s.findIn(key.typ, key)
	if e == nil || e.aspect.state == Deleted {
		return nil
	}
	return e
}
