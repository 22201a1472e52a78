package cache

import (
	"fmt"
	"maps"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// Entity is a property bag bound to one resolved entity type.
//
// Data values are always stored coerced to the declared type. Navigation
// edges are slot refs resolved through the owning session's partitions, so
// an entity never holds a pointer to another entity.
type Entity struct {
	typ         *metadata.EntityType
	values      map[string]value.Value
	scalars     map[string]ref
	collections map[string][]ref
	aspect      *Aspect

	// columns names the data properties an imported row supplied. A merge
	// copies only those; nil means every property.
	columns map[string]bool
}

// NewEntity constructs a Detached entity of type t with every data property
// at its default value.
func NewEntity(t *metadata.EntityType) (*Entity, error) {
	if t == nil {
		return nil, newMissingMetadataError("<nil>")
	}
	if !t.IsResolved() {
		return nil, newMissingMetadataError(t.Name)
	}
	e := &Entity{
		typ:         t,
		values:      make(map[string]value.Value, len(t.DataProperties())),
		scalars:     make(map[string]ref),
		collections: make(map[string][]ref),
	}
	for _, p := range t.DataProperties() {
		e.values[p.Name] = p.DefaultValue()
	}
	e.aspect = newAspect(e)
	return e, nil
}

// Type returns the entity's type descriptor.
func (e *Entity) Type() *metadata.EntityType { return e.typ }

// Aspect returns the entity's change-tracking control block.
func (e *Entity) Aspect() *Aspect { return e.aspect }

// Key builds the entity's current identity key.
func (e *Entity) Key() EntityKey {
	return EntityKey{typ: e.typ, values: e.valuesOf(e.typ.KeyProperties())}
}

func (e *Entity) keyString() string {
	if e == nil {
		return ""
	}
	return e.Key().String()
}

// Get returns the value of a data property, or Null for unknown names.
func (e *Entity) Get(name string) value.Value {
	if v, ok := e.values[name]; ok {
		return v
	}
	return value.Null{}
}

// Values returns a copy of all data values.
func (e *Entity) Values() map[string]value.Value {
	return maps.Clone(e.values)
}

func (e *Entity) valuesOf(props []*metadata.DataProperty) []value.Value {
	out := make([]value.Value, len(props))
	for i, p := range props {
		out[i] = e.values[p.Name]
	}
	return out
}

// Navigation returns the target of a scalar navigation, or nil.
func (e *Entity) Navigation(name string) *Entity {
	return e.scalars[name].resolve()
}

// Collection returns the live members of a collection navigation.
func (e *Entity) Collection(name string) []*Entity {
	refs := e.collections[name]
	out := make([]*Entity, 0, len(refs))
	for _, r := range refs {
		if m := r.resolve(); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Set writes a data property or a scalar navigation through the
// property-change pipeline. Navigations take a *Entity or nil.
func (e *Entity) Set(name string, raw any) error {
	a := e.aspect
	if a.beingSaved {
		return newIllegalStateError(e, "cannot write %q while the entity is being saved", name)
	}
	s := a.session
	if s == nil {
		_, err := e.apply(name, raw)
		return err
	}

	outer := s.depth == 0
	var res writeResult
	s.depth++
	err := s.interceptorFor(e.typ).Intercept(&Write{Entity: e, Property: name, Value: raw}, func(w *Write) error {
		var err error
		res, err = e.apply(name, w.Value)
		return err
	})
	s.depth--
	if err != nil {
		return err
	}
	if outer && res.changed {
		s.publishPropertyChanged(e, res)
	}
	return nil
}

func (e *Entity) apply(name string, raw any) (writeResult, error) {
	if p, ok := e.typ.DataProperty(name); ok {
		return e.setData(p, raw)
	}
	nav, ok := e.typ.NavigationProperty(name)
	if !ok {
		return writeResult{}, newUnknownPropertyError(e, name)
	}
	if !nav.IsScalar {
		return writeResult{}, newInvalidValueError(e, name,
			fmt.Errorf("collection navigation %q is changed with AddTo and RemoveFrom", name))
	}
	target, ok := raw.(*Entity)
	if raw != nil && !ok {
		return writeResult{}, newInvalidValueError(e, name, fmt.Errorf("navigation %q expects an entity, got %T", name, raw))
	}
	return e.setNavigation(nav, target)
}

// AddTo adds child to a collection navigation. The write is carried out on
// the child's side of the relationship: its inverse navigation, or its
// foreign keys for a principal-only relationship.
func (e *Entity) AddTo(name string, child *Entity) error {
	nav, s, err := e.collectionWrite(name, child)
	if err != nil {
		return err
	}
	if child.aspect.session == nil {
		if _, err := s.attach(child, Added, Disallowed, ActionAttach); err != nil {
			return err
		}
	}

	if inv := nav.InverseProperty(); inv != nil {
		_, err := child.setNavigation(inv, e)
		return err
	}
	if fks := nav.InverseForeignKeyProperties(); len(fks) > 0 {
		for i, v := range e.Key().values {
			if _, err := child.setData(fks[i], v); err != nil {
				return err
			}
		}
		return nil
	}
	s.collectionAdd(e, nav, child)
	return nil
}

// RemoveFrom removes child from a collection navigation. Removing a
// non-member is a no-op.
func (e *Entity) RemoveFrom(name string, child *Entity) error {
	nav, s, err := e.collectionWrite(name, child)
	if err != nil {
		return err
	}
	if !e.inCollection(nav, child) {
		return nil
	}

	if inv := nav.InverseProperty(); inv != nil {
		_, err := child.setNavigation(inv, nil)
		return err
	}
	if fks := nav.InverseForeignKeyProperties(); len(fks) > 0 {
		for _, fk := range fks {
			if _, err := child.setData(fk, nil); err != nil {
				return err
			}
		}
		return nil
	}
	s.collectionRemove(e, nav, child)
	return nil
}

func (e *Entity) collectionWrite(name string, child *Entity) (*metadata.NavigationProperty, *Session, error) {
	nav, ok := e.typ.NavigationProperty(name)
	if !ok {
		return nil, nil, newUnknownPropertyError(e, name)
	}
	if nav.IsScalar {
		return nil, nil, newInvalidValueError(e, name, fmt.Errorf("navigation %q is not a collection", name))
	}
	if child == nil {
		return nil, nil, newInvalidValueError(e, name, fmt.Errorf("cannot add nil to %q", name))
	}
	if !child.typ.IsAssignableTo(nav.TargetType()) {
		return nil, nil, newInvalidValueError(e, name,
			fmt.Errorf("%s is not assignable to %s", child.typ.Name, nav.TargetType().Name))
	}
	if e.aspect.beingSaved || child.aspect.beingSaved {
		return nil, nil, newIllegalStateError(e, "cannot change %q while being saved", name)
	}
	s := e.aspect.session
	if s == nil {
		return nil, nil, newNotAttachedError(e, name)
	}
	if cs := child.aspect.session; cs != nil && cs != s {
		return nil, nil, newForeignSessionError(child)
	}
	return nav, s, nil
}

func (e *Entity) inCollection(nav *metadata.NavigationProperty, child *Entity) bool {
	for _, r := range e.collections[nav.Name] {
		if r.resolve() == child {
			return true
		}
	}
	return false
}

// setEdge points a scalar navigation at target, or clears it.
func (e *Entity) setEdge(nav *metadata.NavigationProperty, target *Entity) {
	if target == nil {
		delete(e.scalars, nav.Name)
		return
	}
	e.scalars[nav.Name] = target.aspect.ref
}

// String renders the entity's key for logs and traces.
func (e *Entity) String() string {
	return e.keyString()
}
