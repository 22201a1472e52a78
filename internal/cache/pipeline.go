package cache

import (
	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// Write is one external property write as seen by an Interceptor.
type Write struct {
	Entity   *Entity
	Property string

	// Value is the raw incoming value. Interceptors may replace it before
	// calling next.
	Value any
}

// Interceptor wraps the property-change pipeline for one entity type.
//
// Interceptors are chosen per type when the session is built (see
// WithInterceptor). An interceptor may rewrite w.Value, veto the write by
// returning an error without calling next, or observe the outcome.
type Interceptor interface {
	Intercept(w *Write, next func(*Write) error) error
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(w *Write, next func(*Write) error) error

// Intercept calls f.
func (f InterceptorFunc) Intercept(w *Write, next func(*Write) error) error { return f(w, next) }

// DefaultInterceptor hands every write straight to the pipeline.
type DefaultInterceptor struct{}

// Intercept calls next unchanged.
func (DefaultInterceptor) Intercept(w *Write, next func(*Write) error) error { return next(w) }

// writeResult describes a committed write for event publication.
type writeResult struct {
	changed   bool
	property  string
	old, new  value.Value
	oldTarget *Entity
	newTarget *Entity
}

// setData runs the pipeline for a data property. It is also the entry for
// internal cascaded writes, which never publish property events.
func (e *Entity) setData(p *metadata.DataProperty, raw any) (writeResult, error) {
	v, err := value.Coerce(raw, p.Type)
	if err != nil {
		return writeResult{}, newInvalidValueError(e, p.Name, err)
	}
	old := e.values[p.Name]
	if value.Equal(old, v) {
		return writeResult{}, nil
	}

	a := e.aspect
	if a.inFlight[p.Name] {
		return writeResult{}, nil
	}
	a.inFlight[p.Name] = true
	defer delete(a.inFlight, p.Name)

	s := a.session
	var oldKey EntityKey
	if s != nil && p.IsPartOfKey() {
		oldKey = e.Key()
		vals := oldKey.Values()
		vals[p.KeyIndex()] = v
		newKey := EntityKey{typ: e.typ, values: vals}
		if resident := s.findFamily(newKey); resident != nil && resident != e {
			return writeResult{}, newDuplicateIdentityError(newKey)
		}
	}

	a.recordOriginal(p, old)
	e.values[p.Name] = v

	if s != nil {
		if p.IsPartOfKey() {
			if err := s.afterKeyChange(e, oldKey); err != nil {
				return writeResult{}, err
			}
		}
		if p.IsForeignKey() {
			s.afterForeignKeyChange(e, p, old)
		}
		a.promote(p)
		if s.validation.OnPropertyChange {
			a.validateProperty(p)
		}
	}
	return writeResult{changed: true, property: p.Name, old: old, new: v}, nil
}

// setNavigation runs the pipeline for a scalar navigation.
func (e *Entity) setNavigation(nav *metadata.NavigationProperty, target *Entity) (writeResult, error) {
	a := e.aspect
	s := a.session
	if target != nil {
		if !target.typ.IsAssignableTo(nav.TargetType()) {
			return writeResult{}, newInvalidValueError(e, nav.Name,
				errNotAssignable(target.typ, nav.TargetType()))
		}
		ts := target.aspect.session
		switch {
		case s == nil && ts == nil:
			return writeResult{}, newNotAttachedError(e, nav.Name)
		case s != nil && ts != nil && s != ts:
			return writeResult{}, newForeignSessionError(target)
		case s == nil:
			if _, err := ts.attach(e, Added, Disallowed, ActionAttach); err != nil {
				return writeResult{}, err
			}
			s = ts
		case ts == nil:
			if _, err := s.attach(target, Added, Disallowed, ActionAttach); err != nil {
				return writeResult{}, err
			}
		}
	} else if s == nil {
		return writeResult{}, newNotAttachedError(e, nav.Name)
	}

	if a.inFlight[nav.Name] {
		return writeResult{}, nil
	}
	old := e.Navigation(nav.Name)
	if old == target {
		return writeResult{}, nil
	}
	a.inFlight[nav.Name] = true
	defer delete(a.inFlight, nav.Name)

	s.relinkScalar(e, nav, target)

	// Dependent side: the foreign keys follow the target's key.
	if fks := nav.ForeignKeyProperties(); len(fks) > 0 {
		s.unresolved.removeChild(nav, e)
		if err := s.writeForeignKeys(e, fks, keyValuesOrNull(target, len(fks))); err != nil {
			return writeResult{}, err
		}
	}

	// Principal side of a one-to-one: the foreign keys live on the target.
	if inv := nav.InverseProperty(); inv != nil && inv.IsScalar && len(nav.ForeignKeyProperties()) == 0 {
		if fks := inv.ForeignKeyProperties(); len(fks) > 0 {
			if old != nil {
				if err := s.writeForeignKeys(old, fks, keyValuesOrNull(nil, len(fks))); err != nil {
					return writeResult{}, err
				}
			}
			if target != nil {
				if err := s.writeForeignKeys(target, fks, e.Key().values); err != nil {
					return writeResult{}, err
				}
			}
		}
	}
	return writeResult{changed: true, property: nav.Name, oldTarget: old, newTarget: target}, nil
}

func keyValuesOrNull(target *Entity, n int) []value.Value {
	if target != nil {
		return target.Key().values
	}
	out := make([]value.Value, n)
	for i := range out {
		out[i] = value.Null{}
	}
	return out
}

func (s *Session) writeForeignKeys(e *Entity, fks []*metadata.DataProperty, vals []value.Value) error {
	for i, fk := range fks {
		if _, err := e.setData(fk, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// afterKeyChange moves the index entry and carries the new key into every
// dependent's foreign keys.
func (s *Session) afterKeyChange(e *Entity, oldKey EntityKey) error {
	newKey := e.Key()
	s.partition(e.typ).rekey(oldKey.valueString(), newKey.valueString())
	e.aspect.tempKey = false
	s.logger.Debug("entity rekeyed", "from", oldKey.String(), "to", newKey.String())

	for _, nav := range e.typ.NavigationProperties() {
		inv := nav.InverseProperty()
		switch {
		case !nav.IsScalar && inv != nil && len(inv.ForeignKeyProperties()) > 0:
			for _, child := range e.Collection(nav.Name) {
				if err := s.writeForeignKeys(child, inv.ForeignKeyProperties(), newKey.values); err != nil {
					return err
				}
			}
		case !nav.IsScalar && len(nav.InverseForeignKeyProperties()) > 0:
			for _, child := range e.Collection(nav.Name) {
				if err := s.writeForeignKeys(child, nav.InverseForeignKeyProperties(), newKey.values); err != nil {
					return err
				}
			}
		case nav.IsScalar && len(nav.ForeignKeyProperties()) == 0 && inv != nil && len(inv.ForeignKeyProperties()) > 0:
			if dep := e.Navigation(nav.Name); dep != nil {
				if err := s.writeForeignKeys(dep, inv.ForeignKeyProperties(), newKey.values); err != nil {
					return err
				}
			}
		}
	}

	var cascadeErr error
	for _, nav := range e.typ.InboundForeignKeyNavigations() {
		if nav.InverseProperty() != nil {
			continue
		}
		for _, part := range s.family(nav.Owner()) {
			part.cascadeForeignKey(nav.ForeignKeyProperties(), oldKey.values, newKey.values,
				func(dep *Entity, fk *metadata.DataProperty, v value.Value) {
					if _, err := dep.setData(fk, v); err != nil && cascadeErr == nil {
						cascadeErr = err
					}
				})
		}
	}
	if cascadeErr != nil {
		return cascadeErr
	}

	s.drainPending(e)
	return nil
}

// afterForeignKeyChange re-resolves the relationships p participates in.
func (s *Session) afterForeignKeyChange(e *Entity, p *metadata.DataProperty, old value.Value) {
	for _, nav := range p.ForeignKeyOf() {
		if e.typ.IsAssignableTo(nav.Owner()) {
			s.syncNavigationFromKeys(e, nav)
		}
	}
	for _, nav := range p.InverseForeignKeyOf() {
		// Bidirectional collections follow the dependent's scalar navigation.
		if nav.InverseProperty() != nil || !e.typ.IsAssignableTo(nav.TargetType()) {
			continue
		}
		fks := nav.InverseForeignKeyProperties()
		oldVals := e.valuesOf(fks)
		for i, fk := range fks {
			if fk == p {
				oldVals[i] = old
			}
		}
		s.syncPrincipalCollection(e, nav, oldVals)
	}
}

// syncNavigationFromKeys points a dependent's scalar navigation at whatever
// its foreign keys identify, deferring when the parent is not resident.
func (s *Session) syncNavigationFromKeys(e *Entity, nav *metadata.NavigationProperty) {
	if e.aspect.inFlight[nav.Name] {
		return
	}
	s.unresolved.removeChild(nav, e)
	key := EntityKey{typ: nav.TargetType(), values: e.valuesOf(nav.ForeignKeyProperties())}
	if key.hasNull() || e.aspect.state == Deleted {
		s.relinkScalar(e, nav, nil)
		return
	}
	parent := s.findLinkable(key)
	if parent == nil {
		s.relinkScalar(e, nav, nil)
		s.unresolved.AddChild(key, nav, e)
		s.logger.Debug("reference deferred", "child", e.keyString(), "navigation", nav.QualifiedName(), "parent", key.String())
		return
	}
	s.relinkScalar(e, nav, parent)
}

// syncPrincipalCollection moves e between principal collections for a
// relationship only the principal can navigate.
func (s *Session) syncPrincipalCollection(e *Entity, nav *metadata.NavigationProperty, oldVals []value.Value) {
	oldKey := EntityKey{typ: nav.Owner(), values: oldVals}
	if !oldKey.hasNull() {
		if prev := s.findLinkable(oldKey); prev != nil {
			s.collectionRemove(prev, nav, e)
		}
	}
	s.unresolved.removeChild(nav, e)

	key := EntityKey{typ: nav.Owner(), values: e.valuesOf(nav.InverseForeignKeyProperties())}
	if key.hasNull() || e.aspect.state == Deleted {
		return
	}
	if parent := s.findLinkable(key); parent != nil {
		s.collectionAdd(parent, nav, e)
		return
	}
	s.unresolved.AddChild(key, nav, e)
	s.logger.Debug("reference deferred", "child", e.keyString(), "navigation", nav.QualifiedName(), "parent", key.String())
}
