package cache

import (
	"maps"
	"slices"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// Aspect is the per-entity change-tracking control block.
//
// An aspect is owned by exactly one entity. Detach clears it; it is never
// pooled or shared.
type Aspect struct {
	entity  *Entity
	session *Session
	ref     ref
	state   EntityState

	original   map[string]value.Value
	errors     map[string]ValidationError
	loaded     map[string]bool
	inFlight   map[string]bool
	beingSaved bool
	tempKey    bool

	observers observerList
	gate      eventGate
}

func newAspect(e *Entity) *Aspect {
	return &Aspect{
		entity:   e,
		state:    Detached,
		original: make(map[string]value.Value),
		errors:   make(map[string]ValidationError),
		loaded:   make(map[string]bool),
		inFlight: make(map[string]bool),
	}
}

// Entity returns the owning entity.
func (a *Aspect) Entity() *Entity { return a.entity }

// Session returns the session the entity is attached to, or nil.
func (a *Aspect) Session() *Session { return a.session }

// State returns the current change state.
func (a *Aspect) State() EntityState { return a.state }

// IsBeingSaved reports whether a save batch holds the entity.
func (a *Aspect) IsBeingSaved() bool { return a.beingSaved }

// HasTemporaryKey reports whether the key was generated locally and has
// not been replaced since.
func (a *Aspect) HasTemporaryKey() bool { return a.tempKey }

// OriginalValues returns a copy of the pre-change values of dirty properties.
func (a *Aspect) OriginalValues() map[string]value.Value {
	return maps.Clone(a.original)
}

// OriginalValue returns the pre-change value of one property.
func (a *Aspect) OriginalValue(name string) (value.Value, bool) {
	v, ok := a.original[name]
	return v, ok
}

// IsNavigationLoaded reports whether LoadNavigation completed for name.
func (a *Aspect) IsNavigationLoaded(name string) bool { return a.loaded[name] }

// ValidationErrors returns the current errors ordered by property, then
// validator.
func (a *Aspect) ValidationErrors() []ValidationError {
	out := slices.Collect(maps.Values(a.errors))
	sortValidationErrors(out)
	return out
}

// HasValidationErrors reports whether any validation error is recorded.
func (a *Aspect) HasValidationErrors() bool { return len(a.errors) > 0 }

// recordOriginal keeps the first pre-write value of a mapped property.
func (a *Aspect) recordOriginal(p *metadata.DataProperty, old value.Value) {
	if p.Unmapped || a.session == nil || a.session.loading > 0 {
		return
	}
	if a.state != Unchanged && a.state != Modified {
		return
	}
	if _, ok := a.original[p.Name]; !ok {
		a.original[p.Name] = old
	}
}

// promote moves an Unchanged entity to Modified after a mapped write.
func (a *Aspect) promote(p *metadata.DataProperty) {
	if p.Unmapped || a.state != Unchanged || a.session.loading > 0 {
		return
	}
	a.setState(Modified, ActionEntityStateChange)
}

func (a *Aspect) setState(state EntityState, action EntityAction) {
	if a.state == state && action == ActionEntityStateChange {
		return
	}
	a.state = state
	a.session.publishEntityChanged(a.entity, action)
}

func (a *Aspect) guard(op string) error {
	if a.beingSaved {
		return newIllegalStateError(a.entity, "cannot %s while the entity is being saved", op)
	}
	return nil
}

// SetState assigns a state explicitly. The entity must be attached; use
// Session.Attach to leave Detached.
func (a *Aspect) SetState(state EntityState) error {
	if err := a.guard("change state"); err != nil {
		return err
	}
	if a.session == nil {
		return newIllegalStateError(a.entity, "cannot set state %s on a detached entity", state)
	}
	if state == a.state {
		return nil
	}

	s := a.session
	switch state {
	case Detached:
		s.detach(a.entity, ActionDetach)
	case Deleted:
		return a.Delete()
	case Unchanged, Added:
		wasDeleted := a.state == Deleted
		clear(a.original)
		a.setState(state, ActionEntityStateChange)
		if wasDeleted {
			s.linkAttached(a.entity)
		}
	case Modified:
		wasDeleted := a.state == Deleted
		a.setState(Modified, ActionEntityStateChange)
		if wasDeleted {
			s.linkAttached(a.entity)
		}
	}
	return nil
}

// Delete marks the entity for deletion. An Added entity never existed
// outside the session, so it is detached instead.
func (a *Aspect) Delete() error {
	if err := a.guard("delete"); err != nil {
		return err
	}
	s := a.session
	switch a.state {
	case Detached:
		return newIllegalStateError(a.entity, "cannot delete a detached entity")
	case Deleted:
		return nil
	case Added:
		s.detach(a.entity, ActionDetach)
		return nil
	}

	s.sever(a.entity)
	a.setState(Deleted, ActionEntityStateChange)
	s.logger.Debug("entity deleted", "key", a.entity.keyString())
	return nil
}

// AcceptChanges commits the entity's pending changes locally. Deleted
// entities leave the cache.
func (a *Aspect) AcceptChanges() error {
	if err := a.guard("accept changes"); err != nil {
		return err
	}
	return a.accept()
}

func (a *Aspect) accept() error {
	s := a.session
	switch a.state {
	case Detached, Unchanged:
		return nil
	case Deleted:
		s.evict(a.entity, ActionAcceptChanges)
		return nil
	}
	clear(a.original)
	a.setState(Unchanged, ActionAcceptChanges)
	return nil
}

// RejectChanges restores every original value and returns the entity to
// Unchanged. Added entities are detached; Deleted ones are relinked.
func (a *Aspect) RejectChanges() error {
	if err := a.guard("reject changes"); err != nil {
		return err
	}
	s := a.session
	switch a.state {
	case Detached, Unchanged:
		return nil
	case Added:
		s.detach(a.entity, ActionRejectChanges)
		return nil
	}

	wasDeleted := a.state == Deleted
	names := slices.Sorted(maps.Keys(a.original))
	s.loading++
	for _, name := range names {
		p, _ := a.entity.typ.DataProperty(name)
		if _, err := a.entity.setData(p, a.original[name]); err != nil {
			s.loading--
			return err
		}
	}
	s.loading--

	clear(a.original)
	a.replaceErrors(nil, func(ValidationError) bool { return true })
	a.setState(Unchanged, ActionRejectChanges)
	if wasDeleted {
		s.linkAttached(a.entity)
	}
	return nil
}

// Subscribe registers an observer for events about this entity only.
// The returned function unsubscribes.
func (a *Aspect) Subscribe(o Observer) func() {
	return a.observers.add(o)
}

// SetEventEnabled overrides the session's setting for one event kind on
// this entity.
func (a *Aspect) SetEventEnabled(kind EventKind, enabled bool) {
	a.gate.set(kind, enabled)
}

// ResetEventEnabled removes an override set by SetEventEnabled.
func (a *Aspect) ResetEventEnabled(kind EventKind) {
	a.gate.unset(kind)
}

// reset returns the aspect to a pristine Detached state.
func (a *Aspect) reset() {
	a.session = nil
	a.ref = ref{}
	a.state = Detached
	a.original = make(map[string]value.Value)
	a.errors = make(map[string]ValidationError)
	a.loaded = make(map[string]bool)
	a.inFlight = make(map[string]bool)
	a.beingSaved = false
	a.observers = observerList{next: a.observers.next}
	a.gate = eventGate{}
}
