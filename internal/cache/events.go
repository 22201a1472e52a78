package cache

import (
	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// EventKind identifies a category of change notification.
type EventKind int

const (
	KindPropertyChanged EventKind = iota
	KindRelationshipChanged
	KindValidationErrorsChanged
	KindEntityChanged
)

var kindNames = [...]string{
	KindPropertyChanged:         "property_changed",
	KindRelationshipChanged:     "relationship_changed",
	KindValidationErrorsChanged: "validation_errors_changed",
	KindEntityChanged:           "entity_changed",
}

// String returns the snake_case kind name used in traces and metrics.
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseEventKind parses a kind name as produced by String.
func ParseEventKind(name string) (EventKind, bool) {
	for i, n := range kindNames {
		if n == name {
			return EventKind(i), true
		}
	}
	return 0, false
}

// EntityAction says why an EntityChanged event was published.
type EntityAction int

const (
	ActionAttach EntityAction = iota
	ActionAttachOnQuery
	ActionAttachOnImport
	ActionDetach
	ActionMergeOnQuery
	ActionMergeOnImport
	ActionMergeOnAttach
	ActionEntityStateChange
	ActionAcceptChanges
	ActionRejectChanges
	ActionClear
)

var actionNames = [...]string{
	ActionAttach:            "Attach",
	ActionAttachOnQuery:     "AttachOnQuery",
	ActionAttachOnImport:    "AttachOnImport",
	ActionDetach:            "Detach",
	ActionMergeOnQuery:      "MergeOnQuery",
	ActionMergeOnImport:     "MergeOnImport",
	ActionMergeOnAttach:     "MergeOnAttach",
	ActionEntityStateChange: "EntityStateChange",
	ActionAcceptChanges:     "AcceptChanges",
	ActionRejectChanges:     "RejectChanges",
	ActionClear:             "Clear",
}

// String returns the action name.
func (a EntityAction) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "Unknown"
	}
	return actionNames[a]
}

// mergeAction maps an attach action to the action reported for a merge.
func (a EntityAction) mergeAction() EntityAction {
	switch a {
	case ActionAttachOnQuery:
		return ActionMergeOnQuery
	case ActionAttachOnImport:
		return ActionMergeOnImport
	default:
		return ActionMergeOnAttach
	}
}

// Event is a change notification.
// This is a sealed interface - only types in this package implement it.
type Event interface {
	Kind() EventKind
	Sequence() int64
	event()
}

// PropertyChanged reports one external property write. For navigations,
// OldTarget and NewTarget are set and Old/New are nil.
type PropertyChanged struct {
	Seq       int64
	Entity    *Entity
	Property  string
	Old, New  value.Value
	OldTarget *Entity
	NewTarget *Entity
}

// RelationshipChanged reports membership changes of a collection navigation.
type RelationshipChanged struct {
	Seq        int64
	Owner      *Entity
	Navigation string
	Added      []*Entity
	Removed    []*Entity
}

// ValidationErrorsChanged reports the net change of an entity's errors.
type ValidationErrorsChanged struct {
	Seq     int64
	Entity  *Entity
	Added   []ValidationError
	Removed []ValidationError
}

// EntityChanged reports an attach, detach, merge or state transition.
type EntityChanged struct {
	Seq    int64
	Entity *Entity
	Action EntityAction
	State  EntityState
}

func (PropertyChanged) Kind() EventKind         { return KindPropertyChanged }
func (RelationshipChanged) Kind() EventKind     { return KindRelationshipChanged }
func (ValidationErrorsChanged) Kind() EventKind { return KindValidationErrorsChanged }
func (EntityChanged) Kind() EventKind           { return KindEntityChanged }

func (e PropertyChanged) Sequence() int64         { return e.Seq }
func (e RelationshipChanged) Sequence() int64     { return e.Seq }
func (e ValidationErrorsChanged) Sequence() int64 { return e.Seq }
func (e EntityChanged) Sequence() int64           { return e.Seq }

func (PropertyChanged) event()         {}
func (RelationshipChanged) event()     {}
func (ValidationErrorsChanged) event() {}
func (EntityChanged) event()           {}

// Observer receives events synchronously, after the mutation completed.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

type observerEntry struct {
	id int
	o  Observer
}

type observerList struct {
	next    int
	entries []observerEntry
}

func (l *observerList) add(o Observer) func() {
	l.next++
	id := l.next
	l.entries = append(l.entries, observerEntry{id: id, o: o})
	return func() {
		for i, en := range l.entries {
			if en.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

func (l *observerList) notify(ev Event) {
	for _, en := range l.entries {
		en.o.Observe(ev)
	}
}

// eventGate decides whether a kind is published. A gate without an
// override for a kind defers to its parent; the root default is enabled.
type eventGate struct {
	parent    *eventGate
	overrides map[EventKind]bool
}

func (g *eventGate) set(kind EventKind, enabled bool) {
	if g.overrides == nil {
		g.overrides = make(map[EventKind]bool)
	}
	g.overrides[kind] = enabled
}

func (g *eventGate) unset(kind EventKind) {
	delete(g.overrides, kind)
}

func (g *eventGate) enabled(kind EventKind) bool {
	for cur := g; cur != nil; cur = cur.parent {
		if on, ok := cur.overrides[kind]; ok {
			return on
		}
	}
	return true
}

// publish stamps and delivers an event about e: aspect observers first,
// then session observers. build is only called when the event will be
// delivered.
func (s *Session) publish(e *Entity, kind EventKind, build func(seq int64) Event) {
	if !e.aspect.gate.enabled(kind) {
		return
	}
	if s.loading > 0 && s.suppressDuringLoad && kind != KindEntityChanged {
		return
	}
	ev := build(s.clock.Next())
	e.aspect.observers.notify(ev)
	s.observers.notify(ev)
}

func (s *Session) publishPropertyChanged(e *Entity, r writeResult) {
	s.publish(e, KindPropertyChanged, func(seq int64) Event {
		return PropertyChanged{
			Seq:       seq,
			Entity:    e,
			Property:  r.property,
			Old:       r.old,
			New:       r.new,
			OldTarget: r.oldTarget,
			NewTarget: r.newTarget,
		}
	})
}

func (s *Session) publishRelationshipChanged(owner *Entity, nav *metadata.NavigationProperty, added, removed []*Entity) {
	s.publish(owner, KindRelationshipChanged, func(seq int64) Event {
		return RelationshipChanged{Seq: seq, Owner: owner, Navigation: nav.Name, Added: added, Removed: removed}
	})
}

func (s *Session) publishValidationErrorsChanged(e *Entity, added, removed []ValidationError) {
	s.publish(e, KindValidationErrorsChanged, func(seq int64) Event {
		return ValidationErrorsChanged{Seq: seq, Entity: e, Added: added, Removed: removed}
	})
}

func (s *Session) publishEntityChanged(e *Entity, action EntityAction) {
	s.publish(e, KindEntityChanged, func(seq int64) Event {
		return EntityChanged{Seq: seq, Entity: e, Action: action, State: e.aspect.state}
	})
}

// Subscribe registers a session-wide observer. The returned function
// unsubscribes.
func (s *Session) Subscribe(o Observer) func() {
	return s.observers.add(o)
}

// SetEventEnabled enables or disables one event kind for the whole session.
// Aspect-level overrides take precedence.
func (s *Session) SetEventEnabled(kind EventKind, enabled bool) {
	s.gate.set(kind, enabled)
}
