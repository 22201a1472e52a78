package cache

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/graphcache/internal/metadata"
)

// Session is the identity-map cache: one Partition per entity type, the
// unresolved-reference table, observers and options.
//
// A Session is not safe for concurrent use. Every operation runs to
// completion, cascades included, before returning.
type Session struct {
	reg        *metadata.Registry
	partitions map[*metadata.EntityType]*Partition
	unresolved *UnresolvedTable

	logger             *slog.Logger
	clock              Sequencer
	guids              GuidGenerator
	validation         ValidationOptions
	defaultMerge       MergeStrategy
	suppressDuringLoad bool
	interceptors       map[string]Interceptor

	observers observerList
	gate      eventGate

	// loading > 0 while importing, merging, severing or rejecting:
	// writes neither record originals nor promote state.
	loading int
	// depth counts nested pipeline entries; only depth 0 publishes
	// property events.
	depth      int
	nextTempID int64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock sets the sequencer that stamps events.
func WithClock(c Sequencer) Option {
	return func(s *Session) { s.clock = c }
}

// WithKeyGenerator sets the generator for temporary guid keys and save
// batch ids.
func WithKeyGenerator(g GuidGenerator) Option {
	return func(s *Session) { s.guids = g }
}

// WithValidation sets automatic validation options.
func WithValidation(opts ValidationOptions) Option {
	return func(s *Session) { s.validation = opts }
}

// WithDefaultMergeStrategy sets the strategy ImportRows and LoadNavigation
// use. Defaults to PreserveChanges.
func WithDefaultMergeStrategy(m MergeStrategy) Option {
	return func(s *Session) { s.defaultMerge = m }
}

// WithEventSuppressionDuringLoad drops property, relationship and
// validation events while rows are imported or merged.
func WithEventSuppressionDuringLoad(on bool) Option {
	return func(s *Session) { s.suppressDuringLoad = on }
}

// WithInterceptor installs the pipeline interceptor for one entity type.
// Subtypes without their own interceptor inherit it.
func WithInterceptor(typeName string, i Interceptor) Option {
	return func(s *Session) { s.interceptors[typeName] = i }
}

// NewSession creates a session over a resolved registry.
func NewSession(reg *metadata.Registry, opts ...Option) (*Session, error) {
	if reg == nil || !reg.IsResolved() {
		return nil, &Error{Code: ErrCodeMissingMetadata, Message: "registry is not resolved"}
	}
	s := &Session{
		reg:          reg,
		partitions:   make(map[*metadata.EntityType]*Partition),
		unresolved:   newUnresolvedTable(),
		logger:       slog.Default(),
		clock:        NewClock(),
		guids:        UUIDv7Generator{},
		validation:   DefaultValidationOptions(),
		defaultMerge: PreserveChanges,
		interceptors: make(map[string]Interceptor),
	}
	for _, opt := range opts {
		opt(s)
	}
	for name := range s.interceptors {
		if _, ok := reg.Type(name); !ok {
			return nil, newMissingMetadataError(name)
		}
	}
	return s, nil
}

// Registry returns the session's metadata registry.
func (s *Session) Registry() *metadata.Registry { return s.reg }

// Unresolved exposes the unresolved-reference table for inspection.
func (s *Session) Unresolved() *UnresolvedTable { return s.unresolved }

func (s *Session) interceptorFor(t *metadata.EntityType) Interceptor {
	for _, anc := range t.Ancestors() {
		if i, ok := s.interceptors[anc.Name]; ok {
			return i
		}
	}
	return DefaultInterceptor{}
}

// lookupType resolves a type name against the session's registry.
func (s *Session) lookupType(name string) (*metadata.EntityType, error) {
	t, ok := s.reg.Type(name)
	if !ok {
		return nil, newMissingMetadataError(name)
	}
	return t, nil
}

// checkType rejects descriptors from another registry.
func (s *Session) checkType(t *metadata.EntityType) error {
	if own, ok := s.reg.Type(t.Name); !ok || own != t {
		return newMissingMetadataError(t.Name)
	}
	return nil
}

// Key builds an identity key for a registered type.
func (s *Session) Key(typeName string, values ...any) (EntityKey, error) {
	t, err := s.lookupType(typeName)
	if err != nil {
		return EntityKey{}, err
	}
	return NewEntityKey(t, values...)
}

// CreateEntity constructs a Detached entity and applies values.
// Only data properties may be given.
func (s *Session) CreateEntity(typeName string, values map[string]any) (*Entity, error) {
	t, err := s.lookupType(typeName)
	if err != nil {
		return nil, err
	}
	e, err := NewEntity(t)
	if err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		p, ok := t.DataProperty(name)
		if !ok {
			return nil, newUnknownPropertyError(e, name)
		}
		if _, err := e.setData(p, values[name]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddEntity attaches e as Added, generating a temporary key if needed.
func (s *Session) AddEntity(e *Entity) (*Entity, error) {
	return s.attach(e, Added, Disallowed, ActionAttach)
}

// Attach makes e resident in the given state. When another instance with
// the same key is resident, merge decides the outcome; the returned entity
// is the one that is resident afterwards.
func (s *Session) Attach(e *Entity, state EntityState, merge MergeStrategy) (*Entity, error) {
	return s.attach(e, state, merge, ActionAttach)
}

func (s *Session) attach(e *Entity, state EntityState, merge MergeStrategy, action EntityAction) (*Entity, error) {
	a := e.aspect
	if a.session != nil && a.session != s {
		return nil, newForeignSessionError(e)
	}
	if err := s.checkType(e.typ); err != nil {
		return nil, err
	}
	if state == Detached {
		return nil, newIllegalStateError(e, "cannot attach in the Detached state")
	}
	if a.session == s {
		if err := a.SetState(state); err != nil {
			return nil, err
		}
		return e, nil
	}

	if state == Added && needsTemporaryKey(e) {
		if err := s.assignTemporaryKey(e); err != nil {
			return nil, err
		}
	}
	key := e.Key()
	if resident := s.findFamily(key); resident != nil {
		outcome, err := resolveCollision(resident, e, merge)
		if err != nil {
			return nil, err
		}
		if outcome == mergeOverwrite {
			s.overwrite(resident, e, state, action.mergeAction())
		} else {
			s.logger.Debug("merge kept resident", "key", key.String(), "strategy", merge.String())
		}
		return resident, nil
	}

	a.ref = s.partition(e.typ).insert(e, key.valueString())
	a.session = s
	a.state = state
	clear(a.original)
	a.gate.parent = &s.gate
	s.logger.Debug("entity attached", "key", key.String(), "state", state.String())

	s.linkAttached(e)
	if s.validation.OnAttach {
		a.ValidateEntity()
	}
	s.publishEntityChanged(e, action)
	return e, nil
}

// overwrite copies incoming's data values onto resident.
func (s *Session) overwrite(resident, incoming *Entity, state EntityState, action EntityAction) {
	s.loading++
	for _, p := range resident.typ.DataProperties() {
		if p.IsPartOfKey() || incoming.columns != nil && !incoming.columns[p.Name] {
			continue
		}
		if _, err := resident.setData(p, incoming.values[p.Name]); err != nil {
			s.logger.Warn("merge value rejected", "key", resident.keyString(), "property", p.Name, "error", err)
		}
	}
	s.loading--

	ra := resident.aspect
	wasDeleted := ra.state == Deleted
	if state == Unchanged || state == Added {
		clear(ra.original)
	}
	ra.state = state
	switch {
	case wasDeleted && state != Deleted:
		s.linkAttached(resident)
	case !wasDeleted && state == Deleted:
		s.sever(resident)
	}
	s.logger.Debug("entity merged", "key", resident.keyString(), "state", state.String())
	s.publishEntityChanged(resident, action)
}

// Detach removes e from the session. Detaching a detached entity is a
// no-op.
func (s *Session) Detach(e *Entity) (*Entity, error) {
	a := e.aspect
	if a.session == nil {
		return e, nil
	}
	if a.session != s {
		return nil, newForeignSessionError(e)
	}
	if err := a.guard("detach"); err != nil {
		return nil, err
	}
	s.detach(e, ActionDetach)
	return e, nil
}

func (s *Session) detach(e *Entity, action EntityAction) {
	s.unlink(e)
	s.evict(e, action)
}

// evict drops e from its partition and the table without touching edges.
func (s *Session) evict(e *Entity, action EntityAction) {
	a := e.aspect
	s.unresolved.removeEntity(e)
	s.partition(e.typ).remove(e, e.Key().valueString())
	a.state = Detached
	s.logger.Debug("entity detached", "key", e.keyString(), "action", action.String())
	s.publishEntityChanged(e, action)
	a.reset()
}

// FindByKey returns the resident entity with key. Subtypes of the key's
// type are searched too.
func (s *Session) FindByKey(key EntityKey) (*Entity, bool) {
	if key.IsZero() || s.checkType(key.typ) != nil {
		return nil, false
	}
	e := s.findIn(key.typ, key)
	return e, e != nil
}

// Entities returns the resident entities of a type and its subtypes.
func (s *Session) Entities(typeName string) ([]*Entity, error) {
	t, err := s.lookupType(typeName)
	if err != nil {
		return nil, err
	}
	var out []*Entity
	for _, p := range s.family(t) {
		out = append(out, p.Entities()...)
	}
	return out, nil
}

// all returns every resident entity in registration, then slot, order.
func (s *Session) all() []*Entity {
	var out []*Entity
	for _, t := range s.reg.Types() {
		if p, ok := s.partitions[t]; ok {
			out = append(out, p.Entities()...)
		}
	}
	return out
}

// Len returns the number of resident entities.
func (s *Session) Len() int {
	n := 0
	for _, p := range s.partitions {
		n += p.Len()
	}
	return n
}

// Changes returns resident entities in any of states. With no states it
// returns every Added, Modified or Deleted entity.
func (s *Session) Changes(states ...EntityState) []*Entity {
	var out []*Entity
	for _, e := range s.all() {
		st := e.aspect.state
		if len(states) == 0 && st.IsAddedModifiedOrDeleted() || slices.Contains(states, st) {
			out = append(out, e)
		}
	}
	return out
}

// HasChanges reports whether any resident entity has pending changes.
func (s *Session) HasChanges() bool {
	for _, e := range s.all() {
		if e.aspect.state.IsAddedModifiedOrDeleted() {
			return true
		}
	}
	return false
}

// Delete marks e for deletion; see Aspect.Delete.
func (s *Session) Delete(e *Entity) error {
	if sess := e.aspect.session; sess != nil && sess != s {
		return newForeignSessionError(e)
	}
	return e.aspect.Delete()
}

// AcceptChanges accepts every pending change in the session.
func (s *Session) AcceptChanges() error {
	for _, e := range s.Changes() {
		if err := e.aspect.AcceptChanges(); err != nil {
			return fmt.Errorf("accept %s: %w", e.keyString(), err)
		}
	}
	return nil
}

// RejectChanges rolls back every pending change in the session.
func (s *Session) RejectChanges() error {
	for _, e := range s.Changes() {
		if err := e.aspect.RejectChanges(); err != nil {
			return fmt.Errorf("reject %s: %w", e.keyString(), err)
		}
	}
	return nil
}

// Clear detaches every entity and empties the unresolved table.
func (s *Session) Clear() {
	for _, e := range s.all() {
		if e.aspect.session == s {
			s.detach(e, ActionClear)
		}
	}
	s.unresolved.reset()
	s.partitions = make(map[*metadata.EntityType]*Partition)
}
