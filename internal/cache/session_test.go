package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/testutil"
	"github.com/roach88/graphcache/internal/value"
)

func TestNewSession_RequiresResolvedRegistry(t *testing.T) {
	reg := metadata.NewRegistry()
	require.NoError(t, reg.Add(testutil.ShopTypes()...))

	_, err := NewSession(reg)
	assert.True(t, IsMissingMetadata(err))

	_, err = NewSession(testutil.ShopRegistry(t), WithInterceptor("Ghost", DefaultInterceptor{}))
	assert.True(t, IsMissingMetadata(err))
}

func TestSession_CreateEntity(t *testing.T) {
	s := newTestSession(t)

	line := create(t, s, "OrderLine", map[string]any{"orderID": 1, "lineNo": "2"})
	assert.Equal(t, Detached, line.Aspect().State())
	assert.Equal(t, value.Int(2), line.Get("lineNo"), "values are coerced")
	assert.Equal(t, value.Int(1), line.Get("qty"), "defaults are applied")
	assert.Equal(t, value.Null{}, line.Get("product"))

	_, err := s.CreateEntity("Ghost", nil)
	assert.True(t, IsMissingMetadata(err))

	_, err = s.CreateEntity("Customer", map[string]any{"shoeSize": 9})
	assert.Equal(t, ErrCodeUnknownProperty, ErrorCodeOf(err))

	_, err = s.CreateEntity("Customer", map[string]any{"id": "one"})
	assert.Equal(t, ErrCodeInvalidValue, ErrorCodeOf(err))
}

func TestSession_AttachAndFind(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)

	found, ok := s.FindByKey(key(t, s, "Customer", 1))
	require.True(t, ok)
	assert.Same(t, c, found)
	assert.Same(t, s, c.Aspect().Session())
	assert.Equal(t, 1, s.Len())

	_, ok = s.FindByKey(key(t, s, "Customer", 2))
	assert.False(t, ok)
}

func TestSession_AttachUnchangedHasNoOriginals(t *testing.T) {
	s := newTestSession(t)
	e := create(t, s, "Customer", map[string]any{"id": 1, "name": "a"})
	require.NoError(t, e.Set("name", "b"))

	attached, err := s.Attach(e, Unchanged, Disallowed)
	require.NoError(t, err)
	assert.Empty(t, attached.Aspect().OriginalValues())
	assert.Equal(t, Unchanged, attached.Aspect().State())
}

func TestSession_AttachSameInstanceResetsState(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1}, Unchanged)

	again, err := s.Attach(c, Modified, Disallowed)
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.Equal(t, Modified, c.Aspect().State())
	assert.Equal(t, 1, s.Len())
}

func TestSession_AttachDetachedStateIsIllegal(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Attach(create(t, s, "Customer", map[string]any{"id": 1}), Detached, Disallowed)
	assert.True(t, IsIllegalStateTransition(err))
}

func TestSession_AttachForeignSession(t *testing.T) {
	s1 := newTestSession(t)
	c := attachNew(t, s1, "Customer", map[string]any{"id": 1}, Unchanged)

	s2, err := NewSession(s1.Registry())
	require.NoError(t, err)
	_, err = s2.Attach(c, Unchanged, Disallowed)
	assert.Equal(t, ErrCodeForeignSession, ErrorCodeOf(err))

	other := newTestSession(t)
	stranger := create(t, other, "Customer", map[string]any{"id": 2})
	_, err = s1.Attach(stranger, Unchanged, Disallowed)
	assert.True(t, IsMissingMetadata(err), "descriptors from another registry are rejected")
}

// =============================================================================
// Merge strategies
// =============================================================================

func TestSession_MergeDisallowed(t *testing.T) {
	s := newTestSession(t)
	attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)

	dup := create(t, s, "Customer", map[string]any{"id": 1, "name": "Bob"})
	_, err := s.Attach(dup, Unchanged, Disallowed)
	require.Error(t, err)
	assert.True(t, IsDuplicateIdentity(err))
	assert.Contains(t, err.Error(), "Customer-1")
	assert.Equal(t, Detached, dup.Aspect().State())
}

func TestSession_MergeOverwriteChanges(t *testing.T) {
	s := newTestSession(t)
	resident := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)
	require.NoError(t, resident.Set("email", "ann@example.com"))
	require.Equal(t, Modified, resident.Aspect().State())

	incoming := create(t, s, "Customer", map[string]any{"id": 1, "name": "Bob"})
	got, err := s.Attach(incoming, Unchanged, OverwriteChanges)
	require.NoError(t, err)

	assert.Same(t, resident, got)
	assert.Equal(t, value.String("Bob"), resident.Get("name"))
	assert.Equal(t, value.Null{}, resident.Get("email"))
	assert.Equal(t, Unchanged, resident.Aspect().State())
	assert.Empty(t, resident.Aspect().OriginalValues())
	assert.Equal(t, Detached, incoming.Aspect().State(), "incoming instance is discarded")
}

func TestSession_MergeOverwriteSetsRequestedState(t *testing.T) {
	s := newTestSession(t)
	resident := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)

	_, err := s.Attach(create(t, s, "Customer", map[string]any{"id": 1, "name": "Bob"}), Modified, OverwriteChanges)
	require.NoError(t, err)
	assert.Equal(t, Modified, resident.Aspect().State())
	assert.Equal(t, value.String("Bob"), resident.Get("name"))
}

func TestSession_MergePreserveChanges(t *testing.T) {
	s := newTestSession(t)
	clean := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)
	dirty := attachNew(t, s, "Customer", map[string]any{"id": 2, "name": "Cy"}, Unchanged)
	require.NoError(t, dirty.Set("name", "Cyd"))

	_, err := s.Attach(create(t, s, "Customer", map[string]any{"id": 1, "name": "Anne"}), Unchanged, PreserveChanges)
	require.NoError(t, err)
	assert.Equal(t, value.String("Anne"), clean.Get("name"), "unchanged resident is refreshed")

	got, err := s.Attach(create(t, s, "Customer", map[string]any{"id": 2, "name": "Server"}), Unchanged, PreserveChanges)
	require.NoError(t, err)
	assert.Same(t, dirty, got)
	assert.Equal(t, value.String("Cyd"), dirty.Get("name"), "dirty resident is preserved")
	assert.Equal(t, Modified, dirty.Aspect().State())
}

func TestSession_MergeSkip(t *testing.T) {
	s := newTestSession(t)
	resident := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)

	got, err := s.Attach(create(t, s, "Customer", map[string]any{"id": 1, "name": "Bob"}), Unchanged, SkipMerge)
	require.NoError(t, err)
	assert.Same(t, resident, got)
	assert.Equal(t, value.String("Ann"), resident.Get("name"))
}

func TestSession_IdentityAcrossHierarchy(t *testing.T) {
	s := newTestSession(t)
	m := attachNew(t, s, "Manager", map[string]any{"id": 5, "name": "Mo"}, Unchanged)

	found, ok := s.FindByKey(key(t, s, "Person", 5))
	require.True(t, ok, "base-type lookups find subtype instances")
	assert.Same(t, m, found)

	_, ok = s.FindByKey(key(t, s, "Employee", 5))
	assert.True(t, ok)

	_, err := s.Attach(create(t, s, "Employee", map[string]any{"id": 5}), Unchanged, OverwriteChanges)
	assert.True(t, IsDuplicateIdentity(err), "a sibling type cannot merge into another type's identity")

	people, err := s.Entities("Person")
	require.NoError(t, err)
	assert.Equal(t, []*Entity{m}, people)
}

// =============================================================================
// Detach
// =============================================================================

func TestSession_DetachIdempotent(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "a"}, Unchanged)
	require.NoError(t, c.Set("name", "b"))

	got, err := s.Detach(c)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Equal(t, Detached, c.Aspect().State())
	assert.Empty(t, c.Aspect().OriginalValues())
	assert.Nil(t, c.Aspect().Session())
	assert.Equal(t, 0, s.Len())

	r := record(s)
	got, err = s.Detach(c)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Empty(t, r.events, "second detach is a no-op")
}

func TestSession_DetachReusesSlot(t *testing.T) {
	s := newTestSession(t)
	a := attachNew(t, s, "Customer", map[string]any{"id": 1}, Unchanged)
	oldRef := a.aspect.ref
	_, err := s.Detach(a)
	require.NoError(t, err)

	b := attachNew(t, s, "Customer", map[string]any{"id": 2}, Unchanged)
	assert.Equal(t, oldRef.slot, b.aspect.ref.slot, "tombstoned slot is reused")
	assert.Nil(t, oldRef.resolve(), "stale refs stop resolving")
	assert.Same(t, b, b.aspect.ref.resolve())
}

func TestSession_DetachSeversRelationships(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1}, Unchanged)
	o := attachNew(t, s, "Order", map[string]any{"id": 10, "customerID": 1}, Unchanged)
	require.Same(t, c, o.Navigation("customer"))

	_, err := s.Detach(c)
	require.NoError(t, err)
	assert.Nil(t, o.Navigation("customer"))
	assert.Equal(t, value.Int(1), o.Get("customerID"), "dependents keep their foreign keys")
	assert.Equal(t, Unchanged, o.Aspect().State())
	assert.Equal(t, 1, s.Unresolved().Len(), "dependent waits for the parent to return")

	back := attachNew(t, s, "Customer", map[string]any{"id": 1}, Unchanged)
	assert.Same(t, back, o.Navigation("customer"))
	assert.Equal(t, []*Entity{o}, back.Collection("orders"))
	assert.Equal(t, 0, s.Unresolved().Len())
}

func TestSession_ChangesAndHasChanges(t *testing.T) {
	s := newTestSession(t)
	a := attachNew(t, s, "Customer", map[string]any{"id": 1}, Unchanged)
	assert.False(t, s.HasChanges())
	assert.Empty(t, s.Changes())

	b := attachNew(t, s, "Customer", map[string]any{"id": 2}, Added)
	require.NoError(t, a.Set("name", "x"))
	n := attachNew(t, s, "Note", map[string]any{"id": 3}, Unchanged)
	require.NoError(t, s.Delete(n))

	assert.True(t, s.HasChanges())
	assert.Equal(t, []*Entity{a, b, n}, s.Changes())
	assert.Equal(t, []*Entity{b}, s.Changes(Added))
	assert.Equal(t, []*Entity{a, n}, s.Changes(Modified, Deleted))
}

func TestSession_Clear(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1}, Unchanged)
	attachNew(t, s, "Order", map[string]any{"id": 10, "customerID": 1}, Unchanged)
	attachNew(t, s, "Order", map[string]any{"id": 11, "customerID": 9}, Unchanged)
	r := record(s)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Unresolved().Len())
	assert.Equal(t, Detached, c.Aspect().State())

	var cleared int
	for _, ev := range r.ofKind(KindEntityChanged) {
		if ev.(EntityChanged).Action == ActionClear {
			cleared++
		}
	}
	assert.Equal(t, 3, cleared)
}
