package cache

import (
	"github.com/roach88/graphcache/internal/metadata"
)

// UnresolvedRef is a child waiting for a parent that is not resident yet.
//
// For a dependent-side reference Navigation is the child's scalar
// navigation. For a principal-only relationship it is the parent's
// collection navigation, which the child joins once the parent attaches.
type UnresolvedRef struct {
	Navigation *metadata.NavigationProperty
	Child      *Entity
}

// UnresolvedTable maps parent key strings to the children referencing them.
//
// Entries are drained, never polled: attach is the only consumer.
type UnresolvedTable struct {
	entries map[string][]UnresolvedRef
}

func newUnresolvedTable() *UnresolvedTable {
	return &UnresolvedTable{entries: make(map[string][]UnresolvedRef)}
}

// AddChild records that child references parentKey through nav.
// Adding the same pair twice is a no-op.
func (u *UnresolvedTable) AddChild(parentKey EntityKey, nav *metadata.NavigationProperty, child *Entity) {
	k := parentKey.String()
	for _, r := range u.entries[k] {
		if r.Navigation == nav && r.Child == child {
			return
		}
	}
	u.entries[k] = append(u.entries[k], UnresolvedRef{Navigation: nav, Child: child})
}

// RemoveChildren drops every entry for parentKey.
func (u *UnresolvedTable) RemoveChildren(parentKey EntityKey) {
	delete(u.entries, parentKey.String())
}

// Tuples returns the entries a parent of type t with the given key values
// satisfies. The relationship may be declared against any ancestor of t, so
// the ancestor chain is searched nearest first.
func (u *UnresolvedTable) Tuples(key EntityKey) []UnresolvedRef {
	var out []UnresolvedRef
	for _, t := range key.typ.Ancestors() {
		out = append(out, u.entries[key.withType(t).String()]...)
	}
	return out
}

// take returns and removes the entries Tuples would return.
func (u *UnresolvedTable) take(key EntityKey) []UnresolvedRef {
	out := u.Tuples(key)
	for _, t := range key.typ.Ancestors() {
		u.RemoveChildren(key.withType(t))
	}
	return out
}

// removeChild drops child's entries for nav, under any parent key.
func (u *UnresolvedTable) removeChild(nav *metadata.NavigationProperty, child *Entity) {
	u.filter(func(r UnresolvedRef) bool { return r.Navigation == nav && r.Child == child })
}

// removeEntity drops every entry whose child is e.
func (u *UnresolvedTable) removeEntity(e *Entity) {
	u.filter(func(r UnresolvedRef) bool { return r.Child == e })
}

func (u *UnresolvedTable) filter(drop func(UnresolvedRef) bool) {
	for k, refs := range u.entries {
		kept := refs[:0]
		for _, r := range refs {
			if !drop(r) {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(u.entries, k)
		} else {
			u.entries[k] = kept
		}
	}
}

// Len returns the total number of pending entries.
func (u *UnresolvedTable) Len() int {
	n := 0
	for _, refs := range u.entries {
		n += len(refs)
	}
	return n
}

func (u *UnresolvedTable) reset() {
	u.entries = make(map[string][]UnresolvedRef)
}
