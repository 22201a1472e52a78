// Package cache implements the identity-map object-graph cache.
//
// A Session keeps exactly one instance per identity key, keeps navigation
// properties and foreign keys consistent in both directions, and tracks
// each entity's change state and original values so pending changes can be
// accepted or rejected.
//
// ARCHITECTURE:
//
//	Entity.Set → Interceptor → pipeline (coerce, compare, guard)
//	    → relationship fix-up → commit → Aspect state transition
//	    → validation → event
//
//	Session.Attach → Partition (identity index) → linkAttached
//	    → drain UnresolvedTable → event
//
// Entities never point at each other. Navigation edges are slot refs
// (partition, slot, generation) resolved through the Partition arena on
// every traversal, so cyclic graphs need no cleanup and detach is an index
// operation.
//
// CRITICAL PATTERNS:
//
// Identity: keys are unique across an inheritance hierarchy. Attach and
// re-keying both check the whole root family before committing anything.
//
// Deferral: a foreign key naming a parent that is not resident is not an
// error. The child is parked in the UnresolvedTable under the parent's key
// and linked when the parent attaches; lookups walk the parent type's
// ancestor chain.
//
// Re-entrancy: each Aspect tracks the properties currently mid-write.
// A cascade that comes back to one of them is dropped, which stops
// FK → navigation → FK loops without locks.
//
// Events: exactly one PropertyChanged per external Set. Cascaded writes
// publish nothing of their own; collection membership changes publish
// RelationshipChanged. Every event carries a sequence number from the
// session clock.
//
// Loading: imports, merges, severing on delete and rejects run with the
// session's loading counter raised. Writes in that mode record no original
// values and never promote Unchanged to Modified.
//
// Thread-safety: a Session and its entities must be used from one
// goroutine at a time.
package cache
