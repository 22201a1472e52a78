// Package store provides SQLite-backed rows and a change-set journal for
// graphcache sessions.
//
// The store holds:
//   - Entity tables: one table per entity type, created by EnsureTable
//   - Change sets: every committed save batch, keyed by content id
//   - Change-set entries: one row per entity in a change set
//
// A Store is both a cache.RowSource (QueryRows feeds Session.ImportRows)
// and a cache.ChangeJournal (WriteChangeSet records a batch and applies it
// to the entity tables).
//
// # Critical Patterns
//
// Content-Addressed Change Sets
//   - id = SHA-256 over the canonical JSON of the change set
//   - Writing the same change set twice is a no-op
//
// Deterministic Query Results
//   - Every query carries ORDER BY (see querysql)
//   - Change sets are read back in seq order
//
// Quoted Identifiers
//   - Entity and property names are always quoted; Order is a keyword
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
