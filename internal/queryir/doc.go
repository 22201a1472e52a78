// Package queryir provides the query intermediate representation used to
// fetch entity rows.
//
// A query is built from entity metadata by the cache (key lookups and
// navigation loads) and handed to a backend. Two backends exist:
//
//	[cache.KeyQuery / NavigationQuery] → [Query IR] → [querysql → SQLite]
//	                                                → [Match → resident entities]
//
// The SQL backend reads rows from a store; Match evaluates the same
// predicates against entities already in a session, so a query can be
// answered locally before (or instead of) a round trip.
//
// PORTABLE FRAGMENT:
//
// A query is portable when both backends return the same rows for it:
//   - Select(from, filter, bindings, order_by) with explicit bindings
//   - Predicates: Equals, In, And, Or
//
// Not portable:
//   - Null inside an In list. SQL "x IN (NULL)" matches nothing while
//     Match treats Null as equal to Null. Equals with Null is portable:
//     backends compile it to IS NULL.
//   - Empty bindings (SELECT *)
//   - Empty In lists
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And:
//	case Or:
//	default:
//	    // Impossible - compiler knows all Predicate types
//	}
//
// CRITICAL PATTERNS:
//
// Typed literals: every literal is a value.Value, compared with value.Equal.
// Backends never see raw Go values.
//
// Deterministic order: Select.OrderBy names the columns rows are ordered
// by; backends add a stable tiebreaker so results never depend on storage
// order.
package queryir
