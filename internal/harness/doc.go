// Package harness runs graphcache scenarios: scripted sequences of cache
// operations followed by assertions on the resulting graph.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: order_fixup
//	description: "Orders attached before their customer are fixed up"
//	schema: ../../testdata/schema     # CUE directory, relative to the file
//	options:
//	  validate_on_attach: true
//	steps:
//	  - op: create
//	    as: o
//	    type: Order
//	    values: { id: 10, customerID: 1 }
//	  - op: attach
//	    ref: o
//	    state: Unchanged
//	  - op: set
//	    ref: o
//	    property: customerID
//	    value: 2
//	    expect_error: INVALID_VALUE   # optional
//	assertions:
//	  - type: state
//	    ref: o
//	    expect: Modified
//	  - type: unresolved_count
//	    count: 1
//
// Instead of schema, a scenario may carry its metadata inline in
// schema_source.
//
// # Step Operations
//
//   - create, attach, add_entity: build and attach entities
//   - set, set_nav, add, remove: property and relationship writes
//   - delete, detach, accept, reject, set_state, validate, clear
//   - import: merge raw rows (ImportRows)
//   - query: run an Equals filter against the scenario store, or against
//     resident entities with local: true
//   - save: BeginSave plus Commit into the scenario store, with optional
//     key mappings
//
// # Assertion Types
//
//   - state, property, original_value, nav
//   - collection_contains, collection_count
//   - unresolved_count, resident_count, has_changes
//   - validation_errors, event_count, store_rows
//
// # Deterministic Testing
//
// Every scenario runs against a fresh session and a fresh in-memory store
// with a deterministic clock and guid generator, so the event trace is
// identical across runs and can be compared against golden files (see
// RunWithGolden).
package harness
