package queryir

import "github.com/roach88/graphcache/internal/value"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal
//   - In: field IN (literals)
//   - And: all predicates must be true
//   - Or: at least one predicate must be true
type Predicate interface {
	predicateNode()
}

// Select represents table access with filtering.
//
// Semantics:
//
//	SELECT <bindings> FROM <from> WHERE <filter> ORDER BY <order_by>
//
// Example:
//
//	Select{
//	  From: "OrderLine",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "orderID", Value: value.Int(7)},
//	    In{Field: "lineNo", Values: []value.Value{value.Int(1), value.Int(2)}},
//	  }},
//	  Bindings: map[string]string{"orderID": "orderID", "lineNo": "lineNo"},
//	  OrderBy:  []string{"orderID", "lineNo"},
//	}
type Select struct {
	From     string            // Table name, the entity type name
	Filter   Predicate         // WHERE conditions (nil = no filter)
	Bindings map[string]string // source_field → result column
	OrderBy  []string          // Ordering columns (empty = backend default)
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
type Equals struct {
	Field string
	Value value.Value
}

func (Equals) predicateNode() {}

// In matches rows whose field equals any of Values.
//
// An empty Values list matches nothing.
type In struct {
	Field  string
	Values []value.Value
}

func (In) predicateNode() {}

// And represents a conjunction of predicates. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
