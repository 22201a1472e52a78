// Package value provides the typed property values stored in cached entities.
//
// This package contains leaf types only. Every other internal package imports
// value; value imports nothing internal.
//
// Key design constraints:
//   - Value is a sealed interface; only the types in this package implement it
//   - Null is an explicit value, never a nil interface
//   - Coerce is the single entry point from raw Go values to typed values
//   - Equal is type-aware: Int(1) equals Float(1.0), times compare by instant
//   - Guid values are always lower-case canonical UUID strings
//   - KeyString renders NFC-normalized strings so keys are stable across sources
package value
