package value

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Equal compares two values with type-aware normalization.
//
// Numbers compare by numeric value across Int and Float, times compare by
// instant regardless of location and guids compare case-insensitively.
// Strings compare in NFC, matching KeyString. Null only equals Null (a nil
// interface counts as Null).
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		return ok && (x == y || norm.NFC.String(string(x)) == norm.NFC.String(string(y)))
	case Int:
		switch y := b.(type) {
		case Int:
			return x == y
		case Float:
			return float64(x) == float64(y)
		}
		return false
	case Float:
		switch y := b.(type) {
		case Float:
			return x == y
		case Int:
			return float64(x) == float64(y)
		}
		return false
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Time:
		y, ok := b.(Time)
		return ok && time.Time(x).Equal(time.Time(y))
	case Guid:
		y, ok := b.(Guid)
		return ok && strings.EqualFold(string(x), string(y))
	default:
		return false
	}
}

// EqualSlices compares two value lists element-wise with Equal.
func EqualSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
