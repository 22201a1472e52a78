package value

import (
	"fmt"
	"time"
)

// Value is a sealed interface representing a typed property value.
// Only Null, String, Int, Float, Bool, Time and Guid implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an absent value.
type Null struct{}

func (Null) value() {}

// String represents a string value.
type String string

func (String) value() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) value() {}

// Float represents a floating point value.
type Float float64

func (Float) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// Time represents an instant. Coerce always stores it in UTC.
type Time time.Time

func (Time) value() {}

// Guid represents a UUID in lower-case canonical text form.
type Guid string

func (Guid) value() {}

// DataType names the declared type of a data property.
type DataType string

const (
	TypeString   DataType = "string"
	TypeInt      DataType = "int"
	TypeFloat    DataType = "float"
	TypeBool     DataType = "bool"
	TypeDateTime DataType = "datetime"
	TypeGuid     DataType = "guid"
)

// ValidTypes defines the allowed data type names.
var ValidTypes = map[DataType]bool{
	TypeString:   true,
	TypeInt:      true,
	TypeFloat:    true,
	TypeBool:     true,
	TypeDateTime: true,
	TypeGuid:     true,
}

// ParseDataType validates a type name.
func ParseDataType(s string) (DataType, error) {
	dt := DataType(s)
	if !ValidTypes[dt] {
		return "", fmt.Errorf("invalid data type %q: must be one of string, int, float, bool, datetime, guid", s)
	}
	return dt, nil
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Zero returns the default value for a non-nullable property of the given type.
func Zero(dt DataType) Value {
	switch dt {
	case TypeString:
		return String("")
	case TypeInt:
		return Int(0)
	case TypeFloat:
		return Float(0)
	case TypeBool:
		return Bool(false)
	case TypeDateTime:
		return Time(time.Unix(0, 0).UTC())
	case TypeGuid:
		return Guid("00000000-0000-0000-0000-000000000000")
	default:
		return Null{}
	}
}

// IsZero reports whether v is Null or the Zero value of its type.
// Used to decide whether an auto-generated key still needs a value.
func IsZero(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case String:
		return val == ""
	case Int:
		return val == 0
	case Float:
		return val == 0
	case Guid:
		return val == "" || val == "00000000-0000-0000-0000-000000000000"
	default:
		return false
	}
}

// Native converts a Value back to a plain Go value.
// Times are rendered as RFC 3339 strings with nanoseconds.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return time.Time(val).UTC().Format(time.RFC3339Nano)
	case Guid:
		return string(val)
	default:
		return nil
	}
}

// Format renders a value for logs and error messages.
func Format(v Value) string {
	if IsNull(v) {
		return "null"
	}
	return fmt.Sprintf("%v", Native(v))
}
