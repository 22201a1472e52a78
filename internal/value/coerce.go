package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Coerce converts a raw Go value to the declared data type.
//
// nil and Null become Null for every type. Values that are already typed are
// converted across types where the conversion is lossless (Int -> Float,
// integral Float -> Int, String -> any parseable type). Anything else returns
// an error describing the mismatch.
func Coerce(raw any, dt DataType) (Value, error) {
	if raw == nil {
		return Null{}, nil
	}
	if _, ok := raw.(Null); ok {
		return Null{}, nil
	}

	switch dt {
	case TypeString:
		return coerceString(raw)
	case TypeInt:
		return coerceInt(raw)
	case TypeFloat:
		return coerceFloat(raw)
	case TypeBool:
		return coerceBool(raw)
	case TypeDateTime:
		return coerceTime(raw)
	case TypeGuid:
		return coerceGuid(raw)
	default:
		return nil, fmt.Errorf("unsupported data type %q", dt)
	}
}

// MustCoerce is like Coerce but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCoerce(raw any, dt DataType) Value {
	v, err := Coerce(raw, dt)
	if err != nil {
		panic(err)
	}
	return v
}

func coerceString(raw any) (Value, error) {
	switch val := raw.(type) {
	case String:
		return val, nil
	case string:
		return String(val), nil
	case Guid:
		return String(val), nil
	case []byte:
		return String(val), nil
	case fmt.Stringer:
		return String(val.String()), nil
	case Int, Float, Bool, int, int32, int64, float64, bool:
		return String(fmt.Sprintf("%v", Native(mustTyped(val)))), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to string", raw)
	}
}

// mustTyped lifts a plain scalar into a Value for formatting.
func mustTyped(raw any) Value {
	switch val := raw.(type) {
	case Value:
		return val
	case int:
		return Int(val)
	case int32:
		return Int(val)
	case int64:
		return Int(val)
	case float64:
		return Float(val)
	case bool:
		return Bool(val)
	default:
		return Null{}
	}
}

func coerceInt(raw any) (Value, error) {
	switch val := raw.(type) {
	case Int:
		return val, nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d out of int64 range", val)
		}
		return Int(val), nil
	case Float:
		return intFromFloat(float64(val))
	case float32:
		return intFromFloat(float64(val))
	case float64:
		return intFromFloat(val)
	case String:
		return intFromString(string(val))
	case string:
		return intFromString(val)
	default:
		return nil, fmt.Errorf("cannot coerce %T to int", raw)
	}
}

func intFromFloat(f float64) (Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("float %v is not integral", f)
	}
	return Int(int64(f)), nil
}

func intFromString(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as int: %w", s, err)
	}
	return Int(n), nil
}

func coerceFloat(raw any) (Value, error) {
	switch val := raw.(type) {
	case Float:
		return val, nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	case Int:
		return Float(val), nil
	case int:
		return Float(val), nil
	case int32:
		return Float(val), nil
	case int64:
		return Float(val), nil
	case String:
		return floatFromString(string(val))
	case string:
		return floatFromString(val)
	default:
		return nil, fmt.Errorf("cannot coerce %T to float", raw)
	}
}

func floatFromString(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null{}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as float: %w", s, err)
	}
	return Float(f), nil
}

func coerceBool(raw any) (Value, error) {
	switch val := raw.(type) {
	case Bool:
		return val, nil
	case bool:
		return Bool(val), nil
	case String:
		return boolFromString(string(val))
	case string:
		return boolFromString(val)
	case Int:
		return Bool(val != 0), nil
	case int:
		return Bool(val != 0), nil
	case int64:
		return Bool(val != 0), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to bool", raw)
	}
}

func boolFromString(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null{}, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as bool: %w", s, err)
	}
	return Bool(b), nil
}

func coerceTime(raw any) (Value, error) {
	switch val := raw.(type) {
	case Time:
		return Time(time.Time(val).UTC()), nil
	case time.Time:
		return Time(val.UTC()), nil
	case *time.Time:
		if val == nil {
			return Null{}, nil
		}
		return Time(val.UTC()), nil
	case String:
		return timeFromString(string(val))
	case string:
		return timeFromString(val)
	case Int:
		return Time(time.UnixMilli(int64(val)).UTC()), nil
	case int64:
		return Time(time.UnixMilli(val).UTC()), nil
	case int:
		return Time(time.UnixMilli(int64(val)).UTC()), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to datetime", raw)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func timeFromString(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time(t.UTC()), nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as datetime", s)
}

func coerceGuid(raw any) (Value, error) {
	switch val := raw.(type) {
	case Guid:
		return guidFromString(string(val))
	case uuid.UUID:
		return Guid(val.String()), nil
	case String:
		return guidFromString(string(val))
	case string:
		return guidFromString(val)
	case [16]byte:
		return Guid(uuid.UUID(val).String()), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to guid", raw)
	}
}

// guidFromString parses any accepted UUID spelling and renders the canonical
// lower-case form so that keys from different sources compare equal.
func guidFromString(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as guid: %w", s, err)
	}
	return Guid(strings.ToLower(id.String())), nil
}
