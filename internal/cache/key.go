package cache

import (
	"fmt"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// EntityKey identifies an entity within a session: a type plus its key
// values in declared key-property order.
//
// Keys are immutable. Guid components are lower-cased by coercion, so keys
// built from differently-cased sources compare equal.
type EntityKey struct {
	typ    *metadata.EntityType
	values []value.Value
}

// NewEntityKey builds a key for t from raw values, coercing each to the
// declared type of the matching key property.
func NewEntityKey(t *metadata.EntityType, raw ...any) (EntityKey, error) {
	if t == nil || !t.IsResolved() {
		name := "<nil>"
		if t != nil {
			name = t.Name
		}
		return EntityKey{}, newMissingMetadataError(name)
	}
	props := t.KeyProperties()
	if len(raw) != len(props) {
		return EntityKey{}, &Error{
			Code:    ErrCodeInvalidValue,
			Message: fmt.Sprintf("%s key has %d parts, got %d values", t.Name, len(props), len(raw)),
		}
	}
	vals := make([]value.Value, len(props))
	for i, p := range props {
		v, err := value.Coerce(raw[i], p.Type)
		if err != nil {
			return EntityKey{}, &Error{
				Code:     ErrCodeInvalidValue,
				Message:  err.Error(),
				Property: p.Name,
			}
		}
		vals[i] = v
	}
	return EntityKey{typ: t, values: vals}, nil
}

// Type returns the entity type the key was built for.
func (k EntityKey) Type() *metadata.EntityType { return k.typ }

// Values returns a copy of the key values.
func (k EntityKey) Values() []value.Value {
	out := make([]value.Value, len(k.values))
	copy(out, k.values)
	return out
}

// IsZero reports whether the key was never built.
func (k EntityKey) IsZero() bool { return k.typ == nil }

// Equal compares type identity, then values element-wise.
func (k EntityKey) Equal(other EntityKey) bool {
	return k.typ == other.typ && value.EqualSlices(k.values, other.values)
}

// String renders the canonical form, e.g. "OrderLine-7:::2".
func (k EntityKey) String() string {
	if k.typ == nil {
		return ""
	}
	return k.typ.Name + "-" + k.valueString()
}

// valueString joins the rendered values; partitions index by it.
func (k EntityKey) valueString() string {
	return value.JoinKey(k.values)
}

// withType returns the same values under another type in the hierarchy.
func (k EntityKey) withType(t *metadata.EntityType) EntityKey {
	return EntityKey{typ: t, values: k.values}
}

// hasNull reports whether any component is null. Such keys never resolve.
func (k EntityKey) hasNull() bool {
	for _, v := range k.values {
		if value.IsNull(v) {
			return true
		}
	}
	return false
}
