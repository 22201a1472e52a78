package cache

import (
	"github.com/google/uuid"

	"github.com/roach88/graphcache/internal/value"
)

// GuidGenerator produces values for auto-generated guid keys.
type GuidGenerator interface {
	NewGuid() string
}

// UUIDv7Generator generates time-sortable UUIDv7 keys.
//
// UUIDv7 embeds a timestamp in the most significant bits, so keys of
// entities added in sequence sort in creation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewGuid creates a new UUIDv7 in lower-case hyphenated form.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewGuid() string {
	return uuid.Must(uuid.NewV7()).String()
}

// assignTemporaryKey gives an Added entity with an auto-generated key a
// session-unique placeholder. Int keys count down from -1 so they can
// never collide with store-assigned ids.
func (s *Session) assignTemporaryKey(e *Entity) error {
	p := e.typ.KeyProperties()[0]
	switch p.Type {
	case value.TypeInt:
		for {
			s.nextTempID--
			e.values[p.Name] = value.Int(s.nextTempID)
			if s.findFamily(e.Key()) == nil {
				break
			}
		}
	case value.TypeGuid:
		v, err := value.Coerce(s.guids.NewGuid(), value.TypeGuid)
		if err != nil {
			return newInvalidValueError(e, p.Name, err)
		}
		e.values[p.Name] = v
	default:
		return nil
	}
	e.aspect.tempKey = true
	return nil
}

// needsTemporaryKey reports whether e's auto-generated key is still unset.
func needsTemporaryKey(e *Entity) bool {
	if !e.typ.AutoGeneratedKey {
		return false
	}
	return value.IsZero(e.values[e.typ.KeyProperties()[0].Name])
}
