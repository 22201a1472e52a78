package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/testutil"
	"github.com/roach88/graphcache/internal/value"
)

func TestEntityKey_String(t *testing.T) {
	reg := testutil.ShopRegistry(t)
	line, _ := reg.Type("OrderLine")
	customer, _ := reg.Type("Customer")

	k, err := NewEntityKey(line, 7, "2")
	require.NoError(t, err)
	assert.Equal(t, "OrderLine-7:::2", k.String())
	assert.Equal(t, []value.Value{value.Int(7), value.Int(2)}, k.Values())

	k, err = NewEntityKey(customer, 1)
	require.NoError(t, err)
	assert.Equal(t, "Customer-1", k.String())
}

func slotRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry()
	require.NoError(t, reg.Add(&metadata.EntityType{
		Name: "Slot",
		Key:  []string{"zone", "name"},
		Properties: []*metadata.DataProperty{
			{Name: "zone", Type: value.TypeString},
			{Name: "name", Type: value.TypeString},
		},
	}))
	require.NoError(t, reg.Resolve())
	return reg
}

func TestEntityKey_StringComponentsAreEscaped(t *testing.T) {
	s, err := NewSession(slotRegistry(t))
	require.NoError(t, err)

	left, err := s.Key("Slot", "a:::b", "c")
	require.NoError(t, err)
	right, err := s.Key("Slot", "a", "b:::c")
	require.NoError(t, err)
	assert.NotEqual(t, left.String(), right.String())
	assert.Equal(t, `Slot-a\:\:\:b:::c`, left.String())

	for _, vals := range []map[string]any{{"zone": "a:::b", "name": "c"}, {"zone": "a", "name": "b:::c"}} {
		e, err := s.CreateEntity("Slot", vals)
		require.NoError(t, err)
		_, err = s.Attach(e, Unchanged, Disallowed)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())

	plain, err := s.Key("Slot", "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "Slot-x:::y", plain.String())
}

func TestEntityKey_NormalizationAgreesWithIndex(t *testing.T) {
	s, err := NewSession(slotRegistry(t))
	require.NoError(t, err)

	composed, err := s.Key("Slot", "caf\u00e9", "1")
	require.NoError(t, err)
	decomposed, err := s.Key("Slot", "cafe\u0301", "1")
	require.NoError(t, err)
	assert.True(t, composed.Equal(decomposed))
	assert.Equal(t, composed.String(), decomposed.String())

	e, err := s.CreateEntity("Slot", map[string]any{"zone": "caf\u00e9", "name": "1"})
	require.NoError(t, err)
	_, err = s.Attach(e, Unchanged, Disallowed)
	require.NoError(t, err)

	found, ok := s.FindByKey(decomposed)
	require.True(t, ok)
	assert.Same(t, e, found)

	dup, err := s.CreateEntity("Slot", map[string]any{"zone": "cafe\u0301", "name": "1"})
	require.NoError(t, err)
	_, err = s.Attach(dup, Unchanged, Disallowed)
	assert.True(t, IsDuplicateIdentity(err))
}

func TestEntityKey_GuidCaseInsensitive(t *testing.T) {
	reg := testutil.ShopRegistry(t)
	profile, _ := reg.Type("Profile")

	upper, err := NewEntityKey(profile, "0190A5B2-3C4D-7E8F-9A0B-1C2D3E4F5A6B")
	require.NoError(t, err)
	lower, err := NewEntityKey(profile, "0190a5b2-3c4d-7e8f-9a0b-1c2d3e4f5a6b")
	require.NoError(t, err)

	assert.True(t, upper.Equal(lower))
	assert.Equal(t, lower.String(), upper.String())
}

func TestEntityKey_EqualComparesType(t *testing.T) {
	reg := testutil.ShopRegistry(t)
	customer, _ := reg.Type("Customer")
	tag, _ := reg.Type("Tag")

	a, _ := NewEntityKey(customer, 1)
	b, _ := NewEntityKey(tag, 1)
	c, _ := NewEntityKey(customer, 1.0)

	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(c), "numeric values compare by value")
}

func TestEntityKey_Errors(t *testing.T) {
	reg := testutil.ShopRegistry(t)
	line, _ := reg.Type("OrderLine")

	_, err := NewEntityKey(line, 1)
	assert.Equal(t, ErrCodeInvalidValue, ErrorCodeOf(err))

	_, err = NewEntityKey(line, "x", 1)
	assert.Equal(t, ErrCodeInvalidValue, ErrorCodeOf(err))

	_, err = NewEntityKey(&metadata.EntityType{Name: "Loose"}, 1)
	assert.True(t, IsMissingMetadata(err))
}
