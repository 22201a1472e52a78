package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

func TestValidation_EntityErrors(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{
		"id":          1,
		"name":        "",
		"email":       "nope",
		"creditLimit": 20000,
	}, Unchanged)

	assert.False(t, c.Aspect().ValidateEntity())
	errs := c.Aspect().ValidationErrors()
	require.Len(t, errs, 3)
	assert.Equal(t, "creditLimit", errs[0].Property)
	assert.Equal(t, "range", errs[0].Validator)
	assert.Equal(t, "email", errs[1].Property)
	assert.Equal(t, ValidationError{Validator: "required", Property: "name", Message: "'name' is required"}, errs[2])
	assert.Equal(t, "name.required: 'name' is required", errs[2].String())
}

func TestValidation_PublishesNetDifference(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "", "email": "nope"}, Unchanged)
	r := record(s)

	c.Aspect().ValidateEntity()
	events := r.ofKind(KindValidationErrorsChanged)
	require.Len(t, events, 1)
	assert.Len(t, events[0].(ValidationErrorsChanged).Added, 2)

	r.reset()
	c.Aspect().ValidateEntity()
	assert.Empty(t, r.events, "an unchanged error set publishes nothing")

	require.NoError(t, c.Set("name", "Ann"))
	ok, err := c.Aspect().ValidateProperty("name")
	require.NoError(t, err)
	assert.True(t, ok)

	events = r.ofKind(KindValidationErrorsChanged)
	require.Len(t, events, 1)
	vc := events[0].(ValidationErrorsChanged)
	assert.Empty(t, vc.Added)
	require.Len(t, vc.Removed, 1)
	assert.Equal(t, "name", vc.Removed[0].Property)

	assert.True(t, c.Aspect().HasValidationErrors(), "the email error is out of scope")

	_, err = c.Aspect().ValidateProperty("shoeSize")
	assert.Equal(t, ErrCodeUnknownProperty, ErrorCodeOf(err))
}

func TestValidation_MessageChangeReplacesError(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann", "creditLimit": -5}, Unchanged)
	c.Aspect().ValidateEntity()
	r := record(s)

	require.NoError(t, c.Set("creditLimit", 99999))
	c.Aspect().ValidateEntity()

	events := r.ofKind(KindValidationErrorsChanged)
	require.Len(t, events, 1)
	vc := events[0].(ValidationErrorsChanged)
	require.Len(t, vc.Added, 1)
	require.Len(t, vc.Removed, 1)
	assert.Equal(t, "'creditLimit' must be at least 0", vc.Removed[0].Message)
	assert.Equal(t, "'creditLimit' must be at most 10000", vc.Added[0].Message)
}

func TestValidation_AutoValidate(t *testing.T) {
	s := newTestSession(t, WithValidation(ValidationOptions{OnAttach: true, OnPropertyChange: true}))
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": ""}, Unchanged)
	assert.True(t, c.Aspect().HasValidationErrors(), "validated on attach")

	require.NoError(t, c.Set("name", "Ann"))
	assert.False(t, c.Aspect().HasValidationErrors(), "validated on write")

	require.NoError(t, c.Set("email", "bad"))
	require.Len(t, c.Aspect().ValidationErrors(), 1)

	require.NoError(t, c.Aspect().RejectChanges())
	assert.False(t, c.Aspect().HasValidationErrors(), "reject clears errors")
	assert.Equal(t, value.String(""), c.Get("name"))
}

func TestValidation_EntityLevelValidator(t *testing.T) {
	reg := metadata.NewRegistry()
	require.NoError(t, reg.RegisterValidator(metadata.NewValidator("lo_le_hi", func(ctx metadata.ValidationContext) (string, bool) {
		lo, _ := ctx.Entity.Get("lo").(value.Int)
		hi, _ := ctx.Entity.Get("hi").(value.Int)
		if lo > hi {
			return "lo must not exceed hi", false
		}
		return "", true
	})))
	require.NoError(t, reg.Add(&metadata.EntityType{
		Name: "Span",
		Key:  []string{"id"},
		Properties: []*metadata.DataProperty{
			{Name: "id", Type: value.TypeInt},
			{Name: "lo", Type: value.TypeInt},
			{Name: "hi", Type: value.TypeInt},
		},
		Validators: []metadata.ValidatorSpec{{Name: "lo_le_hi"}},
	}))
	require.NoError(t, reg.Resolve())

	s, err := NewSession(reg)
	require.NoError(t, err)
	e, err := s.CreateEntity("Span", map[string]any{"id": 1, "lo": 5, "hi": 1})
	require.NoError(t, err)
	_, err = s.Attach(e, Unchanged, Disallowed)
	require.NoError(t, err)

	assert.False(t, e.Aspect().ValidateEntity())
	errs := e.Aspect().ValidationErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, "", errs[0].Property)
	assert.Equal(t, "lo_le_hi: lo must not exceed hi", errs[0].String())
}
