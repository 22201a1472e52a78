package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/testutil"
	"github.com/roach88/graphcache/internal/value"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func simple(name string, props ...*metadata.DataProperty) *metadata.EntityType {
	return &metadata.EntityType{
		Name:       name,
		Key:        []string{"id"},
		Properties: append([]*metadata.DataProperty{{Name: "id", Type: value.TypeInt}}, props...),
	}
}

func TestValidateShopModel(t *testing.T) {
	errs := Validate(testutil.ShopTypes())
	assert.Empty(t, errs, "sample model should be valid")
}

func TestValidateDuplicateType(t *testing.T) {
	errs := Validate([]*metadata.EntityType{simple("A"), simple("A")})
	assert.Equal(t, []string{ErrDuplicateName}, codes(errs))
}

func TestValidateBaseErrors(t *testing.T) {
	errs := Validate([]*metadata.EntityType{
		{Name: "A", Base: "Ghost"},
	})
	assert.Equal(t, []string{ErrUnknownBase}, codes(errs))

	errs = Validate([]*metadata.EntityType{
		{Name: "A", Base: "B"},
		{Name: "B", Base: "A"},
	})
	assert.Equal(t, []string{ErrBaseCycle, ErrBaseCycle}, codes(errs))
}

func TestValidateKeyErrors(t *testing.T) {
	errs := Validate([]*metadata.EntityType{
		{Name: "NoKey", Properties: []*metadata.DataProperty{{Name: "id", Type: value.TypeInt}}},
		{Name: "BadKey", Key: []string{"nope"}, Properties: []*metadata.DataProperty{{Name: "id", Type: value.TypeInt}}},
		{Name: "AutoString", Key: []string{"id"}, AutoGeneratedKey: true, Properties: []*metadata.DataProperty{{Name: "id", Type: value.TypeString}}},
	})
	assert.Equal(t, []string{ErrKeyMissing, ErrKeyUnknown, ErrAutoKey}, codes(errs))
}

func TestValidateDuplicateInheritedMember(t *testing.T) {
	errs := Validate([]*metadata.EntityType{
		simple("Base", &metadata.DataProperty{Name: "name", Type: value.TypeString}),
		{Name: "Derived", Base: "Base", Properties: []*metadata.DataProperty{{Name: "name", Type: value.TypeString}}},
	})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "Derived.properties[0]", errs[0].Field)
}

func TestValidateInvalidType(t *testing.T) {
	errs := Validate([]*metadata.EntityType{
		simple("A", &metadata.DataProperty{Name: "amount", Type: value.DataType("decimal")}),
	})
	assert.Equal(t, []string{ErrInvalidFieldType}, codes(errs))
}

func TestValidateRelationshipErrors(t *testing.T) {
	parent := simple("Parent")
	parent.Navigations = []*metadata.NavigationProperty{
		{Name: "kids", Target: "Child", Inverse: "parent"},
		{Name: "ghosts", Target: "Ghost"},
		{Name: "missing", Target: "Child", Inverse: "nope"},
		{Name: "many", Target: "Child", ForeignKeys: []string{"id"}},
	}
	child := simple("Child", &metadata.DataProperty{Name: "parentID", Type: value.TypeInt, Nullable: true})
	child.Navigations = []*metadata.NavigationProperty{
		{Name: "parent", Target: "Parent", IsScalar: true, Inverse: "kids", ForeignKeys: []string{"parentID", "extra"}},
	}

	errs := Validate([]*metadata.EntityType{parent, child})
	assert.ElementsMatch(t, []string{
		ErrUnknownTarget,
		ErrUnknownInverse,
		ErrForeignKeyOnMany,
		ErrForeignKeyArity,
		ErrUnknownForeignKey,
	}, codes(errs))
}

func TestValidateInverseMismatch(t *testing.T) {
	a := simple("A")
	a.Navigations = []*metadata.NavigationProperty{{Name: "bs", Target: "B", Inverse: "a"}}
	b := simple("B")
	b.Navigations = []*metadata.NavigationProperty{
		{Name: "a", Target: "A", Inverse: "bs"},
		{Name: "other", Target: "A", IsScalar: true, Inverse: "bs"},
	}

	errs := Validate([]*metadata.EntityType{a, b})
	for _, e := range errs {
		assert.Equal(t, ErrInverseMismatch, e.Code, e.Error())
	}
	assert.NotEmpty(t, errs)
}

func TestValidateValidatorArgs(t *testing.T) {
	lo, hi := 10.0, 1.0
	errs := Validate([]*metadata.EntityType{
		simple("A",
			&metadata.DataProperty{Name: "s", Type: value.TypeString, Validators: []metadata.ValidatorSpec{
				{Name: metadata.ValidatorMaxLength},
				{Name: metadata.ValidatorPattern, Pattern: "("},
			}},
			&metadata.DataProperty{Name: "n", Type: value.TypeInt, Validators: []metadata.ValidatorSpec{
				{Name: metadata.ValidatorRange},
				{Name: metadata.ValidatorRange, Min: &lo, Max: &hi},
			}},
		),
	})
	assert.Equal(t, []string{ErrValidatorArgs, ErrValidatorArgs, ErrValidatorArgs, ErrValidatorArgs}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "A.key", Message: "root entity types require a key", Code: ErrKeyMissing}
	assert.Equal(t, "[E101] A.key: root entity types require a key", err.Error())

	err.Line = 7
	assert.Equal(t, "[E101] line 7: A.key: root entity types require a key", err.Error())
}
