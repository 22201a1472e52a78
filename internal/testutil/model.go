package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

func ptr(f float64) *float64 { return &f }

// ShopTypes returns fresh, unresolved descriptors for the sample model used
// across the test suites.
//
//	Customer 1──* Order 1──* OrderLine      bidirectional, FK on dependent
//	Customer 1──1 Profile                   bidirectional one-to-one
//	Customer 1──* Tag                       principal-only, FK on Tag.ownerID
//	Note     *──1 Customer                  dependent-only
//	Person ◁─ Employee ◁─ Manager           inheritance, Badge *──1 Person
func ShopTypes() []*metadata.EntityType {
	return []*metadata.EntityType{
		{
			Name: "Customer",
			Key:  []string{"id"},
			Properties: []*metadata.DataProperty{
				{Name: "id", Type: value.TypeInt},
				{Name: "name", Type: value.TypeString, Validators: []metadata.ValidatorSpec{
					{Name: metadata.ValidatorMaxLength, MaxLength: 20},
				}},
				{Name: "email", Type: value.TypeString, Nullable: true, Validators: []metadata.ValidatorSpec{
					{Name: metadata.ValidatorPattern, Pattern: `^[^@\s]+@[^@\s]+$`},
				}},
				{Name: "creditLimit", Type: value.TypeFloat, Nullable: true, Validators: []metadata.ValidatorSpec{
					{Name: metadata.ValidatorRange, Min: ptr(0), Max: ptr(10000)},
				}},
				{Name: "nickname", Type: value.TypeString, Nullable: true, Unmapped: true},
			},
			Navigations: []*metadata.NavigationProperty{
				{Name: "orders", Target: "Order", Inverse: "customer"},
				{Name: "profile", Target: "Profile", IsScalar: true, Inverse: "customer"},
				{Name: "tags", Target: "Tag", InverseForeignKeys: []string{"ownerID"}},
			},
		},
		{
			Name:             "Order",
			Key:              []string{"id"},
			AutoGeneratedKey: true,
			Properties: []*metadata.DataProperty{
				{Name: "id", Type: value.TypeInt},
				{Name: "customerID", Type: value.TypeInt, Nullable: true},
				{Name: "placedAt", Type: value.TypeDateTime, Nullable: true},
				{Name: "total", Type: value.TypeFloat, Nullable: true},
			},
			Navigations: []*metadata.NavigationProperty{
				{Name: "customer", Target: "Customer", IsScalar: true, Inverse: "orders", ForeignKeys: []string{"customerID"}},
				{Name: "lines", Target: "OrderLine", Inverse: "order"},
			},
		},
		{
			Name: "OrderLine",
			Key:  []string{"orderID", "lineNo"},
			Properties: []*metadata.DataProperty{
				{Name: "orderID", Type: value.TypeInt},
				{Name: "lineNo", Type: value.TypeInt},
				{Name: "product", Type: value.TypeString, Nullable: true},
				{Name: "qty", Type: value.TypeInt, Nullable: true, Default: 1},
			},
			Navigations: []*metadata.NavigationProperty{
				{Name: "order", Target: "Order", IsScalar: true, Inverse: "lines", ForeignKeys: []string{"orderID"}},
			},
		},
		{
			Name:             "Profile",
			Key:              []string{"id"},
			AutoGeneratedKey: true,
			Properties: []*metadata.DataProperty{
				{Name: "id", Type: value.TypeGuid},
				{Name: "customerID", Type: value.TypeInt, Nullable: true},
				{Name: "bio", Type: value.TypeString, Nullable: true},
			},
			Navigations: []*metadata.NavigationProperty{
				{Name: "customer", Target: "Customer", IsScalar: true, Inverse: "profile", ForeignKeys: []string{"customerID"}},
			},
		},
		{
			Name: "Tag",
			Key:  []string{"id"},
			Properties: []*metadata.DataProperty{
				{Name: "id", Type: value.TypeInt},
				{Name: "ownerID", Type: value.TypeInt, Nullable: true},
				{Name: "label", Type: value.TypeString, Nullable: true},
			},
		},
		{
			Name: "Note",
			Key:  []string{"id"},
			Properties: []*metadata.DataProperty{
				{Name: "id", Type: value.TypeInt},
				{Name: "customerID", Type: value.TypeInt, Nullable: true},
				{Name: "text", Type: value.TypeString, Nullable: true},
			},
			Navigations: []*metadata.NavigationProperty{
				{Name: "customer", Target: "Customer", IsScalar: true, ForeignKeys: []string{"customerID"}},
			},
		},
		{
			Name: "Person",
			Key:  []string{"id"},
			Properties: []*metadata.DataProperty{
				{Name: "id", Type: value.TypeInt},
				{Name: "name", Type: value.TypeString, Nullable: true},
			},
		},
		{
			Name: "Employee",
			Base: "Person",
			Properties: []*metadata.DataProperty{
				{Name: "salary", Type: value.TypeFloat, Nullable: true},
			},
		},
		{
			Name: "Manager",
			Base: "Employee",
			Properties: []*metadata.DataProperty{
				{Name: "reports", Type: value.TypeInt, Nullable: true},
			},
		},
		{
			Name: "Badge",
			Key:  []string{"id"},
			Properties: []*metadata.DataProperty{
				{Name: "id", Type: value.TypeInt},
				{Name: "personID", Type: value.TypeInt, Nullable: true},
			},
			Navigations: []*metadata.NavigationProperty{
				{Name: "holder", Target: "Person", IsScalar: true, ForeignKeys: []string{"personID"}},
			},
		},
	}
}

// ShopRegistry returns a resolved registry over ShopTypes.
func ShopRegistry(t testing.TB) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry()
	require.NoError(t, reg.Add(ShopTypes()...))
	require.NoError(t, reg.Resolve())
	return reg
}
