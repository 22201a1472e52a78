// Package metadata describes the entity types the cache can hold.
//
// A Registry is an explicit object owned by whoever builds a cache session;
// there is no process-wide type registry. Types are added in any order and
// linked by Resolve, which checks relationship declarations, flattens
// inheritance and compiles validators.
package metadata

import (
	"github.com/roach88/graphcache/internal/value"
)

// DataProperty describes a scalar property of an entity type.
type DataProperty struct {
	Name       string          `json:"name"`
	Type       value.DataType  `json:"type"`
	Nullable   bool            `json:"nullable"`
	Unmapped   bool            `json:"unmapped,omitempty"` // not tracked for changes
	Default    any             `json:"default,omitempty"`
	Validators []ValidatorSpec `json:"validators,omitempty"`

	// Populated by Registry.Resolve.
	owner       *EntityType
	keyIndex    int                   // position in the key, -1 if not a key part
	fkOf        []*NavigationProperty // scalar navigations on owner that use this FK
	invFKOf     []*NavigationProperty // navigations on other types whose inverse FK is this property
	validators  []Validator
	defaultVal  value.Value
	declaredOn  string
}

// IsPartOfKey reports whether the property is a component of the identity key.
func (p *DataProperty) IsPartOfKey() bool { return p.keyIndex >= 0 }

// KeyIndex returns the property's position in the key, or -1.
func (p *DataProperty) KeyIndex() int { return p.keyIndex }

// IsForeignKey reports whether any relationship uses this property as a foreign key.
func (p *DataProperty) IsForeignKey() bool { return len(p.fkOf) > 0 || len(p.invFKOf) > 0 }

// ForeignKeyOf returns the scalar navigations on the owning type driven by this property.
func (p *DataProperty) ForeignKeyOf() []*NavigationProperty { return p.fkOf }

// InverseForeignKeyOf returns principal-side navigations on other types whose
// foreign key lives on this property.
func (p *DataProperty) InverseForeignKeyOf() []*NavigationProperty { return p.invFKOf }

// Owner returns the type the property was resolved onto.
func (p *DataProperty) Owner() *EntityType { return p.owner }

// DeclaredOn returns the name of the type that declared the property.
func (p *DataProperty) DeclaredOn() string { return p.declaredOn }

// DefaultValue returns the coerced default, Null for nullable properties
// without one and the type's zero value otherwise.
func (p *DataProperty) DefaultValue() value.Value {
	if p.defaultVal != nil {
		return p.defaultVal
	}
	if p.Nullable {
		return value.Null{}
	}
	return value.Zero(p.Type)
}

// CompiledValidators returns the validators resolved for this property.
func (p *DataProperty) CompiledValidators() []Validator { return p.validators }

// NavigationProperty describes a relationship edge from one type to another.
//
// ForeignKeys lists properties on the owning (dependent) type holding the
// target's key. InverseForeignKeys lists properties on the target type that
// hold the owner's key, which is how a principal-side collection finds its
// members when the dependent type has no navigation back.
type NavigationProperty struct {
	Name               string   `json:"name"`
	Target             string   `json:"target"`
	IsScalar           bool     `json:"is_scalar"`
	Inverse            string   `json:"inverse,omitempty"`
	ForeignKeys        []string `json:"foreign_keys,omitempty"`
	InverseForeignKeys []string `json:"inverse_foreign_keys,omitempty"`

	// Populated by Registry.Resolve.
	owner      *EntityType
	target     *EntityType
	inverse    *NavigationProperty
	fkProps    []*DataProperty
	invFKProps []*DataProperty
	declaredOn string
}

// Owner returns the type the navigation was resolved onto.
func (n *NavigationProperty) Owner() *EntityType { return n.owner }

// TargetType returns the resolved target type.
func (n *NavigationProperty) TargetType() *EntityType { return n.target }

// InverseProperty returns the navigation on the target pointing back, or nil.
func (n *NavigationProperty) InverseProperty() *NavigationProperty { return n.inverse }

// ForeignKeyProperties returns the dependent-side FK properties on the owner.
func (n *NavigationProperty) ForeignKeyProperties() []*DataProperty { return n.fkProps }

// InverseForeignKeyProperties returns the FK properties on the target type.
func (n *NavigationProperty) InverseForeignKeyProperties() []*DataProperty { return n.invFKProps }

// QualifiedName renders "Owner.name" for table keys and logs.
func (n *NavigationProperty) QualifiedName() string {
	if n.owner == nil {
		return n.Name
	}
	return n.owner.Name + "." + n.Name
}

// EntityType describes one entity type.
type EntityType struct {
	Name             string                `json:"name"`
	Base             string                `json:"base,omitempty"`
	Key              []string              `json:"key"`
	AutoGeneratedKey bool                  `json:"auto_generated_key,omitempty"`
	Properties       []*DataProperty       `json:"properties"`
	Navigations      []*NavigationProperty `json:"navigations,omitempty"`
	Validators       []ValidatorSpec       `json:"validators,omitempty"`

	// Populated by Registry.Resolve.
	resolved    bool
	base        *EntityType
	subtypes    []*EntityType
	props       []*DataProperty
	propsByName map[string]*DataProperty
	navs        []*NavigationProperty
	navsByName  map[string]*NavigationProperty
	keyProps    []*DataProperty
	inbound     []*NavigationProperty // scalar FK navigations on other types targeting this type
	validators  []Validator
}

// IsResolved reports whether Registry.Resolve has linked this type.
func (t *EntityType) IsResolved() bool { return t.resolved }

// BaseType returns the resolved base type, or nil.
func (t *EntityType) BaseType() *EntityType { return t.base }

// RootType returns the top of the inheritance chain.
func (t *EntityType) RootType() *EntityType {
	root := t
	for root.base != nil {
		root = root.base
	}
	return root
}

// Ancestors returns the type followed by its bases, nearest first.
func (t *EntityType) Ancestors() []*EntityType {
	var chain []*EntityType
	for cur := t; cur != nil; cur = cur.base {
		chain = append(chain, cur)
	}
	return chain
}

// Subtypes returns every type deriving from t, directly or transitively.
func (t *EntityType) Subtypes() []*EntityType {
	var all []*EntityType
	for _, sub := range t.subtypes {
		all = append(all, sub)
		all = append(all, sub.Subtypes()...)
	}
	return all
}

// IsAssignableTo reports whether t is other or derives from it.
func (t *EntityType) IsAssignableTo(other *EntityType) bool {
	for cur := t; cur != nil; cur = cur.base {
		if cur == other {
			return true
		}
	}
	return false
}

// DataProperties returns own and inherited data properties, base first.
func (t *EntityType) DataProperties() []*DataProperty { return t.props }

// NavigationProperties returns own and inherited navigations, base first.
func (t *EntityType) NavigationProperties() []*NavigationProperty { return t.navs }

// KeyProperties returns the key properties in declared order.
func (t *EntityType) KeyProperties() []*DataProperty { return t.keyProps }

// DataProperty looks up a data property by name.
func (t *EntityType) DataProperty(name string) (*DataProperty, bool) {
	p, ok := t.propsByName[name]
	return p, ok
}

// NavigationProperty looks up a navigation by name.
func (t *EntityType) NavigationProperty(name string) (*NavigationProperty, bool) {
	n, ok := t.navsByName[name]
	return n, ok
}

// InboundForeignKeyNavigations returns dependent-side navigations on other
// types whose target is t (or one of its bases).
func (t *EntityType) InboundForeignKeyNavigations() []*NavigationProperty { return t.inbound }

// CompiledValidators returns the entity-level validators.
func (t *EntityType) CompiledValidators() []Validator { return t.validators }
