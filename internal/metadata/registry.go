package metadata

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/graphcache/internal/value"
)

// Registry holds the entity types known to a cache session.
//
// Types are added unresolved; Resolve links base types, relationships and
// validators and must succeed before the registry is handed to a session.
type Registry struct {
	types      map[string]*EntityType
	order      []string
	validators map[string]Validator
	resolved   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:      make(map[string]*EntityType),
		validators: make(map[string]Validator),
	}
}

// Add registers entity types. Names must be unique.
func (r *Registry) Add(types ...*EntityType) error {
	if r.resolved {
		return errors.New("registry already resolved")
	}
	for _, t := range types {
		if t == nil || t.Name == "" {
			return errors.New("entity type must have a name")
		}
		if _, exists := r.types[t.Name]; exists {
			return fmt.Errorf("entity type %q already registered", t.Name)
		}
		r.types[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return nil
}

// RegisterValidator makes a custom validator available by name to
// ValidatorSpecs. Must be called before Resolve.
func (r *Registry) RegisterValidator(v Validator) error {
	if r.resolved {
		return errors.New("registry already resolved")
	}
	switch v.Name() {
	case ValidatorRequired, ValidatorMaxLength, ValidatorRange, ValidatorPattern:
		return fmt.Errorf("validator %q is built in", v.Name())
	}
	r.validators[v.Name()] = v
	return nil
}

// Type returns the entity type registered under name.
func (r *Registry) Type(name string) (*EntityType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Types returns all types in registration order.
func (r *Registry) Types() []*EntityType {
	out := make([]*EntityType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// IsResolved reports whether Resolve has succeeded.
func (r *Registry) IsResolved() bool { return r.resolved }

// Resolve links every registered type. All problems found are returned
// joined; on error the registry stays unresolved.
func (r *Registry) Resolve() error {
	if r.resolved {
		return nil
	}

	var errs []error
	for _, name := range r.order {
		if err := r.checkBaseChain(r.types[name]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	linked := make(map[string]bool)
	for _, name := range r.order {
		if err := r.linkType(r.types[name], linked); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, name := range r.order {
		errs = append(errs, r.linkNavigations(r.types[name])...)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r.pairInverses()
	for _, name := range r.order {
		r.collectInbound(r.types[name])
	}

	for _, t := range r.baseFirst() {
		errs = append(errs, r.compileValidators(t)...)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, name := range r.order {
		r.types[name].resolved = true
	}
	r.resolved = true
	return nil
}

// checkBaseChain rejects unknown bases and inheritance cycles.
func (r *Registry) checkBaseChain(t *EntityType) error {
	seen := map[string]bool{t.Name: true}
	for cur := t; cur.Base != ""; {
		next, ok := r.types[cur.Base]
		if !ok {
			return fmt.Errorf("type %q: unknown base type %q", cur.Name, cur.Base)
		}
		if seen[next.Name] {
			return fmt.Errorf("type %q: base type cycle through %q", t.Name, next.Name)
		}
		seen[next.Name] = true
		cur = next
	}
	return nil
}

// linkType flattens inheritance and resolves keys. Bases link first.
func (r *Registry) linkType(t *EntityType, linked map[string]bool) error {
	if linked[t.Name] {
		return nil
	}
	linked[t.Name] = true

	t.propsByName = make(map[string]*DataProperty)
	t.navsByName = make(map[string]*NavigationProperty)
	t.props = nil
	t.navs = nil
	t.subtypes = nil

	if t.Base != "" {
		base := r.types[t.Base]
		if err := r.linkType(base, linked); err != nil {
			return err
		}
		t.base = base
		base.subtypes = append(base.subtypes, t)
		for _, p := range base.props {
			t.props = append(t.props, p)
			t.propsByName[p.Name] = p
		}
		for _, n := range base.navs {
			t.navs = append(t.navs, n)
			t.navsByName[n.Name] = n
		}
	}

	for _, p := range t.Properties {
		if p.Name == "" {
			return fmt.Errorf("type %q: property without a name", t.Name)
		}
		if !value.ValidTypes[p.Type] {
			return fmt.Errorf("type %q: property %q has invalid type %q", t.Name, p.Name, p.Type)
		}
		if _, dup := t.propsByName[p.Name]; dup {
			return fmt.Errorf("type %q: duplicate property %q", t.Name, p.Name)
		}
		p.owner = t
		p.declaredOn = t.Name
		p.keyIndex = -1
		p.fkOf = nil
		p.invFKOf = nil
		p.defaultVal = nil
		if p.Default != nil {
			dv, err := value.Coerce(p.Default, p.Type)
			if err != nil {
				return fmt.Errorf("type %q: property %q default: %w", t.Name, p.Name, err)
			}
			p.defaultVal = dv
		}
		t.props = append(t.props, p)
		t.propsByName[p.Name] = p
	}

	for _, n := range t.Navigations {
		if n.Name == "" {
			return fmt.Errorf("type %q: navigation without a name", t.Name)
		}
		if _, dup := t.navsByName[n.Name]; dup {
			return fmt.Errorf("type %q: duplicate navigation %q", t.Name, n.Name)
		}
		if _, clash := t.propsByName[n.Name]; clash {
			return fmt.Errorf("type %q: navigation %q clashes with a data property", t.Name, n.Name)
		}
		n.owner = t
		n.declaredOn = t.Name
		t.navs = append(t.navs, n)
		t.navsByName[n.Name] = n
	}

	if t.base != nil {
		if len(t.Key) > 0 && !slices.Equal(t.Key, t.base.Key) {
			return fmt.Errorf("type %q: key must match base type %q", t.Name, t.base.Name)
		}
		t.Key = t.base.Key
		t.AutoGeneratedKey = t.base.AutoGeneratedKey
		t.keyProps = t.base.keyProps
		return nil
	}

	if len(t.Key) == 0 {
		return fmt.Errorf("type %q: key is required", t.Name)
	}
	t.keyProps = make([]*DataProperty, 0, len(t.Key))
	for i, name := range t.Key {
		p, ok := t.propsByName[name]
		if !ok {
			return fmt.Errorf("type %q: key property %q not found", t.Name, name)
		}
		p.keyIndex = i
		t.keyProps = append(t.keyProps, p)
	}
	if t.AutoGeneratedKey {
		if len(t.keyProps) != 1 {
			return fmt.Errorf("type %q: auto-generated keys must have exactly one part", t.Name)
		}
		if dt := t.keyProps[0].Type; dt != value.TypeInt && dt != value.TypeGuid {
			return fmt.Errorf("type %q: auto-generated key must be int or guid, got %s", t.Name, dt)
		}
	}
	return nil
}

// linkNavigations resolves targets, inverses and foreign keys for the
// navigations t declares itself.
func (r *Registry) linkNavigations(t *EntityType) []error {
	var errs []error
	for _, n := range t.Navigations {
		target, ok := r.types[n.Target]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unknown target type %q", n.QualifiedName(), n.Target))
			continue
		}
		n.target = target
		n.inverse = nil
		n.fkProps = nil
		n.invFKProps = nil

		if n.Inverse != "" {
			inv, ok := target.navsByName[n.Inverse]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: inverse %q not found on %q", n.QualifiedName(), n.Inverse, target.Name))
				continue
			}
			if inv.Inverse != "" && inv.Inverse != n.Name {
				errs = append(errs, fmt.Errorf("%s: inverse %s points back to %q", n.QualifiedName(), inv.QualifiedName(), inv.Inverse))
				continue
			}
			if !n.IsScalar && !inv.IsScalar {
				errs = append(errs, fmt.Errorf("%s: many-to-many relationships are not supported", n.QualifiedName()))
				continue
			}
			n.inverse = inv
		}

		if len(n.ForeignKeys) > 0 {
			if !n.IsScalar {
				errs = append(errs, fmt.Errorf("%s: only scalar navigations carry foreign keys", n.QualifiedName()))
				continue
			}
			if len(n.ForeignKeys) != len(target.Key) {
				errs = append(errs, fmt.Errorf("%s: %d foreign keys for a %d-part key", n.QualifiedName(), len(n.ForeignKeys), len(target.Key)))
				continue
			}
			for _, fk := range n.ForeignKeys {
				p, ok := t.propsByName[fk]
				if !ok {
					errs = append(errs, fmt.Errorf("%s: foreign key %q not found", n.QualifiedName(), fk))
					continue
				}
				n.fkProps = append(n.fkProps, p)
				p.fkOf = append(p.fkOf, n)
			}
		}

		if len(n.InverseForeignKeys) > 0 {
			if len(n.InverseForeignKeys) != len(t.Key) {
				errs = append(errs, fmt.Errorf("%s: %d inverse foreign keys for a %d-part key", n.QualifiedName(), len(n.InverseForeignKeys), len(t.Key)))
				continue
			}
			for _, fk := range n.InverseForeignKeys {
				p, ok := target.propsByName[fk]
				if !ok {
					errs = append(errs, fmt.Errorf("%s: inverse foreign key %q not found on %q", n.QualifiedName(), fk, target.Name))
					continue
				}
				n.invFKProps = append(n.invFKProps, p)
				p.invFKOf = append(p.invFKOf, n)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// A collection whose inverse carries the foreign key shares it.
	for _, n := range t.Navigations {
		if n.inverse != nil && len(n.invFKProps) == 0 && len(n.inverse.ForeignKeys) > 0 && !n.IsScalar {
			for _, fk := range n.inverse.ForeignKeys {
				if p, ok := n.target.propsByName[fk]; ok {
					n.invFKProps = append(n.invFKProps, p)
					p.invFKOf = append(p.invFKOf, n)
				}
			}
		}
	}
	return nil
}

// pairInverses makes one-sided inverse declarations symmetric and lets a
// scalar navigation borrow its foreign key from its collection inverse.
func (r *Registry) pairInverses() {
	for _, name := range r.order {
		for _, n := range r.types[name].Navigations {
			inv := n.inverse
			if inv == nil {
				continue
			}
			if inv.inverse == nil {
				inv.inverse = n
			}
			if n.IsScalar && len(n.fkProps) == 0 && !inv.IsScalar && len(inv.invFKProps) > 0 {
				n.fkProps = inv.invFKProps
				for _, p := range n.fkProps {
					p.fkOf = append(p.fkOf, n)
				}
			}
		}
	}
}

// baseFirst orders types so every base precedes its subtypes.
func (r *Registry) baseFirst() []*EntityType {
	out := r.Types()
	depth := func(t *EntityType) int { return len(t.Ancestors()) }
	slices.SortStableFunc(out, func(a, b *EntityType) int { return depth(a) - depth(b) })
	return out
}

// collectInbound records scalar FK navigations that target t or its bases.
func (r *Registry) collectInbound(t *EntityType) {
	t.inbound = nil
	for _, name := range r.order {
		other := r.types[name]
		for _, n := range other.Navigations {
			if len(n.fkProps) == 0 || n.target == nil {
				continue
			}
			if t.IsAssignableTo(n.target) {
				t.inbound = append(t.inbound, n)
			}
		}
	}
}

func (r *Registry) compileValidators(t *EntityType) []error {
	var errs []error
	for _, p := range t.Properties {
		p.validators = nil
		declared := false
		for _, spec := range p.Validators {
			if spec.Name == ValidatorRequired {
				declared = true
			}
			v, err := compileValidator(spec, r.validators)
			if err != nil {
				errs = append(errs, fmt.Errorf("type %q: property %q: %w", t.Name, p.Name, err))
				continue
			}
			p.validators = append(p.validators, v)
		}
		implicit := !p.Nullable && !declared && !(p.IsPartOfKey() && t.AutoGeneratedKey)
		if implicit {
			p.validators = append([]Validator{requiredValidator()}, p.validators...)
		}
	}

	t.validators = nil
	if t.base != nil {
		t.validators = append(t.validators, t.base.validators...)
	}
	for _, spec := range t.Validators {
		v, err := compileValidator(spec, r.validators)
		if err != nil {
			errs = append(errs, fmt.Errorf("type %q: %w", t.Name, err))
			continue
		}
		t.validators = append(t.validators, v)
	}
	return errs
}
