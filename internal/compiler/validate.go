package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// Validation error codes (E100-E199)
const (
	// Type errors (E101-E109)
	ErrKeyMissing       = "E101" // root type without a key
	ErrKeyUnknown       = "E102" // key names an undeclared property
	ErrDuplicateName    = "E103" // duplicate type, property or navigation name
	ErrInvalidFieldType = "E104" // invalid data type string
	ErrUnknownBase      = "E105" // base type not declared
	ErrBaseCycle        = "E106" // inheritance cycle
	ErrAutoKey          = "E107" // auto-generated key is not a single int or guid

	// Relationship errors (E110-E119)
	ErrUnknownTarget     = "E110" // navigation target not declared
	ErrUnknownInverse    = "E111" // inverse navigation not found on target
	ErrInverseMismatch   = "E112" // inverse points elsewhere or many-to-many
	ErrUnknownForeignKey = "E113" // foreign key property not declared
	ErrForeignKeyArity   = "E114" // foreign key count differs from key size
	ErrForeignKeyOnMany  = "E115" // collection navigation declares foreign_keys

	// Validator errors (E120-E129)
	ErrValidatorArgs = "E120" // built-in validator with bad arguments
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// schemaView indexes unresolved descriptors by name so checks can follow
// base chains without a resolved registry.
type schemaView struct {
	types map[string]*metadata.EntityType
}

func (s schemaView) chain(t *metadata.EntityType) []*metadata.EntityType {
	seen := map[string]bool{}
	var out []*metadata.EntityType
	for cur := t; cur != nil && !seen[cur.Name]; cur = s.types[cur.Base] {
		seen[cur.Name] = true
		out = append(out, cur)
		if cur.Base == "" {
			break
		}
	}
	return out
}

func (s schemaView) root(t *metadata.EntityType) *metadata.EntityType {
	c := s.chain(t)
	return c[len(c)-1]
}

func (s schemaView) hasProperty(t *metadata.EntityType, name string) bool {
	for _, cur := range s.chain(t) {
		for _, p := range cur.Properties {
			if p.Name == name {
				return true
			}
		}
	}
	return false
}

func (s schemaView) navigation(t *metadata.EntityType, name string) *metadata.NavigationProperty {
	for _, cur := range s.chain(t) {
		for _, n := range cur.Navigations {
			if n.Name == name {
				return n
			}
		}
	}
	return nil
}

// Validate checks entity descriptors against schema rules before they are
// handed to a registry. Returns all errors found (does not fail-fast).
func Validate(types []*metadata.EntityType) []ValidationError {
	var errs []ValidationError

	view := schemaView{types: make(map[string]*metadata.EntityType)}
	for _, t := range types {
		if _, dup := view.types[t.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   t.Name,
				Message: fmt.Sprintf("duplicate entity type %q", t.Name),
				Code:    ErrDuplicateName,
			})
			continue
		}
		view.types[t.Name] = t
	}

	for _, t := range types {
		errs = append(errs, validateBase(view, t)...)
	}
	if len(errs) > 0 {
		// Everything below walks base chains.
		return errs
	}

	for _, t := range types {
		errs = append(errs, validateEntityType(view, t)...)
		errs = append(errs, validateNavigations(view, t)...)
	}
	return errs
}

func validateBase(view schemaView, t *metadata.EntityType) []ValidationError {
	if t.Base == "" {
		return nil
	}
	seen := map[string]bool{t.Name: true}
	for cur := t; cur.Base != ""; {
		next, ok := view.types[cur.Base]
		if !ok {
			return []ValidationError{{
				Field:   t.Name + ".base",
				Message: fmt.Sprintf("unknown base type %q", cur.Base),
				Code:    ErrUnknownBase,
			}}
		}
		if seen[next.Name] {
			return []ValidationError{{
				Field:   t.Name + ".base",
				Message: fmt.Sprintf("inheritance cycle through %q", next.Name),
				Code:    ErrBaseCycle,
			}}
		}
		seen[next.Name] = true
		cur = next
	}
	return nil
}

func validateEntityType(view schemaView, t *metadata.EntityType) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool)
	for _, anc := range view.chain(t)[1:] {
		for _, p := range anc.Properties {
			names[p.Name] = true
		}
		for _, n := range anc.Navigations {
			names[n.Name] = true
		}
	}

	for i, p := range t.Properties {
		field := fmt.Sprintf("%s.properties[%d]", t.Name, i)
		if names[p.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate member name %q", p.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[p.Name] = true

		if !value.ValidTypes[p.Type] {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("invalid type %q for property %q", p.Type, p.Name),
				Code:    ErrInvalidFieldType,
			})
		}
		errs = append(errs, validateValidatorSpecs(field, p.Validators)...)
	}

	for i, n := range t.Navigations {
		if names[n.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.navigations[%d]", t.Name, i),
				Message: fmt.Sprintf("duplicate member name %q", n.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[n.Name] = true
	}
	errs = append(errs, validateValidatorSpecs(t.Name, t.Validators)...)

	if t.Base != "" {
		return errs
	}

	if len(t.Key) == 0 {
		errs = append(errs, ValidationError{
			Field:   t.Name + ".key",
			Message: "root entity types require a key",
			Code:    ErrKeyMissing,
		})
		return errs
	}
	for _, k := range t.Key {
		if !view.hasProperty(t, k) {
			errs = append(errs, ValidationError{
				Field:   t.Name + ".key",
				Message: fmt.Sprintf("key property %q is not declared", k),
				Code:    ErrKeyUnknown,
			})
		}
	}
	if t.AutoGeneratedKey {
		ok := len(t.Key) == 1
		if ok {
			for _, p := range t.Properties {
				if p.Name == t.Key[0] {
					ok = p.Type == value.TypeInt || p.Type == value.TypeGuid
				}
			}
		}
		if !ok {
			errs = append(errs, ValidationError{
				Field:   t.Name + ".auto_key",
				Message: "auto-generated keys must be a single int or guid property",
				Code:    ErrAutoKey,
			})
		}
	}
	return errs
}

func validateNavigations(view schemaView, t *metadata.EntityType) []ValidationError {
	var errs []ValidationError

	for i, n := range t.Navigations {
		field := fmt.Sprintf("%s.navigations[%d]", t.Name, i)
		target, ok := view.types[n.Target]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".target",
				Message: fmt.Sprintf("unknown target type %q", n.Target),
				Code:    ErrUnknownTarget,
			})
			continue
		}

		if n.Inverse != "" {
			inv := view.navigation(target, n.Inverse)
			switch {
			case inv == nil:
				errs = append(errs, ValidationError{
					Field:   field + ".inverse",
					Message: fmt.Sprintf("inverse %q not found on %q", n.Inverse, target.Name),
					Code:    ErrUnknownInverse,
				})
			case inv.Inverse != "" && inv.Inverse != n.Name:
				errs = append(errs, ValidationError{
					Field:   field + ".inverse",
					Message: fmt.Sprintf("%s.%s names %q as its inverse", target.Name, inv.Name, inv.Inverse),
					Code:    ErrInverseMismatch,
				})
			case !n.IsScalar && !inv.IsScalar:
				errs = append(errs, ValidationError{
					Field:   field + ".inverse",
					Message: "many-to-many relationships are not supported",
					Code:    ErrInverseMismatch,
				})
			}
		}

		targetKey := view.root(target).Key
		if len(n.ForeignKeys) > 0 {
			if !n.IsScalar {
				errs = append(errs, ValidationError{
					Field:   field + ".foreign_keys",
					Message: "only scalar navigations carry foreign keys",
					Code:    ErrForeignKeyOnMany,
				})
			}
			if len(n.ForeignKeys) != len(targetKey) {
				errs = append(errs, ValidationError{
					Field:   field + ".foreign_keys",
					Message: fmt.Sprintf("%d foreign keys for the %d-part key of %q", len(n.ForeignKeys), len(targetKey), target.Name),
					Code:    ErrForeignKeyArity,
				})
			}
			for _, fk := range n.ForeignKeys {
				if !view.hasProperty(t, fk) {
					errs = append(errs, ValidationError{
						Field:   field + ".foreign_keys",
						Message: fmt.Sprintf("foreign key %q is not declared on %q", fk, t.Name),
						Code:    ErrUnknownForeignKey,
					})
				}
			}
		}

		ownKey := view.root(t).Key
		if len(n.InverseForeignKeys) > 0 {
			if len(n.InverseForeignKeys) != len(ownKey) {
				errs = append(errs, ValidationError{
					Field:   field + ".inverse_foreign_keys",
					Message: fmt.Sprintf("%d inverse foreign keys for the %d-part key of %q", len(n.InverseForeignKeys), len(ownKey), t.Name),
					Code:    ErrForeignKeyArity,
				})
			}
			for _, fk := range n.InverseForeignKeys {
				if !view.hasProperty(target, fk) {
					errs = append(errs, ValidationError{
						Field:   field + ".inverse_foreign_keys",
						Message: fmt.Sprintf("inverse foreign key %q is not declared on %q", fk, target.Name),
						Code:    ErrUnknownForeignKey,
					})
				}
			}
		}
	}
	return errs
}

func validateValidatorSpecs(field string, specs []metadata.ValidatorSpec) []ValidationError {
	var errs []ValidationError
	for i, spec := range specs {
		f := fmt.Sprintf("%s.validators[%d]", field, i)
		var msg string
		switch spec.Name {
		case metadata.ValidatorMaxLength:
			if spec.MaxLength <= 0 {
				msg = "max_length requires a positive max_length"
			}
		case metadata.ValidatorRange:
			if spec.Min == nil && spec.Max == nil {
				msg = "range requires min or max"
			} else if spec.Min != nil && spec.Max != nil && *spec.Min > *spec.Max {
				msg = "range min exceeds max"
			}
		case metadata.ValidatorPattern:
			if _, err := regexp.Compile(spec.Pattern); err != nil {
				msg = fmt.Sprintf("invalid pattern: %v", err)
			}
		}
		if msg != "" {
			errs = append(errs, ValidationError{Field: f, Message: msg, Code: ErrValidatorArgs})
		}
	}
	return errs
}
