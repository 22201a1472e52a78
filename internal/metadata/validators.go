package metadata

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/roach88/graphcache/internal/value"
)

// Built-in validator names.
const (
	ValidatorRequired  = "required"
	ValidatorMaxLength = "max_length"
	ValidatorRange     = "range"
	ValidatorPattern   = "pattern"
)

// ValidatorSpec declares a validator on a property or an entity type.
type ValidatorSpec struct {
	Name      string   `json:"name"`
	MaxLength int      `json:"max_length,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// PropertyGetter gives entity-level validators read access to an entity.
type PropertyGetter interface {
	Get(name string) value.Value
}

// ValidationContext is what a validator sees.
// Property is nil for entity-level validators.
type ValidationContext struct {
	Type     *EntityType
	Property *DataProperty
	Value    value.Value
	Entity   PropertyGetter
}

// Validator checks a value or an entity. A failed check returns a message
// and false.
type Validator interface {
	Name() string
	Validate(ctx ValidationContext) (string, bool)
}

type validatorFunc struct {
	name string
	fn   func(ValidationContext) (string, bool)
}

func (v validatorFunc) Name() string { return v.name }

func (v validatorFunc) Validate(ctx ValidationContext) (string, bool) { return v.fn(ctx) }

// NewValidator wraps a function as a named Validator.
func NewValidator(name string, fn func(ValidationContext) (string, bool)) Validator {
	return validatorFunc{name: name, fn: fn}
}

// compileValidator turns a spec into a Validator, consulting custom
// validators for names that are not built in.
func compileValidator(spec ValidatorSpec, custom map[string]Validator) (Validator, error) {
	var v Validator
	switch spec.Name {
	case ValidatorRequired:
		v = requiredValidator()
	case ValidatorMaxLength:
		if spec.MaxLength <= 0 {
			return nil, fmt.Errorf("max_length validator needs a positive max_length, got %d", spec.MaxLength)
		}
		v = maxLengthValidator(spec.MaxLength)
	case ValidatorRange:
		if spec.Min == nil && spec.Max == nil {
			return nil, fmt.Errorf("range validator needs min or max")
		}
		v = rangeValidator(spec.Min, spec.Max)
	case ValidatorPattern:
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern validator: %w", err)
		}
		v = patternValidator(re)
	default:
		c, ok := custom[spec.Name]
		if !ok {
			return nil, fmt.Errorf("unknown validator %q", spec.Name)
		}
		v = c
	}
	if spec.Message != "" {
		inner := v
		msg := spec.Message
		v = NewValidator(inner.Name(), func(ctx ValidationContext) (string, bool) {
			if _, ok := inner.Validate(ctx); ok {
				return "", true
			}
			return msg, false
		})
	}
	return v, nil
}

func displayName(ctx ValidationContext) string {
	if ctx.Property != nil {
		return ctx.Property.Name
	}
	if ctx.Type != nil {
		return ctx.Type.Name
	}
	return "value"
}

func requiredValidator() Validator {
	return NewValidator(ValidatorRequired, func(ctx ValidationContext) (string, bool) {
		if value.IsNull(ctx.Value) {
			return fmt.Sprintf("'%s' is required", displayName(ctx)), false
		}
		if s, ok := ctx.Value.(value.String); ok && s == "" {
			return fmt.Sprintf("'%s' is required", displayName(ctx)), false
		}
		return "", true
	})
}

func maxLengthValidator(limit int) Validator {
	return NewValidator(ValidatorMaxLength, func(ctx ValidationContext) (string, bool) {
		s, ok := ctx.Value.(value.String)
		if !ok {
			return "", true
		}
		if utf8.RuneCountInString(string(s)) > limit {
			return fmt.Sprintf("'%s' must be at most %d characters", displayName(ctx), limit), false
		}
		return "", true
	})
}

func rangeValidator(lo, hi *float64) Validator {
	return NewValidator(ValidatorRange, func(ctx ValidationContext) (string, bool) {
		var f float64
		switch n := ctx.Value.(type) {
		case value.Int:
			f = float64(n)
		case value.Float:
			f = float64(n)
		default:
			return "", true
		}
		if lo != nil && f < *lo {
			return fmt.Sprintf("'%s' must be at least %v", displayName(ctx), *lo), false
		}
		if hi != nil && f > *hi {
			return fmt.Sprintf("'%s' must be at most %v", displayName(ctx), *hi), false
		}
		return "", true
	})
}

func patternValidator(re *regexp.Regexp) Validator {
	return NewValidator(ValidatorPattern, func(ctx ValidationContext) (string, bool) {
		s, ok := ctx.Value.(value.String)
		if !ok {
			return "", true
		}
		if !re.MatchString(string(s)) {
			return fmt.Sprintf("'%s' does not match %s", displayName(ctx), re.String()), false
		}
		return "", true
	})
}
