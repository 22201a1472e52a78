package cache

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/graphcache/internal/metadata"
)

// ValidationError is one failed validator. Errors are identified by
// (Validator, Property); Property is empty for entity-level validators.
type ValidationError struct {
	Validator string `json:"validator"`
	Property  string `json:"property,omitempty"`
	Message   string `json:"message"`
}

func (v ValidationError) key() string {
	return v.Validator + ":" + v.Property
}

// String renders the error for logs.
func (v ValidationError) String() string {
	if v.Property == "" {
		return fmt.Sprintf("%s: %s", v.Validator, v.Message)
	}
	return fmt.Sprintf("%s.%s: %s", v.Property, v.Validator, v.Message)
}

func sortValidationErrors(errs []ValidationError) {
	slices.SortFunc(errs, func(a, b ValidationError) int {
		if c := cmp.Compare(a.Property, b.Property); c != 0 {
			return c
		}
		return cmp.Compare(a.Validator, b.Validator)
	})
}

// ValidationOptions controls automatic validation.
type ValidationOptions struct {
	// OnAttach validates the whole entity after every attach.
	OnAttach bool
	// OnPropertyChange validates a data property after each committed write.
	OnPropertyChange bool
	// OnSave validates every entity passed to BeginSave and refuses to
	// start a batch that has errors.
	OnSave bool
}

// DefaultValidationOptions validates on save only.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{OnSave: true}
}

// ValidateProperty runs the validators of one data property and reports
// whether it is valid.
func (a *Aspect) ValidateProperty(name string) (bool, error) {
	p, ok := a.entity.typ.DataProperty(name)
	if !ok {
		return false, newUnknownPropertyError(a.entity, name)
	}
	return a.validateProperty(p), nil
}

// ValidateEntity runs every property and entity validator and reports
// whether the entity is valid.
func (a *Aspect) ValidateEntity() bool {
	var found []ValidationError
	for _, p := range a.entity.typ.DataProperties() {
		found = append(found, a.runProperty(p)...)
	}
	found = append(found, a.runEntity()...)
	a.replaceErrors(found, func(ValidationError) bool { return true })
	return len(a.errors) == 0
}

func (a *Aspect) validateProperty(p *metadata.DataProperty) bool {
	found := a.runProperty(p)
	a.replaceErrors(found, func(v ValidationError) bool { return v.Property == p.Name })
	return len(found) == 0
}

func (a *Aspect) runProperty(p *metadata.DataProperty) []ValidationError {
	ctx := metadata.ValidationContext{
		Type:     a.entity.typ,
		Property: p,
		Value:    a.entity.Get(p.Name),
		Entity:   a.entity,
	}
	var out []ValidationError
	for _, v := range p.CompiledValidators() {
		if msg, ok := v.Validate(ctx); !ok {
			out = append(out, ValidationError{Validator: v.Name(), Property: p.Name, Message: msg})
		}
	}
	return out
}

func (a *Aspect) runEntity() []ValidationError {
	ctx := metadata.ValidationContext{Type: a.entity.typ, Entity: a.entity}
	var out []ValidationError
	for _, v := range a.entity.typ.CompiledValidators() {
		if msg, ok := v.Validate(ctx); !ok {
			out = append(out, ValidationError{Validator: v.Name(), Message: msg})
		}
	}
	return out
}

// replaceErrors swaps the errors selected by inScope for found and
// publishes only the net difference.
func (a *Aspect) replaceErrors(found []ValidationError, inScope func(ValidationError) bool) {
	next := make(map[string]ValidationError, len(found))
	for _, v := range found {
		next[v.key()] = v
	}

	var added, removed []ValidationError
	for k, v := range a.errors {
		if !inScope(v) {
			continue
		}
		if nv, ok := next[k]; !ok || nv.Message != v.Message {
			removed = append(removed, v)
			delete(a.errors, k)
		}
	}
	for k, v := range next {
		if _, ok := a.errors[k]; !ok {
			added = append(added, v)
			a.errors[k] = v
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	sortValidationErrors(added)
	sortValidationErrors(removed)
	if a.session != nil {
		a.session.publishValidationErrorsChanged(a.entity, added, removed)
	}
}
