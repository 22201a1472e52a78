package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// CompileEntityType parses a CUE value into an unresolved EntityType.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Customer: { key: ["id"], properties: id: "int" }`)
//	et, err := CompileEntityType(v.LookupPath(cue.ParsePath("entity.Customer")))
func CompileEntityType(v cue.Value) (*metadata.EntityType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	et := &metadata.EntityType{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		et.Name = labels[len(labels)-1].String()
	}

	var err error
	if et.Base, err = optionalString(v, "base"); err != nil {
		return nil, err
	}
	if et.AutoGeneratedKey, err = optionalBool(v, "auto_key"); err != nil {
		return nil, err
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if keyVal.Exists() {
		if et.Key, err = stringList(keyVal); err != nil {
			return nil, err
		}
	} else if et.Base == "" {
		return nil, &CompileError{
			Field:   "key",
			Message: "key is required unless base is set",
			Pos:     v.Pos(),
		}
	}

	if et.Properties, err = parseProperties(v); err != nil {
		return nil, err
	}
	if len(et.Properties) == 0 && et.Base == "" {
		return nil, &CompileError{
			Field:   "properties",
			Message: "at least one property is required",
			Pos:     v.Pos(),
		}
	}

	if et.Navigations, err = parseNavigations(v); err != nil {
		return nil, err
	}

	validatorsVal := v.LookupPath(cue.ParsePath("validators"))
	if validatorsVal.Exists() {
		if et.Validators, err = parseValidators(validatorsVal); err != nil {
			return nil, err
		}
	}

	return et, nil
}

// parseProperties extracts data properties in declaration order.
// A property is either a bare type string or a struct with a type field.
func parseProperties(v cue.Value) ([]*metadata.DataProperty, error) {
	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, nil
	}

	iter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var props []*metadata.DataProperty
	for iter.Next() {
		name := iter.Label()
		pv := iter.Value()
		prop := &metadata.DataProperty{Name: name}

		if s, err := pv.String(); err == nil {
			prop.Type, err = parseType(s, pv.Pos())
			if err != nil {
				return nil, err
			}
			props = append(props, prop)
			continue
		}

		typeVal := pv.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("properties.%s.type", name),
				Message: "property type is required",
				Pos:     pv.Pos(),
			}
		}
		typeName, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if prop.Type, err = parseType(typeName, typeVal.Pos()); err != nil {
			return nil, err
		}
		if prop.Nullable, err = optionalBool(pv, "nullable"); err != nil {
			return nil, err
		}
		if prop.Unmapped, err = optionalBool(pv, "unmapped"); err != nil {
			return nil, err
		}

		defVal := pv.LookupPath(cue.ParsePath("default"))
		if defVal.Exists() {
			if prop.Default, err = scalar(defVal); err != nil {
				return nil, err
			}
		}

		validatorsVal := pv.LookupPath(cue.ParsePath("validators"))
		if validatorsVal.Exists() {
			if prop.Validators, err = parseValidators(validatorsVal); err != nil {
				return nil, err
			}
		}

		props = append(props, prop)
	}
	return props, nil
}

// parseNavigations extracts navigation properties in declaration order.
func parseNavigations(v cue.Value) ([]*metadata.NavigationProperty, error) {
	navsVal := v.LookupPath(cue.ParsePath("navigations"))
	if !navsVal.Exists() {
		return nil, nil
	}

	iter, err := navsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var navs []*metadata.NavigationProperty
	for iter.Next() {
		name := iter.Label()
		nv := iter.Value()
		nav := &metadata.NavigationProperty{Name: name}

		targetVal := nv.LookupPath(cue.ParsePath("target"))
		if !targetVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("navigations.%s.target", name),
				Message: "navigation target is required",
				Pos:     nv.Pos(),
			}
		}
		if nav.Target, err = targetVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		if nav.IsScalar, err = optionalBool(nv, "scalar"); err != nil {
			return nil, err
		}
		if nav.Inverse, err = optionalString(nv, "inverse"); err != nil {
			return nil, err
		}
		if fks := nv.LookupPath(cue.ParsePath("foreign_keys")); fks.Exists() {
			if nav.ForeignKeys, err = stringList(fks); err != nil {
				return nil, err
			}
		}
		if fks := nv.LookupPath(cue.ParsePath("inverse_foreign_keys")); fks.Exists() {
			if nav.InverseForeignKeys, err = stringList(fks); err != nil {
				return nil, err
			}
		}
		navs = append(navs, nav)
	}
	return navs, nil
}

// parseValidators extracts a validator list. Entries are either a bare
// validator name or a struct with a name field and arguments.
func parseValidators(v cue.Value) ([]metadata.ValidatorSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []metadata.ValidatorSpec
	for iter.Next() {
		ev := iter.Value()
		if name, err := ev.String(); err == nil {
			specs = append(specs, metadata.ValidatorSpec{Name: name})
			continue
		}

		nameVal := ev.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   "validators",
				Message: "validator must be a string or object with name field",
				Pos:     ev.Pos(),
			}
		}
		var spec metadata.ValidatorSpec
		if spec.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		if ml := ev.LookupPath(cue.ParsePath("max_length")); ml.Exists() {
			n, err := ml.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.MaxLength = int(n)
		}
		if spec.Min, err = optionalNumber(ev, "min"); err != nil {
			return nil, err
		}
		if spec.Max, err = optionalNumber(ev, "max"); err != nil {
			return nil, err
		}
		if spec.Pattern, err = optionalString(ev, "pattern"); err != nil {
			return nil, err
		}
		if spec.Message, err = optionalString(ev, "message"); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseType(s string, pos token.Pos) (value.DataType, error) {
	dt, err := value.ParseDataType(s)
	if err != nil {
		return "", &CompileError{
			Field:   "type",
			Message: err.Error(),
			Pos:     pos,
		}
	}
	return dt, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalNumber(v cue.Value, field string) (*float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &f, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// scalar converts a concrete CUE scalar to a plain Go value.
func scalar(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.FloatKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("default must be a concrete scalar, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
