package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/marcshift/internal/ir"
)

// CompileRuleSet parses every field under the top-level "field" struct,
// in declaration order. Declaration order is registration order, so it
// decides precedence between overlapping patterns.
//
//	field: title_statement: {
//		tag: "245"
//		subfields: {
//			a: "title"
//			n: {name: "number_of_part", repeatable: true}
//		}
//		ind1: {name: "title_added_entry", values: {"0": "No added entry", "1": "Added entry"}}
//		ind2: "nonfiling_characters"
//	}
func CompileRuleSet(v cue.Value) ([]ir.FieldSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	fieldsVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldsVal.Exists() {
		return nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.FieldSpec
	for iter.Next() {
		spec, err := CompileField(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileField parses a CUE value into a FieldSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the field struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`field: general_note: { tag: "500", ... }`)
//	spec, err := CompileField(v.LookupPath(cue.ParsePath("field.general_note")))
func CompileField(v cue.Value) (*ir.FieldSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.FieldSpec{}

	// Field name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	tagVal := v.LookupPath(cue.ParsePath("tag"))
	if !tagVal.Exists() {
		return nil, &CompileError{
			Field:   "tag",
			Message: "tag is required",
			Pos:     v.Pos(),
		}
	}
	tag, err := tagVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Tag = tag

	if spec.Pattern, err = optionalString(v, "pattern"); err != nil {
		return nil, err
	}
	if spec.Control, err = optionalBool(v, "control"); err != nil {
		return nil, err
	}
	if spec.Repeatable, err = optionalBool(v, "repeatable"); err != nil {
		return nil, err
	}

	spec.Subfields, err = parseSubfields(v)
	if err != nil {
		return nil, err
	}

	for pos, label := range []string{"ind1", "ind2"} {
		indVal := v.LookupPath(cue.ParsePath(label))
		if !indVal.Exists() {
			continue
		}
		ind, err := parseIndicator(indVal, pos+1)
		if err != nil {
			return nil, err
		}
		spec.Indicators = append(spec.Indicators, ind)
	}

	return spec, nil
}

// parseSubfields extracts subfield definitions in declaration order.
// Each entry is either a bare name or {name, repeatable}.
func parseSubfields(v cue.Value) ([]ir.SubfieldSpec, error) {
	var subfields []ir.SubfieldSpec

	sfVal := v.LookupPath(cue.ParsePath("subfields"))
	if !sfVal.Exists() {
		return subfields, nil // subfields are optional (control fields)
	}

	iter, err := sfVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		sf := ir.SubfieldSpec{Code: iter.Selector().Unquoted()}
		val := iter.Value()

		// Try as string first
		if name, err := val.String(); err == nil {
			sf.Name = name
			subfields = append(subfields, sf)
			continue
		}

		nameVal := val.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   "subfields." + sf.Code,
				Message: "must be a string or object with name field",
				Pos:     val.Pos(),
			}
		}
		if sf.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		if sf.Repeatable, err = optionalBool(val, "repeatable"); err != nil {
			return nil, err
		}
		subfields = append(subfields, sf)
	}

	return subfields, nil
}

// parseIndicator parses one indicator: a bare name, or
// {name, values: {code: label}}.
func parseIndicator(v cue.Value, position int) (ir.IndicatorSpec, error) {
	ind := ir.IndicatorSpec{Position: position}

	if name, err := v.String(); err == nil {
		ind.Name = name
		return ind, nil
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return ind, &CompileError{
			Field:   fmt.Sprintf("ind%d", position),
			Message: "must be a string or object with name field",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return ind, formatCUEError(err)
	}
	ind.Name = name

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if !valuesVal.Exists() {
		return ind, nil
	}
	iter, err := valuesVal.Fields()
	if err != nil {
		return ind, formatCUEError(err)
	}
	for iter.Next() {
		label, err := iter.Value().String()
		if err != nil {
			return ind, &CompileError{
				Field:   fmt.Sprintf("ind%d.values.%s", position, iter.Selector().Unquoted()),
				Message: "indicator label must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		ind.Values = append(ind.Values, ir.IndicatorValue{
			Code:  iter.Selector().Unquoted(),
			Label: label,
		})
	}
	return ind, nil
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

	// Return first error with position info
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
