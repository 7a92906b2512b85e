package marc21

import (
	"fmt"
	"slices"

	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/rules"
	"github.com/roach88/marcshift/internal/shape"
)

// Fields returns the built-in declarative field rules.
func Fields() []ir.FieldSpec {
	return slices.Clone(fieldSpecs)
}

// Register installs the built-in MARC 21 rules on e.
//
// Rules already registered on e take precedence on overlapping patterns,
// so a host can register local overrides first and fall back to these.
func Register(e *engine.Engine) error {
	return register(e, func(string, string) bool { return true })
}

// register installs the built-in rules for which keep reports true,
// given the rule's canonical name and forward pattern.
func register(e *engine.Engine, keep func(name, pattern string) bool) error {
	forward := []struct {
		name    string
		pattern string
		h       shape.Forward
	}{
		{"leader", "leader", shape.AsForward(decodeLeader)},
		{"fixed_length_data_elements", "008", shape.AsForward(decodeFixedData)},
		{"international_standard_book_number", `020..`, shape.ForEach(shape.DropEmpty(shape.Skippable(shape.AsForward(decodeISBN))))},
	}
	reverse := []struct {
		name    string
		pattern string
		h       shape.Reverse
	}{
		{"leader", "leader", shape.AsReverse(encodeLeader)},
		{"008", "fixed_length_data_elements", shape.AsReverse(encodeFixedData)},
		{"020", "international_standard_book_number", shape.DropEmpty(shape.ForceList(shape.AsReverse(encodeISBNs)))},
	}

	for i, r := range forward {
		if !keep(r.name, r.pattern) {
			continue
		}
		if err := e.Register(r.name, r.pattern, r.h); err != nil {
			return fmt.Errorf("marc21: %w", err)
		}
		rev := reverse[i]
		if err := e.RegisterReverse(rev.name, rev.pattern, rev.h); err != nil {
			return fmt.Errorf("marc21: %w", err)
		}
	}

	var specs []ir.FieldSpec
	for _, spec := range fieldSpecs {
		if keep(spec.Name, rules.ForwardPattern(spec)) {
			specs = append(specs, spec)
		}
	}
	if err := rules.Install(e, specs...); err != nil {
		return fmt.Errorf("marc21: %w", err)
	}
	return nil
}

// New returns an engine carrying only the built-in rules.
func New(opts ...engine.EngineOption) (*engine.Engine, error) {
	e := engine.New(opts...)
	if err := Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Assemble returns an engine carrying local field rules ahead of the
// built-in ones. With builtin false the engine carries the local rules
// alone.
//
// Local rules are registered first, so on overlapping patterns they win.
// A built-in rule that a local spec redeclares, by canonical name or by
// the exact same pattern, is left out entirely in both directions.
func Assemble(local []ir.FieldSpec, builtin bool, opts ...engine.EngineOption) (*engine.Engine, error) {
	e := engine.New(opts...)
	if err := rules.Install(e, local...); err != nil {
		return nil, err
	}
	if !builtin {
		return e, nil
	}

	names := make(map[string]bool, len(local))
	patterns := make(map[string]bool, len(local))
	for _, spec := range local {
		names[spec.Name] = true
		patterns[rules.ForwardPattern(spec)] = true
	}
	err := register(e, func(name, pattern string) bool {
		return !names[name] && !patterns[pattern]
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}
