package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/shape"
)

// indicatorKeys are the modifier keys of indicator positions 1 and 2.
var indicatorKeys = [2]string{ir.Ind1Key, ir.Ind2Key}

// ErrMalformedField is returned by field rules for a value of the wrong
// shape, such as a data field with no subfield map.
var ErrMalformedField = errors.New("malformed field")

// ErrDuplicateField is returned by Install for a spec whose name is
// already installed. Both directions would otherwise disagree on which
// of the two specs wins.
var ErrDuplicateField = errors.New("field name already installed")

// Install registers a forward and a reverse rule for every spec, in
// order. Earlier specs take precedence over later ones and over rules
// registered after Install. Names must be unique across every spec
// installed on e.
func Install(e *engine.Engine, specs ...ir.FieldSpec) error {
	installed := make(map[string]bool)
	for _, r := range e.Rules() {
		if r.Direction == ir.Reverse {
			installed[r.Pattern] = true
		}
	}
	for _, spec := range specs {
		f, err := newField(spec)
		if err != nil {
			return fmt.Errorf("install %s: %w", spec.Name, err)
		}
		if installed[regexp.QuoteMeta(spec.Name)] {
			return fmt.Errorf("install %s: %w", spec.Name, ErrDuplicateField)
		}
		installed[regexp.QuoteMeta(spec.Name)] = true
		if err := e.Register(spec.Name, f.pattern(), f.forward()); err != nil {
			return fmt.Errorf("install %s: %w", spec.Name, err)
		}
		if err := e.RegisterReverse(spec.Tag, regexp.QuoteMeta(spec.Name), f.reverse()); err != nil {
			return fmt.Errorf("install %s: %w", spec.Name, err)
		}
	}
	return nil
}

// field is a compiled FieldSpec.
type field struct {
	spec   ir.FieldSpec
	toName map[string]string // subfield code -> canonical name
	toCode map[string]string // canonical name -> subfield code
	ind    [2]*indicator
}

type indicator struct {
	name   string
	labels map[string]string // code -> label
	codes  map[string]string // label -> code
}

func newField(spec ir.FieldSpec) (*field, error) {
	if spec.Name == "" {
		return nil, errors.New("field name is required")
	}
	if spec.Tag == "" {
		return nil, errors.New("field tag is required")
	}

	f := &field{
		spec:   spec,
		toName: make(map[string]string, len(spec.Subfields)),
		toCode: make(map[string]string, len(spec.Subfields)),
	}
	for _, sf := range spec.Subfields {
		if _, dup := f.toName[sf.Code]; dup {
			return nil, fmt.Errorf("subfield %q declared twice", sf.Code)
		}
		if _, dup := f.toCode[sf.Name]; dup {
			return nil, fmt.Errorf("subfield name %q declared twice", sf.Name)
		}
		f.toName[sf.Code] = sf.Name
		f.toCode[sf.Name] = sf.Code
	}
	for _, is := range spec.Indicators {
		if is.Position != 1 && is.Position != 2 {
			return nil, fmt.Errorf("indicator %q: position must be 1 or 2, got %d", is.Name, is.Position)
		}
		ind := &indicator{
			name:   is.Name,
			labels: make(map[string]string, len(is.Values)),
			codes:  make(map[string]string, len(is.Values)),
		}
		for _, v := range is.Values {
			ind.labels[v.Code] = v.Label
			ind.codes[v.Label] = v.Code
		}
		f.ind[is.Position-1] = ind
	}
	if spec.Control && (len(spec.Subfields) > 0 || len(spec.Indicators) > 0) {
		return nil, errors.New("control fields take no subfields or indicators")
	}
	return f, nil
}

func (f *field) pattern() string {
	return ForwardPattern(f.spec)
}

// ForwardPattern returns the key pattern a spec installs its forward
// rule under. Data field keys carry two indicator characters after the
// tag.
func ForwardPattern(spec ir.FieldSpec) string {
	if spec.Pattern != "" {
		return spec.Pattern
	}
	if spec.Control {
		return regexp.QuoteMeta(spec.Tag)
	}
	return regexp.QuoteMeta(spec.Tag) + ".."
}

func (f *field) forward() shape.Forward {
	var h shape.Forward
	if f.spec.Control {
		h = shape.AsForward(controlBody)
	} else {
		h = shape.DropEmpty(shape.Skippable(shape.AsForward(f.decode)))
	}
	if f.spec.Repeatable {
		h = shape.ForEach(h)
	}
	return h
}

// reverse fans out any list value, so a field declared non-repeatable
// still converts back when a producer hands it several occurrences.
func (f *field) reverse() shape.Reverse {
	if f.spec.Control {
		return shape.AsReverse(controlBody)
	}
	return shape.ReverseForEach(shape.DropEmpty(shape.AsReverse(f.encode)))
}

func controlBody(_ *shape.Context, key string, value ir.Value) (ir.Value, error) {
	if _, ok := value.(*ir.Record); ok {
		return nil, fmt.Errorf("%w: %s: control field has subfields", ErrMalformedField, key)
	}
	return value, nil
}

// decode maps one raw data field onto its canonical mapping. A field
// with none of the declared subfields is skipped.
func (f *field) decode(_ *shape.Context, key string, value ir.Value) (ir.Value, error) {
	rec, ok := value.(*ir.Record)
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected subfields, got %T", ErrMalformedField, key, value)
	}

	out := ir.NewRecord()
	out.Add(ir.OrderKey, shape.OrderOrAbsent(shape.MapOrder(f.toName, rec)))
	for i, ind := range f.ind {
		code := indicatorAt(key, len(f.spec.Tag)+i)
		if ind == nil {
			// Undeclared but set: carried under its modifier key so the
			// reverse rule can write it back.
			if !isBlank(code) {
				out.Add(indicatorKeys[i], ir.Scalar(code))
			}
			continue
		}
		out.Add(ind.name, ind.label(code))
	}

	found := false
	for _, sf := range f.spec.Subfields {
		vals := rec.All(sf.Code)
		if len(vals) > 0 {
			found = true
		}
		if sf.Repeatable {
			out.Add(sf.Name, ir.List(vals))
			continue
		}
		out.Add(sf.Name, ir.Collapse(vals))
	}
	if !found {
		return nil, shape.ErrSkip
	}
	return out, nil
}

// encode maps one canonical mapping back onto a raw data field.
func (f *field) encode(_ *shape.Context, key string, value ir.Value) (ir.Value, error) {
	rec, ok := value.(*ir.Record)
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected mapping, got %T", ErrMalformedField, key, value)
	}

	out := ir.NewRecord()
	out.Add(ir.OrderKey, shape.OrderOrAbsent(shape.MapOrder(f.toCode, rec)))
	for i, mk := range indicatorKeys {
		if f.ind[i] == nil {
			if v, ok := rec.Get(mk); ok {
				out.Add(mk, v)
			}
			continue
		}
		v, _ := rec.Get(f.ind[i].name)
		out.Add(mk, f.ind[i].code(v))
	}
	for _, sf := range f.spec.Subfields {
		v, ok := rec.Get(sf.Name)
		if !ok {
			continue
		}
		out.Add(sf.Code, ir.Collapse(ir.ForceList(v)))
	}
	return out, nil
}

// label maps a raw indicator code to its canonical value. Blank
// indicators are absent unless the field labels the blank code "_".
func (ind *indicator) label(code string) ir.Value {
	if isBlank(code) {
		code = ir.BlankModifier
	}
	if l, ok := ind.labels[code]; ok {
		return ir.Scalar(l)
	}
	if code == ir.BlankModifier {
		return nil
	}
	return ir.Scalar(code)
}

func (ind *indicator) code(v ir.Value) ir.Value {
	s, ok := ir.AsString(v)
	if !ok {
		return nil
	}
	if c, ok := ind.codes[s]; ok {
		return ir.Scalar(c)
	}
	return ir.Scalar(s)
}

func indicatorAt(key string, pos int) string {
	if pos >= len(key) {
		return ""
	}
	return key[pos : pos+1]
}

func isBlank(code string) bool {
	return code == "" || code == ir.BlankModifier || strings.TrimSpace(code) == ""
}
