package marc21

import (
	"fmt"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/rules"
	"github.com/roach88/marcshift/internal/shape"
)

// 020 subfields, in output order.
var isbnSubfields = []ir.SubfieldSpec{
	{Code: "a", Name: "international_standard_book_number"},
	{Code: "c", Name: "terms_of_availability"},
	{Code: "q", Name: "qualifying_information", Repeatable: true},
	{Code: "z", Name: "canceled_invalid_isbn", Repeatable: true},
	{Code: "6", Name: "linkage"},
	{Code: "8", Name: "field_link_and_sequence_number", Repeatable: true},
}

var (
	isbnNames = codeMap(isbnSubfields, func(sf ir.SubfieldSpec) (string, string) { return sf.Code, sf.Name })
	isbnCodes = codeMap(isbnSubfields, func(sf ir.SubfieldSpec) (string, string) { return sf.Name, sf.Code })
)

func codeMap(sfs []ir.SubfieldSpec, kv func(ir.SubfieldSpec) (string, string)) map[string]string {
	m := make(map[string]string, len(sfs))
	for _, sf := range sfs {
		k, v := kv(sf)
		m[k] = v
	}
	return m
}

// decodeISBN converts one 020 field. A field carrying neither a valid
// nor a canceled number says nothing and is skipped.
func decodeISBN(_ *shape.Context, key string, value ir.Value) (ir.Value, error) {
	rec, ok := value.(*ir.Record)
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected subfields, got %T", rules.ErrMalformedField, key, value)
	}
	if !rec.Has("a") && !rec.Has("z") {
		return nil, shape.ErrSkip
	}

	out := ir.NewRecord(ir.E(ir.OrderKey, shape.OrderOrAbsent(shape.MapOrder(isbnNames, rec))))
	for _, sf := range isbnSubfields {
		vals := rec.All(sf.Code)
		if sf.Repeatable {
			out.Add(sf.Name, ir.List(vals))
		} else {
			out.Add(sf.Name, ir.Collapse(vals))
		}
	}
	return out, nil
}

// encodeISBNs converts the whole list of ISBN mappings at once and
// returns one raw 020 field per mapping.
func encodeISBNs(_ *shape.Context, key string, value ir.Value) (ir.Value, error) {
	items := ir.ForceList(value)
	out := make(ir.List, 0, len(items))
	for i, item := range items {
		rec, ok := item.(*ir.Record)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d]: expected mapping, got %T", rules.ErrMalformedField, key, i, item)
		}
		f := ir.NewRecord(ir.E(ir.OrderKey, shape.OrderOrAbsent(shape.MapOrder(isbnCodes, rec))))
		for _, sf := range isbnSubfields {
			if v, ok := rec.Get(sf.Name); ok {
				f.Add(sf.Code, ir.Collapse(ir.ForceList(v)))
			}
		}
		out = append(out, f)
	}
	return out, nil
}
