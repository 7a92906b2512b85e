package marc21

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/shape"
)

// ErrMalformedLeader is returned for a leader that is not 24 characters.
var ErrMalformedLeader = errors.New("malformed leader")

// position is one fixed-width element of a positional field.
type position struct {
	start int
	width int
	name  string
}

const leaderLength = 24

var leaderPositions = []position{
	{0, 5, "record_length"},
	{5, 1, "record_status"},
	{6, 1, "type_of_record"},
	{7, 1, "bibliographic_level"},
	{8, 1, "type_of_control"},
	{9, 1, "character_coding_scheme"},
	{10, 1, "indicator_count"},
	{11, 1, "subfield_code_count"},
	{12, 5, "base_address_of_data"},
	{17, 1, "encoding_level"},
	{18, 1, "descriptive_cataloging_form"},
	{19, 1, "multipart_resource_record_level"},
	{20, 4, "entry_map"},
}

const fixedDataLength = 40

// 008 positions common to all material types. 18-34 depend on the type
// of record and are carried as one element.
var fixedDataPositions = []position{
	{0, 6, "date_entered_on_file"},
	{6, 1, "type_of_date"},
	{7, 4, "date1"},
	{11, 4, "date2"},
	{15, 3, "place_of_publication"},
	{18, 17, "material_specific_details"},
	{35, 3, "language"},
	{38, 1, "modified_record"},
	{39, 1, "cataloging_source"},
}

func decodePositions(ps []position, s string) *ir.Record {
	out := ir.NewRecord()
	for _, p := range ps {
		out.Add(p.name, ir.Scalar(s[p.start:p.start+p.width]))
	}
	return out
}

// encodePositions joins the elements of rec. Missing elements are blank;
// elements of the wrong width are padded or cut to fit. Cuts fall on a
// rune boundary, padding with blanks what a split rune would have used.
func encodePositions(ps []position, length int, rec *ir.Record) string {
	buf := []byte(strings.Repeat(" ", length))
	for _, p := range ps {
		v := rec.Text(p.name)
		if len(v) > p.width {
			n := p.width
			for n > 0 && !utf8.RuneStart(v[n]) {
				n--
			}
			v = v[:n]
		}
		copy(buf[p.start:], v)
	}
	return string(buf)
}

func decodeLeader(_ *shape.Context, _ string, value ir.Value) (ir.Value, error) {
	s, ok := ir.AsString(value)
	if !ok || len(s) != leaderLength {
		return nil, fmt.Errorf("%w: want %d characters, got %q", ErrMalformedLeader, leaderLength, s)
	}
	return decodePositions(leaderPositions, s), nil
}

func encodeLeader(_ *shape.Context, _ string, value ir.Value) (ir.Value, error) {
	switch v := value.(type) {
	case *ir.Record:
		return ir.Scalar(encodePositions(leaderPositions, leaderLength, v)), nil
	case ir.Scalar:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrMalformedLeader, value)
	}
}

// decodeFixedData splits 008. A value of the wrong length is carried
// through unchanged rather than guessed at.
func decodeFixedData(_ *shape.Context, _ string, value ir.Value) (ir.Value, error) {
	s, ok := ir.AsString(value)
	if !ok || len(s) != fixedDataLength {
		return value, nil
	}
	return decodePositions(fixedDataPositions, s), nil
}

func encodeFixedData(_ *shape.Context, _ string, value ir.Value) (ir.Value, error) {
	if rec, ok := value.(*ir.Record); ok {
		return ir.Scalar(encodePositions(fixedDataPositions, fixedDataLength, rec)), nil
	}
	return value, nil
}
