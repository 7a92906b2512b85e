package ir

// FieldSpec represents a compiled declarative field rule.
//
// One FieldSpec yields a forward rule (raw tag → canonical name) and a
// reverse rule (canonical name → raw tag) on the engine.
type FieldSpec struct {
	Name       string          `json:"name"`                 // Canonical name, e.g. "title_statement"
	Tag        string          `json:"tag"`                  // Raw tag, e.g. "245"
	Pattern    string          `json:"pattern,omitempty"`    // Forward key pattern; derived from Tag when empty
	Control    bool            `json:"control,omitempty"`    // Control field: scalar body, no indicators
	Repeatable bool            `json:"repeatable,omitempty"` // Field repeats: canonical value is a list
	Subfields  []SubfieldSpec  `json:"subfields,omitempty"`  // Declaration order
	Indicators []IndicatorSpec `json:"indicators,omitempty"` // At most two: ind1, ind2
}

// SubfieldSpec maps one subfield code to a canonical name.
type SubfieldSpec struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Repeatable bool   `json:"repeatable,omitempty"`
}

// IndicatorSpec maps one indicator position to a canonical name.
// With no Values, the raw indicator code is carried through unchanged.
type IndicatorSpec struct {
	Position int              `json:"position"` // 1 or 2
	Name     string           `json:"name"`
	Values   []IndicatorValue `json:"values,omitempty"`
}

// IndicatorValue maps one indicator code to its canonical label.
type IndicatorValue struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Direction names a conversion direction.
type Direction string

const (
	// Forward converts raw records to canonical records (do).
	Forward Direction = "do"
	// Reverse converts canonical records back to raw records (undo).
	Reverse Direction = "undo"
)

// ValidDirections defines allowed directions.
var ValidDirections = map[Direction]bool{
	Forward: true,
	Reverse: true,
}

// Opposite returns the direction that undoes d.
func (d Direction) Opposite() Direction {
	if d == Reverse {
		return Forward
	}
	return Reverse
}
