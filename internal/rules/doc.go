// Package rules turns declarative field specs into engine rules.
//
// Each ir.FieldSpec yields two rules: a forward rule matching raw keys
// (the tag followed by two indicator characters, or the bare tag for a
// control field) and a reverse rule matching the canonical name.
//
// Forward output for a data field is a mapping with one entry per
// mapped indicator and declared subfield, plus an ir.OrderKey entry
// listing the canonical subfield names in occurrence order. The reverse
// rule maps that order back to codes, so converting back restores the
// original subfield sequence.
package rules
