// Package marc21 provides built-in rules for a core set of MARC 21
// bibliographic fields.
//
// The leader and 008 are split into named positions. 020 is written by
// hand; every other field is a declarative ir.FieldSpec installed
// through package rules. Raw keys follow the MARCXML convention of the
// tag followed by both indicators, blanks written as "_".
package marc21
