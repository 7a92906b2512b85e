// Package engine implements rule dispatch for record conversion.
//
// An Engine owns two registries of (pattern, name, handler) rules, one
// for each direction. Do converts a raw record into canonical form; Undo
// converts it back.
//
// DISPATCH:
//
// Patterns are regular expressions that must match a key in full. When
// several patterns match the same key, the rule registered first wins.
// Registering an identical pattern again replaces the handler but keeps
// the original position.
//
// LIFECYCLE:
//
// Registration happens during package init, through Over and Under or
// Register and RegisterReverse. The first conversion builds both indexes
// exactly once; from then on the engine is sealed, and registering
// returns ErrSealed. Conversions on a built engine may run concurrently.
//
// ERRORS:
//
// A key without a rule is skipped unless WithIgnoreMissing(false) is
// given. shape.ErrSkip from a handler always skips the occurrence. Any
// other handler error aborts the conversion as a RuntimeError unless an
// ErrorHandler installed for its kind recovers it.
package engine
