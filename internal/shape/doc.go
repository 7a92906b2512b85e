// Package shape adapts single-occurrence rule handlers to the full
// repetition and emptiness space of a record.
//
// A rule author writes a Func for ONE occurrence. The combinators in this
// package lift it into the pipeline's explicit Result type and stretch it
// over repeated occurrences, empty values, and skipped occurrences:
//
//	ForEach(DropEmpty(Skippable(AsForward(title))))
//
// COMPOSITION ORDER:
//
// Combinators are ordinary higher-order functions; the outermost one runs
// first. The supported stack, outermost first, is:
//
//	ForEach / ReverseForEach   fan out over occurrences
//	DropEmpty                  prune empty entries from the mapping
//	IgnoreEmpty / Skippable    turn empty results or ErrSkip into ModeSkip
//	ForceList                  normalize the input into list form
//	AsForward / AsReverse      lift the authored Func
//
// ForEach and DropEmpty commute: DropEmpty prunes both a single mapping
// and every mapping of a ModeEach list, so either stacking order yields
// the same result.
//
// Forward and Reverse share one signature but are distinct types, so a
// reverse handler cannot be registered as a forward rule by accident.
package shape
