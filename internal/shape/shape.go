package shape

import (
	"errors"

	"github.com/roach88/marcshift/internal/ir"
)

// ErrSkip signals "omit this occurrence from the output".
//
// Returning ErrSkip from a Func is the authoring shorthand; inside the
// pipeline it becomes a Result with ModeSkip. The engine always recovers
// from it.
var ErrSkip = errors.New("skip occurrence")

// Context is passed to every handler invocation.
type Context struct {
	// Output is the record built so far by the running conversion.
	// Handlers may read it and must not modify it.
	Output *ir.Record

	// Direction is the conversion direction being run.
	Direction ir.Direction
}

// Mode tells the engine how to fold a Result into the output.
type Mode int

const (
	// ModeSingle binds Value under the rule's name.
	ModeSingle Mode = iota

	// ModeEach carries a List with one element per occurrence.
	// Forward conversion appends the elements to the list bound to the
	// rule's name; reverse conversion emits one raw occurrence each.
	ModeEach

	// ModeSkip omits the occurrence.
	ModeSkip
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeEach:
		return "each"
	case ModeSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Result is the explicit outcome of one handler invocation.
type Result struct {
	Value ir.Value
	Mode  Mode
}

// Single returns a ModeSingle result.
func Single(v ir.Value) Result {
	return Result{Value: v, Mode: ModeSingle}
}

// Each returns a ModeEach result holding vals.
func Each(vals ...ir.Value) Result {
	list := make(ir.List, len(vals))
	copy(list, vals)
	return Result{Value: list, Mode: ModeEach}
}

// Skipped returns a ModeSkip result.
func Skipped() Result {
	return Result{Mode: ModeSkip}
}

// Func is the authoring form of a handler: it converts one occurrence.
// Returning ErrSkip omits the occurrence.
type Func func(ctx *Context, key string, value ir.Value) (ir.Value, error)

// Forward converts one raw occurrence into its canonical value.
type Forward func(ctx *Context, key string, value ir.Value) (Result, error)

// Reverse converts one canonical value into raw occurrence(s).
type Reverse func(ctx *Context, key string, value ir.Value) (Result, error)

// Handler is satisfied by Forward and Reverse.
type Handler interface {
	~func(ctx *Context, key string, value ir.Value) (Result, error)
}

// AsForward lifts fn into a Forward handler producing ModeSingle results.
func AsForward(fn Func) Forward {
	return Forward(lift(fn))
}

// AsReverse lifts fn into a Reverse handler producing ModeSingle results.
func AsReverse(fn Func) Reverse {
	return Reverse(lift(fn))
}

func lift(fn Func) func(*Context, string, ir.Value) (Result, error) {
	return func(ctx *Context, key string, value ir.Value) (Result, error) {
		v, err := fn(ctx, key, value)
		if err != nil {
			return Result{}, err
		}
		return Single(v), nil
	}
}

// IsSkip reports whether err carries ErrSkip.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkip)
}
