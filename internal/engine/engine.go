package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/shape"
)

// Engine converts records with two rule indexes, one per direction.
//
// Lifecycle: rules are registered while the engine is REGISTERING. The
// first Do, Undo, or Build call builds both indexes exactly once and
// seals the engine. A built engine is immutable and safe for concurrent
// conversions.
type Engine struct {
	forward *Registry[shape.Forward]
	reverse *Registry[shape.Reverse]

	once    sync.Once
	fwd     *Index[shape.Forward]
	rev     *Index[shape.Reverse]
	logger  *slog.Logger
	modKeys []string
}

// EngineOption configures optional Engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger used for conversion diagnostics.
// The default is slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithModifierKeys sets the reserved result keys spliced into raw keys
// by Undo, in order. The default is ir.Ind1Key, ir.Ind2Key.
func WithModifierKeys(keys ...string) EngineOption {
	return func(e *Engine) {
		e.modKeys = keys
	}
}

// New creates an engine with empty registries.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		forward: NewRegistry[shape.Forward](),
		reverse: NewRegistry[shape.Reverse](),
		logger:  slog.Default(),
		modKeys: []string{ir.Ind1Key, ir.Ind2Key},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a forward rule storing results under name for keys
// matching pattern.
func (e *Engine) Register(name, pattern string, h shape.Forward) error {
	return e.forward.Register(name, pattern, h)
}

// RegisterReverse adds a reverse rule producing raw keys named name for
// output keys matching pattern.
func (e *Engine) RegisterReverse(name, pattern string, h shape.Reverse) error {
	return e.reverse.Register(name, pattern, h)
}

// Over returns a decorator registering a forward handler under name for
// every pattern. It is meant for package init, so registration errors
// panic.
//
//	var _ = e.Over("title_statement", "^245..")(shape.AsForward(title))
func (e *Engine) Over(name string, patterns ...string) func(shape.Forward) shape.Forward {
	return func(h shape.Forward) shape.Forward {
		for _, p := range patterns {
			if err := e.Register(name, p, h); err != nil {
				panic(fmt.Sprintf("engine: over %s: %v", name, err))
			}
		}
		return h
	}
}

// Under is the reverse counterpart of Over.
func (e *Engine) Under(name string, patterns ...string) func(shape.Reverse) shape.Reverse {
	return func(h shape.Reverse) shape.Reverse {
		for _, p := range patterns {
			if err := e.RegisterReverse(name, p, h); err != nil {
				panic(fmt.Sprintf("engine: under %s: %v", name, err))
			}
		}
		return h
	}
}

// Build compiles both rule indexes and seals the engine.
// Only the first call does any work.
func (e *Engine) Build() {
	e.once.Do(func() {
		e.fwd = e.forward.Build()
		e.rev = e.reverse.Build()
		e.logger.Debug("rule indexes built",
			"forward_rules", e.fwd.Len(),
			"reverse_rules", e.rev.Len(),
		)
	})
}

// Built reports whether the indexes have been built.
func (e *Engine) Built() bool {
	return e.forward.Sealed()
}

// Match returns the name of the rule that would handle key.
func (e *Engine) Match(dir ir.Direction, key string) (string, bool) {
	e.Build()
	if dir == ir.Reverse {
		r, ok := e.rev.Lookup(key)
		return r.Name, ok
	}
	r, ok := e.fwd.Lookup(key)
	return r.Name, ok
}

// RuleInfo describes one registered rule.
type RuleInfo struct {
	Direction ir.Direction `json:"direction"`
	Name      string       `json:"name"`
	Pattern   string       `json:"pattern"`
}

// Rules lists registered rules, forward first, in registration order.
func (e *Engine) Rules() []RuleInfo {
	var out []RuleInfo
	for _, r := range e.forward.Rules() {
		out = append(out, RuleInfo{Direction: ir.Forward, Name: r.Name, Pattern: r.Pattern})
	}
	for _, r := range e.reverse.Rules() {
		out = append(out, RuleInfo{Direction: ir.Reverse, Name: r.Name, Pattern: r.Pattern})
	}
	return out
}

// Do converts a raw record into its canonical form.
//
// Each top-level occurrence is dispatched to the first matching forward
// rule. A ModeSingle result is stored under the rule's name, replacing
// any earlier value; a ModeEach result is appended to the list under
// that name. The input is never modified.
func (e *Engine) Do(rec *ir.Record, opts ...Option) (*ir.Record, error) {
	e.Build()
	cfg := e.newRunConfig(opts)

	out := ir.NewRecord()
	ctx := &shape.Context{Output: out, Direction: ir.Forward}
	var order ir.List

	for _, entry := range ir.ExpandAll(rec).Entries() {
		rule, ok := e.fwd.Lookup(entry.Key)
		if !ok {
			if err := cfg.recover(NewMissingRuleError(ir.Forward, entry.Key), entry, out); err != nil {
				return nil, err
			}
			continue
		}

		res, err := rule.Handler(ctx, entry.Key, entry.Value)
		if err != nil {
			if err := cfg.recover(handlerError(ir.Forward, entry.Key, rule.Name, err), entry, out); err != nil {
				return nil, err
			}
			continue
		}

		switch res.Mode {
		case shape.ModeSkip:
			continue
		case shape.ModeEach:
			items := ir.ForceList(res.Value)
			if len(items) == 0 {
				continue
			}
			out.Append(rule.Name, items...)
			for range items {
				order = append(order, ir.Scalar(rule.Name))
			}
		default:
			if !out.Has(rule.Name) {
				order = append(order, ir.Scalar(rule.Name))
			}
			out.Set(rule.Name, res.Value)
		}
	}

	if !cfg.keepOrder || len(order) == 0 {
		return out, nil
	}
	withOrder := ir.NewRecord(ir.E(ir.OrderKey, order))
	for _, entry := range out.Entries() {
		withOrder.Add(entry.Key, entry.Value)
	}
	return withOrder, nil
}

// Undo converts a canonical record back into raw form.
//
// Each top-level occurrence is dispatched to the first matching reverse
// rule. A record result becomes one raw occurrence whose key is the
// rule's name followed by the result's modifiers; a list result becomes
// one occurrence per element; a scalar result is stored under the name
// as is.
func (e *Engine) Undo(rec *ir.Record, opts ...Option) (*ir.Record, error) {
	e.Build()
	cfg := e.newRunConfig(opts)

	out := ir.NewRecord()
	ctx := &shape.Context{Output: out, Direction: ir.Reverse}

	for _, entry := range ir.Expand(rec).Entries() {
		rule, ok := e.rev.Lookup(entry.Key)
		if !ok {
			if err := cfg.recover(NewMissingRuleError(ir.Reverse, entry.Key), entry, out); err != nil {
				return nil, err
			}
			continue
		}

		res, err := rule.Handler(ctx, entry.Key, ir.Clone(entry.Value))
		if err != nil {
			if err := cfg.recover(handlerError(ir.Reverse, entry.Key, rule.Name, err), entry, out); err != nil {
				return nil, err
			}
			continue
		}
		if res.Mode == shape.ModeSkip {
			continue
		}
		e.emitRaw(out, rule.Name, res.Value)
	}
	return out, nil
}

// Convert runs Do or Undo by direction and also returns the keys that
// were skipped because no rule matched, in input order. A missing-rule
// handler installed by the caller still runs after the key is collected,
// and its error aborts the conversion. When opts turn off
// WithIgnoreMissing the first such key aborts the conversion as usual
// and no keys are collected.
func (e *Engine) Convert(dir ir.Direction, rec *ir.Record, opts ...Option) (*ir.Record, []string, error) {
	var missing []string
	if cfg := e.newRunConfig(opts); cfg.ignoreMissing {
		collect := func(err error, f Failure) error {
			missing = append(missing, f.Key)
			for _, h := range cfg.handlers {
				if errors.Is(err, h.kind) {
					return h.fn(err, f)
				}
			}
			return nil
		}
		opts = append([]Option{WithErrorHandler(ErrMissingRule, collect)}, opts...)
	}

	var out *ir.Record
	var err error
	switch dir {
	case ir.Forward:
		out, err = e.Do(rec, opts...)
	case ir.Reverse:
		out, err = e.Undo(rec, opts...)
	default:
		return nil, nil, fmt.Errorf("unknown direction %q", dir)
	}
	if err != nil {
		return nil, nil, err
	}
	return out, missing, nil
}

func (e *Engine) emitRaw(out *ir.Record, name string, v ir.Value) {
	switch val := v.(type) {
	case nil:
	case ir.List:
		for _, item := range val {
			e.emitRaw(out, name, item)
		}
	case *ir.Record:
		field := val.Clone()
		var key strings.Builder
		key.WriteString(name)
		for _, mk := range e.modKeys {
			mod, _ := field.Pop(mk)
			key.WriteString(modifier(mod))
		}
		if field.Has(ir.OrderKey) {
			field = ir.Expand(field)
		}
		out.Add(key.String(), field)
	default:
		out.Add(name, val)
	}
}

// modifier renders one structural modifier for a raw key.
// Absent and blank modifiers are written as ir.BlankModifier.
func modifier(v ir.Value) string {
	s, _ := ir.AsString(v)
	if strings.TrimSpace(s) == "" {
		return ir.BlankModifier
	}
	return s
}

// handlerError keeps ErrSkip unwrapped so it is always recovered.
func handlerError(dir ir.Direction, key, rule string, err error) error {
	if shape.IsSkip(err) {
		return err
	}
	return NewHandlerError(dir, key, rule, err)
}

// Failure describes the occurrence being converted when an error was
// raised. It is passed to error handlers.
type Failure struct {
	Key    string
	Value  ir.Value
	Output *ir.Record
}

// ErrorHandler decides what happens after a conversion error.
// Returning nil skips the occurrence and continues; returning an error
// aborts the conversion with it.
type ErrorHandler func(err error, f Failure) error

// Option configures one Do or Undo call.
type Option func(*runConfig)

// WithIgnoreMissing controls whether keys with no matching rule are
// skipped (true, the default) or abort the conversion.
func WithIgnoreMissing(ignore bool) Option {
	return func(c *runConfig) {
		c.ignoreMissing = ignore
	}
}

// WithErrorHandler installs h for errors matching kind under errors.Is.
// Handlers are consulted in installation order, before the defaults.
func WithErrorHandler(kind error, h ErrorHandler) Option {
	return func(c *runConfig) {
		c.handlers = append(c.handlers, errorHandler{kind: kind, fn: h})
	}
}

// WithOrder makes Do emit an ir.OrderKey entry naming the output key of
// every produced occurrence, so Undo can restore their interleaving.
func WithOrder(keep bool) Option {
	return func(c *runConfig) {
		c.keepOrder = keep
	}
}

type errorHandler struct {
	kind error
	fn   ErrorHandler
}

type runConfig struct {
	ignoreMissing bool
	keepOrder     bool
	handlers      []errorHandler
	logger        *slog.Logger
}

func (e *Engine) newRunConfig(opts []Option) *runConfig {
	cfg := &runConfig{ignoreMissing: true, logger: e.logger}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// recover returns nil when err is handled and the occurrence skipped.
func (c *runConfig) recover(err error, entry ir.Entry, out *ir.Record) error {
	for _, h := range c.handlers {
		if errors.Is(err, h.kind) {
			return h.fn(err, Failure{Key: entry.Key, Value: entry.Value, Output: out})
		}
	}

	switch {
	case shape.IsSkip(err):
		return nil
	case IsMissingRule(err) && c.ignoreMissing:
		c.logger.Debug("no rule for key, skipping", "key", entry.Key)
		return nil
	}
	return err
}
