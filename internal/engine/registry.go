package engine

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/shape"
)

// Rule binds a key pattern to a handler.
type Rule[H shape.Handler] struct {
	// Name is the output key the handler's result is stored under.
	Name string

	// Pattern is the pattern as registered, before anchoring.
	Pattern string

	Handler H

	re *regexp.Regexp
}

// Matches reports whether key matches the whole pattern.
func (r Rule[H]) Matches(key string) bool {
	return r.re.MatchString(key)
}

// Registry collects rules for one direction.
//
// Rules are kept in registration order. Registering a pattern that is
// already present replaces its rule in place, so the pattern keeps its
// original position. Once Build has been called the registry is sealed
// and Register returns ErrSealed.
type Registry[H shape.Handler] struct {
	mu        sync.Mutex
	rules     []Rule[H]
	byPattern map[string]int
	sealed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry[H shape.Handler]() *Registry[H] {
	return &Registry[H]{byPattern: make(map[string]int)}
}

// Register adds a rule. The pattern must match a key in full; it is
// anchored at both ends before compiling.
func (r *Registry[H]) Register(name, pattern string, h H) error {
	if fn := (func(*shape.Context, string, ir.Value) (shape.Result, error))(h); fn == nil {
		return fmt.Errorf("register %q: nil handler", pattern)
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register %q: %w", pattern, ErrSealed)
	}

	rule := Rule[H]{Name: name, Pattern: pattern, Handler: h, re: re}
	if i, ok := r.byPattern[pattern]; ok {
		r.rules[i] = rule
		return nil
	}
	r.byPattern[pattern] = len(r.rules)
	r.rules = append(r.rules, rule)
	return nil
}

// Len returns the number of registered patterns.
func (r *Registry[H]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rules)
}

// Rules returns a copy of the rules in registration order.
func (r *Registry[H]) Rules() []Rule[H] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Rule[H], len(r.rules))
	copy(out, r.rules)
	return out
}

// Sealed reports whether Build has been called.
func (r *Registry[H]) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Build seals the registry and returns an index over its rules.
// Calling Build again returns an equivalent index.
func (r *Registry[H]) Build() *Index[H] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true

	ix := &Index[H]{
		rules:   make([]Rule[H], len(r.rules)),
		literal: make(map[string]int),
	}
	copy(ix.rules, r.rules)
	for i, rule := range ix.rules {
		if lit, ok := literalPattern(rule.re); ok {
			if _, seen := ix.literal[lit]; !seen {
				ix.literal[lit] = i
			}
		}
	}
	return ix
}

// Index resolves keys to rules. It is immutable and safe for concurrent
// lookups.
//
// When several patterns match a key the rule registered first wins.
type Index[H shape.Handler] struct {
	rules []Rule[H]

	// literal maps keys of plain-text patterns to their rule position.
	literal map[string]int
}

// Lookup returns the first rule, in registration order, whose pattern
// matches key in full.
func (ix *Index[H]) Lookup(key string) (Rule[H], bool) {
	limit := len(ix.rules)
	if i, ok := ix.literal[key]; ok {
		limit = i
	}
	for i := 0; i < limit; i++ {
		if ix.rules[i].re.MatchString(key) {
			return ix.rules[i], true
		}
	}
	if limit < len(ix.rules) {
		return ix.rules[limit], true
	}
	return Rule[H]{}, false
}

// Len returns the number of indexed rules.
func (ix *Index[H]) Len() int {
	return len(ix.rules)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

// literalPattern reports whether re matches exactly one string, and
// returns it.
func literalPattern(re *regexp.Regexp) (string, bool) {
	// Strip the anchors added by compilePattern.
	src := re.String()
	inner := src[len(`^(?:`) : len(src)-len(`)$`)]
	if regexp.QuoteMeta(inner) != inner {
		return "", false
	}
	return inner, true
}
