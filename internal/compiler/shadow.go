package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/rules"
)

// ShadowWarning reports a rule that an earlier rule hides.
//
// Shadowing is a warning, not an error, because it may be intentional:
// a local rule set registered ahead of the built-in rules overrides
// them on purpose.
type ShadowWarning struct {
	Field    string `json:"field"`     // Hidden rule
	Key      string `json:"key"`       // Sample key the hidden rule should own
	ShadowBy string `json:"shadow_by"` // Earlier rule matching the key first
	Message  string `json:"message"`
	Level    string `json:"level"` // "warning"
}

// AnalyzeShadowing performs static precedence analysis on a rule set.
//
// Dispatch picks the first rule whose pattern matches a key, so a later
// rule is unreachable for any key an earlier pattern also matches. For
// every spec a sample key is derived (the literal pattern, or the tag
// with blank indicators) and checked against all earlier patterns.
//
// Specs whose patterns do not compile are skipped; Validate reports them.
func AnalyzeShadowing(specs []ir.FieldSpec) []ShadowWarning {
	type compiled struct {
		name string
		re   *regexp.Regexp
	}
	var earlier []compiled
	warnings := []ShadowWarning{}

	for _, spec := range specs {
		pattern := rules.ForwardPattern(spec)
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			continue
		}

		key := sampleKey(spec, pattern)
		for _, prev := range earlier {
			if prev.name == spec.Name || !prev.re.MatchString(key) {
				continue
			}
			warnings = append(warnings, ShadowWarning{
				Field:    spec.Name,
				Key:      key,
				ShadowBy: prev.name,
				Message:  fmt.Sprintf("key %q is claimed by %q before %q can match it", key, prev.name, spec.Name),
				Level:    "warning",
			})
			break
		}
		earlier = append(earlier, compiled{name: spec.Name, re: re})
	}
	return warnings
}

func sampleKey(spec ir.FieldSpec, pattern string) string {
	if regexp.QuoteMeta(pattern) == pattern {
		return pattern
	}
	if spec.Control {
		return spec.Tag
	}
	return spec.Tag + ir.BlankModifier + ir.BlankModifier
}
