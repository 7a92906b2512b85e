package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/marcshift/internal/ir"
)

// Scenario defines a conversion test scenario: a rule set, a list of
// records to convert with their expected results, and assertions over
// everything the run produced.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules lists CUE rule files or directories, registered in order
	// ahead of the built-in rules. Paths are relative to the scenario
	// file location.
	Rules []string `yaml:"rules,omitempty"`

	// Builtin controls whether the built-in MARC 21 rules are
	// registered. Defaults to true.
	Builtin *bool `yaml:"builtin,omitempty"`

	// Cases are converted in order, each logged as one conversion.
	Cases []Case `yaml:"cases"`

	// Assertions validate the outputs and the conversion log.
	// Supported types: output_contains, output_order, key_count, logged_count
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunToken is an optional fixed run token.
	// If empty, defaults to "test-run-default" for deterministic golden file comparison.
	RunToken string `yaml:"run_token,omitempty"`
}

// UseBuiltin reports whether the built-in rules take part.
func (s *Scenario) UseBuiltin() bool {
	return s.Builtin == nil || *s.Builtin
}

// Case is one conversion.
type Case struct {
	// Name identifies the case in assertions and the trace.
	Name string `yaml:"name"`

	// Direction is "do" (the default) or "undo".
	Direction ir.Direction `yaml:"direction,omitempty"`

	// Strict makes a key with no matching rule fail the case.
	Strict bool `yaml:"strict,omitempty"`

	// KeepOrder makes do emit __order__ for the output's top level.
	KeepOrder bool `yaml:"keep_order,omitempty"`

	// Input is the record to convert, written as a YAML mapping.
	// Mapping order is record order.
	Input yaml.Node `yaml:"input,omitempty"`

	// InputMARCXML names a MARCXML file whose first record is the
	// input. Relative to the scenario file. Only valid for do.
	InputMARCXML string `yaml:"input_marcxml,omitempty"`

	// Expect is the exact expected output, compared in canonical form.
	Expect yaml.Node `yaml:"expect,omitempty"`

	// ExpectMissing lists the keys expected to be skipped for lack of
	// a rule, in input order.
	ExpectMissing []string `yaml:"expect_missing,omitempty"`

	// ExpectError is a runtime error code (e.g. "MISSING_RULE") or a
	// substring of the expected error message.
	ExpectError string `yaml:"expect_error,omitempty"`

	// RoundTrip converts the output back in the opposite direction and
	// requires the input to come back.
	RoundTrip bool `yaml:"round_trip,omitempty"`
}

// Dir returns the case direction with the default applied.
func (c *Case) Dir() ir.Direction {
	if c.Direction == "" {
		return ir.Forward
	}
	return c.Direction
}

// Assertion validates outputs or the conversion log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output_contains": Case output holds Key, optionally with Value
	// - "output_order": Keys occur in Case output in this order
	// - "key_count": Key occurs exactly Count times in Case output
	// - "logged_count": the run logged exactly Count conversions
	Type string `yaml:"type"`

	// Case names the case whose output is checked.
	Case string `yaml:"case,omitempty"`

	// Key is the output key (used by output_contains, key_count).
	Key string `yaml:"key,omitempty"`

	// Value is the expected value under Key (used by output_contains).
	// One occurrence must equal it.
	Value yaml.Node `yaml:"value,omitempty"`

	// Keys is the expected key order (used by output_order).
	Keys []string `yaml:"keys,omitempty"`

	// Count is the expected number of occurrences (used by key_count, logged_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputContains = "output_contains"
	AssertOutputOrder    = "output_order"
	AssertKeyCount       = "key_count"
	AssertLoggedCount    = "logged_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving rule
// and MARCXML paths relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields so typos like "assertion:" fail loudly
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Rules {
		scenario.Rules[i] = resolve(basePath, p)
	}
	for i := range scenario.Cases {
		if p := scenario.Cases[i].InputMARCXML; p != "" {
			scenario.Cases[i].InputMARCXML = resolve(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}
	if len(s.Rules) == 0 && !s.UseBuiltin() {
		return fmt.Errorf("rules are required when builtin is false")
	}

	for _, p := range s.Rules {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("rules not found: %s", p)
		}
	}

	names := make(map[string]bool, len(s.Cases))
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if names[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		names[c.Name] = true

		if !ir.ValidDirections[c.Dir()] {
			return fmt.Errorf("cases[%d]: direction must be do or undo, got %q", i, c.Direction)
		}
		hasInput := c.Input.Kind != 0
		switch {
		case hasInput && c.InputMARCXML != "":
			return fmt.Errorf("cases[%d]: input and input_marcxml are mutually exclusive", i)
		case !hasInput && c.InputMARCXML == "":
			return fmt.Errorf("cases[%d]: input or input_marcxml is required", i)
		case c.InputMARCXML != "" && c.Dir() != ir.Forward:
			return fmt.Errorf("cases[%d]: input_marcxml requires direction do", i)
		}
		if c.ExpectError != "" && (c.Expect.Kind != 0 || c.RoundTrip) {
			return fmt.Errorf("cases[%d]: expect_error excludes expect and round_trip", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], names); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, cases map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Type != AssertLoggedCount && !cases[a.Case] {
		return fmt.Errorf("assertions[%d]: unknown case %q", index, a.Case)
	}

	switch a.Type {
	case AssertOutputContains:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for output_contains", index)
		}
	case AssertOutputOrder:
		if len(a.Keys) == 0 {
			return fmt.Errorf("assertions[%d]: keys list is required for output_order", index)
		}
	case AssertKeyCount:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for key_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for key_count", index)
		}
	case AssertLoggedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for logged_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
