package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			status := "ok"
			if event.Error != "" {
				status = "error: " + event.Error
			}
			fmt.Fprintf(&buf, "  [%d] %s %s (%s)\n", i+1, event.Direction, event.Case, status)
		}
	}

	return buf.String()
}

// caseOutput returns the output of the named case, or an AssertionError
// when the case failed or never ran.
func caseOutput(trace []TraceEvent, assertion Assertion) (*ir.Record, error) {
	for _, event := range trace {
		if event.Case != assertion.Case {
			continue
		}
		if event.Output == nil {
			return nil, &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("output of case %s", assertion.Case),
				Actual:   "case produced no output: " + event.Error,
				Trace:    trace,
			}
		}
		return event.Output, nil
	}
	return nil, &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("case %s in trace", assertion.Case),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertOutputContains checks that the case output holds the key and,
// when a value is given, that the value under the key, or one element
// of a list value, equals it.
func assertOutputContains(trace []TraceEvent, assertion Assertion) error {
	out, err := caseOutput(trace, assertion)
	if err != nil {
		return err
	}

	values := out.All(assertion.Key)
	if len(values) == 0 {
		return &AssertionError{
			Type:     AssertOutputContains,
			Expected: fmt.Sprintf("key %s in output of %s", assertion.Key, assertion.Case),
			Actual:   fmt.Sprintf("keys present: %v", out.Keys()),
			Trace:    trace,
		}
	}
	if assertion.Value.Kind == 0 {
		return nil
	}

	want, err := nodeValue(&assertion.Value)
	if err != nil {
		return fmt.Errorf("output_contains value: %w", err)
	}
	for _, v := range values {
		if ir.Equal(v, want) {
			return nil
		}
		if list, ok := v.(ir.List); ok && slices.ContainsFunc(list, func(elem ir.Value) bool {
			return ir.Equal(elem, want)
		}) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("%s = %s", assertion.Key, render(want)),
		Actual:   fmt.Sprintf("%s = %s", assertion.Key, render(ir.Collapse(values))),
		Trace:    trace,
	}
}

// assertOutputOrder checks that keys occur in the specified order.
// Keys don't need to be adjacent (intervening keys are allowed).
func assertOutputOrder(trace []TraceEvent, assertion Assertion) error {
	out, err := caseOutput(trace, assertion)
	if err != nil {
		return err
	}

	// First position of each expected key, 1-indexed for readability
	positions := make(map[string]int)
	for i, key := range out.OccurrenceKeys() {
		if positions[key] == 0 {
			positions[key] = i + 1
		}
	}

	for _, key := range assertion.Keys {
		if positions[key] == 0 {
			return &AssertionError{
				Type:     AssertOutputOrder,
				Expected: fmt.Sprintf("all keys present: %v", assertion.Keys),
				Actual:   fmt.Sprintf("missing key: %s", key),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Keys); i++ {
		prev := assertion.Keys[i-1]
		curr := assertion.Keys[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertOutputOrder,
				Expected: fmt.Sprintf("keys in order: %v", assertion.Keys),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertKeyCount checks that the key holds exactly Count values. A list
// value counts its elements, so a repeatable field counts one per
// occurrence.
func assertKeyCount(trace []TraceEvent, assertion Assertion) error {
	out, err := caseOutput(trace, assertion)
	if err != nil {
		return err
	}

	count := 0
	for _, v := range out.All(assertion.Key) {
		count += len(ir.ForceList(v))
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertKeyCount,
			Expected: fmt.Sprintf("%d values under %s", assertion.Count, assertion.Key),
			Actual:   fmt.Sprintf("%d values", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertLoggedCount checks the number of conversions the run logged.
func assertLoggedCount(ctx context.Context, st *store.Store, runToken string, assertion Assertion) error {
	convs, err := st.ReadRun(ctx, runToken)
	if err != nil {
		return fmt.Errorf("read run: %w", err)
	}
	if len(convs) != assertion.Count {
		return &AssertionError{
			Type:     AssertLoggedCount,
			Expected: fmt.Sprintf("%d conversions logged under %s", assertion.Count, runToken),
			Actual:   fmt.Sprintf("%d conversions", len(convs)),
		}
	}
	return nil
}

func render(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	RunToken string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides log access for logged_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutputContains:
			err = assertOutputContains(result.Trace, assertion)
		case AssertOutputOrder:
			err = assertOutputOrder(result.Trace, assertion)
		case AssertKeyCount:
			err = assertKeyCount(result.Trace, assertion)
		case AssertLoggedCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: logged_count requires database context", i)
			} else {
				err = assertLoggedCount(actx.Ctx, actx.Store, actx.RunToken, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
