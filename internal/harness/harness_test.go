package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcshift/internal/ir"
)

func loadInline(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := LoadScenario(writeScenario(t, t.TempDir(), content))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	s := loadInline(t, `
name: minimal
description: One control field
run_token: test-run-minimal
cases:
  - name: one
    input:
      "001": "12883376"
    expect:
      control_number: "12883376"
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, "one", ev.Case)
	assert.Equal(t, ir.Forward, ev.Direction)
	assert.Equal(t, int64(1), ev.Seq)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "12883376", ev.Output.Text("control_number"))
}

func TestRun_OutputMismatchFails(t *testing.T) {
	s := loadInline(t, `
name: mismatch
description: Expect disagrees with the output
cases:
  - name: one
    input:
      "001": "1"
    expect:
      control_number: "2"
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "case one: output mismatch")
	assert.Contains(t, result.Errors[0], "[-2-]{+1+}")
}

func TestRun_ExpectMissing(t *testing.T) {
	s := loadInline(t, `
name: missing
description: Unknown keys are reported
cases:
  - name: one
    input:
      "001": "1"
      999__: {a: x}
      998__: {a: y}
    expect_missing: ["999__", "998__"]
  - name: two
    input:
      999__: {a: x}
    expect_missing: []
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "case two: expected missing keys [], got [999__]")

	ev, ok := result.Event("one")
	require.True(t, ok)
	assert.Equal(t, []string{"999__", "998__"}, ev.Missing)
}

func TestRun_ExpectError(t *testing.T) {
	s := loadInline(t, `
name: errors
description: Strict cases fail on unknown keys
cases:
  - name: by_code
    strict: true
    input: {999__: {a: x}}
    expect_error: MISSING_RULE
  - name: by_message
    strict: true
    input: {999__: {a: x}}
    expect_error: no rule matches key
  - name: wrong_error
    strict: true
    input: {999__: {a: x}}
    expect_error: HANDLER_FAILED
  - name: no_error
    input: {"001": "1"}
    expect_error: MISSING_RULE
  - name: unexpected
    strict: true
    input: {999__: {a: x}}
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `case wrong_error: expected error "HANDLER_FAILED"`)
	assert.Contains(t, result.Errors[1], "case no_error: expected error \"MISSING_RULE\", conversion succeeded")
	assert.Contains(t, result.Errors[2], "case unexpected: unexpected error")

	ev, ok := result.Event("by_code")
	require.True(t, ok)
	assert.Contains(t, ev.Error, "MISSING_RULE")
	assert.Zero(t, ev.Seq, "failed conversions are not logged")
	assert.Nil(t, ev.Output)
}

func TestRun_RoundTrip(t *testing.T) {
	s := loadInline(t, `
name: round_trip
description: Title survives do then undo
cases:
  - name: title
    input:
      24510:
        a: "In the night kitchen /"
        c: by Maurice Sendak.
    round_trip: true
  - name: lossy
    input:
      24510: {a: "T", z: dropped}
    round_trip: true
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "case lossy: round trip")
	assert.Contains(t, result.Errors[0], "dropped")
}

func TestRun_UndoCase(t *testing.T) {
	s := loadInline(t, `
name: undo
description: Undo restores raw keys
cases:
  - name: back
    direction: undo
    input:
      control_number: "42"
    expect:
      "001": "42"
    round_trip: true
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ir.Reverse, result.Trace[0].Direction)
}

func TestRun_LocalRulesOnly(t *testing.T) {
	dir := t.TempDir()
	writeRulesFile(t, dir, "local.cue", `field: local_note: {tag: "590", subfields: a: "local_note"}`)
	s, err := LoadScenario(writeScenario(t, dir, `
name: local_only
description: Without the built-ins only local keys convert
rules: [local.cue]
builtin: false
cases:
  - name: one
    input:
      "001": "1"
      590__: {a: note}
    expect_missing: ["001"]
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.True(t, result.Trace[0].Output.Has("local_note"))
}

func TestRun_InvalidRulesAbort(t *testing.T) {
	dir := t.TempDir()
	writeRulesFile(t, dir, "bad.cue", `field: bad: {tag: "59", subfields: a: "x"}`)
	s, err := LoadScenario(writeScenario(t, dir, `
name: bad_rules
description: Rules that fail validation stop the run
rules: [bad.cue]
cases:
  - name: one
    input: {}
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load rules")
}

func TestRun_DeterministicIDs(t *testing.T) {
	content := `
name: deterministic
description: Same scenario, same IDs
run_token: test-run-fixed
cases:
  - name: one
    input: {"001": "1"}
  - name: two
    input: {"001": "2"}
`
	first, err := Run(loadInline(t, content))
	require.NoError(t, err)
	second, err := Run(loadInline(t, content))
	require.NoError(t, err)

	require.Len(t, first.Trace, 2)
	for i := range first.Trace {
		assert.Equal(t, first.Trace[i].ID, second.Trace[i].ID)
		assert.Equal(t, int64(i+1), first.Trace[i].Seq)
	}
	assert.NotEqual(t, first.Trace[0].ID, first.Trace[1].ID)
}
