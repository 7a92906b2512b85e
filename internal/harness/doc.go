// Package harness runs conversion scenarios against the engine.
//
// A scenario names a rule set, a list of records to convert with their
// expected results, and assertions over the outputs and the conversion
// log. Scenarios double as executable documentation for local rule sets.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules:
//	  - rules/local.cue
//	builtin: true
//	run_token: test-run-0001
//	cases:
//	  - name: title
//	    direction: do
//	    input:
//	      "001": "12883376"
//	      24510: { a: "Where the wild things are /" }
//	    expect_missing: []
//	    round_trip: true
//	  - name: strict
//	    strict: true
//	    input: { 999__: { a: x } }
//	    expect_error: MISSING_RULE
//	assertions:
//	  - type: output_contains
//	    case: title
//	    key: control_number
//	    value: "12883376"
//	  - type: logged_count
//	    count: 1
//
// Input mappings keep their order, so a record's occurrence order is
// the order written. A repeated field is written in grouped form, as a
// list plus __order__, the same way it appears in JSON.
//
// # Assertion Types
//
//   - output_contains: a case output holds a key, optionally with a value
//   - output_order: keys occur in a case output in the given order
//   - key_count: a key holds exactly N values in a case output
//   - logged_count: the run logged exactly N conversions
//
// # Deterministic Testing
//
// All scenarios execute with a fixed run token and a fresh log:
//   - Fixed run tokens (scenario.run_token, or "test-run-default")
//   - In-memory SQLite database (isolated per run), so seq starts at 1
//
// This keeps traces identical across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/sendak.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
