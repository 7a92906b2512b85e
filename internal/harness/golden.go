package harness

import (
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/marcshift/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// It is serialized with ir.MarshalCanonical for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	RunToken     string
	Trace        []TraceEvent
}

// NewSnapshot captures the trace of a scenario run.
func NewSnapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     scenario.RunToken,
		Trace:        result.Trace,
	}
}

// Marshal returns the canonical JSON form of the snapshot, the golden
// file content.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toRecord())
}

// toRecord converts a TraceSnapshot to a record for canonical JSON
// serialization. Inputs are left out: they are in the scenario file.
func (s *TraceSnapshot) toRecord() *ir.Record {
	trace := make(ir.List, len(s.Trace))
	for i, event := range s.Trace {
		ev := ir.NewRecord(
			ir.E("case", ir.Scalar(event.Case)),
			ir.E("direction", ir.Scalar(event.Direction)),
		)
		if event.Seq > 0 {
			ev.Add("seq", ir.Scalar(strconv.FormatInt(event.Seq, 10)))
		}
		if event.Output != nil {
			ev.Add("output", event.Output)
		}
		if len(event.Missing) > 0 {
			ev.Add("missing", ir.Strings(event.Missing...))
		}
		if event.Error != "" {
			ev.Add("error", ir.Scalar(event.Error))
		}
		trace[i] = ev
	}

	rec := ir.NewRecord(ir.E("scenario_name", ir.Scalar(s.ScenarioName)))
	if s.RunToken != "" {
		rec.Add("run_token", ir.Scalar(s.RunToken))
	}
	rec.Add("trace", trace)
	return rec
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := assertSnapshot(t, scenario.Name, NewSnapshot(scenario, result)); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return assertSnapshot(t, scenarioName, &snapshot)
}

func assertSnapshot(t *testing.T, name string, snapshot *TraceSnapshot) error {
	t.Helper()

	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
