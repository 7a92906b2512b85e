package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/roach88/marcshift/internal/compiler"
	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/marcxml"
	"github.com/roach88/marcshift/internal/rules/marc21"
	"github.com/roach88/marcshift/internal/store"
	"github.com/roach88/marcshift/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh log under a fixed run token, so seq
// values restart at 1 for every scenario.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	recorder *store.Recorder
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the scenario's CUE rules and assemble them with the built-ins
// 3. Convert every case, logging each successful conversion
// 4. Check case expectations and assertions
// 5. Return result with pass/fail, trace, and errors
//
// A returned error means the scenario could not run at all; failed
// expectations are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	specs, _, err := compiler.LoadRules(scenario.Rules...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	rulesHash, err := ir.RuleSetHash(specs, scenario.UseBuiltin())
	if err != nil {
		return nil, fmt.Errorf("failed to hash rules: %w", err)
	}

	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := marc21.Assemble(specs, scenario.UseBuiltin(), engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble rules: %w", err)
	}

	h := &Harness{
		store:  st,
		engine: eng,
		recorder: store.NewRecorder(st, testutil.NewFixedRunToken(scenario.RunToken), rulesHash),
		logger: logger,
	}

	ctx := context.Background()
	result := NewResult()
	for i := range scenario.Cases {
		if err := h.runCase(ctx, &scenario.Cases[i], result); err != nil {
			return nil, fmt.Errorf("case %q: %w", scenario.Cases[i].Name, err)
		}
	}

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		RunToken: h.recorder.RunToken(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// runCase converts one case and checks its expectations. Only problems
// with the scenario itself are returned as errors.
func (h *Harness) runCase(ctx context.Context, c *Case, result *Result) error {
	in, err := caseInput(c)
	if err != nil {
		return err
	}

	dir := c.Dir()
	ev := TraceEvent{Case: c.Name, Direction: dir, Input: in}

	out, missing, convErr := h.engine.Convert(dir, in, caseOptions(c)...)
	if convErr != nil {
		ev.Error = convErr.Error()
		result.AddTrace(ev)
		h.logger.Info("case failed", "case", c.Name, "error", convErr)

		if c.ExpectError == "" {
			result.AddError(fmt.Sprintf("case %s: unexpected error: %v", c.Name, convErr))
		} else if !errorMatches(convErr, c.ExpectError) {
			result.AddError(fmt.Sprintf("case %s: expected error %q, got: %v", c.Name, c.ExpectError, convErr))
		}
		return nil
	}

	conv, err := h.recorder.Record(ctx, dir, in, out, missing)
	if err != nil {
		return fmt.Errorf("failed to log conversion: %w", err)
	}
	ev.Seq, ev.ID, ev.Output, ev.Missing = conv.Seq, conv.ID, out, missing
	result.AddTrace(ev)

	h.logger.Info("case converted",
		"case", c.Name,
		"direction", dir,
		"conversion_id", conv.ID,
		"missing", len(missing),
	)

	if c.ExpectError != "" {
		result.AddError(fmt.Sprintf("case %s: expected error %q, conversion succeeded", c.Name, c.ExpectError))
		return nil
	}

	if c.Expect.Kind != 0 {
		want, err := nodeRecord(&c.Expect)
		if err != nil {
			return fmt.Errorf("expect: %w", err)
		}
		if d := DiffRecords(want, out); d != "" {
			result.AddError(fmt.Sprintf("case %s: output mismatch: %s", c.Name, d))
		}
	}

	if c.ExpectMissing != nil && !slices.Equal(c.ExpectMissing, missing) {
		result.AddError(fmt.Sprintf("case %s: expected missing keys %v, got %v", c.Name, c.ExpectMissing, missing))
	}

	if c.RoundTrip {
		if msg := h.roundTrip(c, in, out); msg != "" {
			result.AddError(fmt.Sprintf("case %s: round trip: %s", c.Name, msg))
		}
	}
	return nil
}

// roundTrip converts out back and compares it to in. Undo output is
// always flat, so a do case compares against the expanded input; an
// undo case re-applies do with the case's own ordering.
func (h *Harness) roundTrip(c *Case, in, out *ir.Record) string {
	back, _, err := h.engine.Convert(c.Dir().Opposite(), out, caseOptions(c)...)
	if err != nil {
		return err.Error()
	}
	want := in
	if c.Dir() == ir.Forward {
		want = ir.ExpandAll(in)
	}
	return DiffRecords(want, back)
}

func caseInput(c *Case) (*ir.Record, error) {
	if c.InputMARCXML == "" {
		rec, err := nodeRecord(&c.Input)
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		return rec, nil
	}

	f, err := os.Open(c.InputMARCXML)
	if err != nil {
		return nil, fmt.Errorf("input_marcxml: %w", err)
	}
	defer f.Close()

	rec, err := marcxml.NewDecoder(f).Next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("input_marcxml: %s holds no record", c.InputMARCXML)
	}
	if err != nil {
		return nil, fmt.Errorf("input_marcxml: %w", err)
	}
	return rec, nil
}

func caseOptions(c *Case) []engine.Option {
	return []engine.Option{
		engine.WithIgnoreMissing(!c.Strict),
		engine.WithOrder(c.KeepOrder),
	}
}

// errorMatches reports whether err carries the runtime error code want,
// or mentions it.
func errorMatches(err error, want string) bool {
	var re *engine.RuntimeError
	if errors.As(err, &re) && string(re.Code) == want {
		return true
	}
	return strings.Contains(err.Error(), want)
}

// DiffRecords compares two records in canonical form and returns a
// rendered diff, or "" when they match.
func DiffRecords(want, got *ir.Record) string {
	w, err := ir.MarshalCanonical(want)
	if err != nil {
		return err.Error()
	}
	g, err := ir.MarshalCanonical(got)
	if err != nil {
		return err.Error()
	}
	return Diff(string(w), string(g))
}
