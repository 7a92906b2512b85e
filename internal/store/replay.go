package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/marcshift/internal/ir"
)

// ConvertFunc re-runs one logged conversion from its direction and
// input. The logged output is passed along so callers can recover run
// options such as field order preservation. It returns the new output
// and the keys it skipped for lack of a rule.
type ConvertFunc func(conv ir.Conversion) (*ir.Record, []string, error)

// Mismatch describes one conversion whose replay differs from the log.
type Mismatch struct {
	ID        string       `json:"id"`
	Seq       int64        `json:"seq"`
	Direction ir.Direction `json:"direction"`
	Expected  string       `json:"expected"`        // Logged output, canonical JSON
	Actual    string       `json:"actual"`          // Replayed output, canonical JSON
	Missing   bool         `json:"missing_differs"` // Skipped keys differ
	Error     string       `json:"error,omitempty"`
}

// ReplayResult summarizes the replay of one run.
type ReplayResult struct {
	RunToken     string     `json:"run_token"`
	Checked      int        `json:"checked"`
	RulesChanged bool       `json:"rules_changed"` // Some row was logged under another rule set
	Mismatches   []Mismatch `json:"mismatches"`
}

// Deterministic reports whether every conversion replayed identically.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay re-runs every conversion of a run, in seq order, and compares
// the canonical form of each new output with the logged one.
//
// A ConvertFunc error is recorded as a mismatch; only store failures
// abort the replay.
func (s *Store) Replay(ctx context.Context, runToken, rulesHash string, convert ConvertFunc) (ReplayResult, error) {
	result := ReplayResult{RunToken: runToken, Mismatches: []Mismatch{}}

	conversions, err := s.ReadRun(ctx, runToken)
	if err != nil {
		return result, fmt.Errorf("replay %s: %w", runToken, err)
	}

	for _, conv := range conversions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		if conv.RulesHash != rulesHash {
			result.RulesChanged = true
		}

		expected, err := marshalRecord(conv.Output)
		if err != nil {
			return result, fmt.Errorf("replay %s: %w", conv.ID, err)
		}
		m := Mismatch{ID: conv.ID, Seq: conv.Seq, Direction: conv.Direction, Expected: expected}

		out, missing, err := convert(conv)
		if err != nil {
			m.Error = err.Error()
			result.Mismatches = append(result.Mismatches, m)
			continue
		}
		if m.Actual, err = marshalRecord(out); err != nil {
			return result, fmt.Errorf("replay %s: %w", conv.ID, err)
		}
		m.Missing = !slices.Equal(missing, conv.Missing)
		if m.Actual != m.Expected || m.Missing {
			result.Mismatches = append(result.Mismatches, m)
		}
	}
	return result, nil
}
