package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/harness"
	"github.com/roach88/marcshift/internal/ir"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Rules       RulesOptions
	InputFormat string
}

// RecordCheck is the outcome of checking one record.
type RecordCheck struct {
	Index   int      `json:"index"` // 1-based position in the input
	Missing []string `json:"missing,omitempty"`
	Diff    string   `json:"diff,omitempty"` // round trip difference
	Error   string   `json:"error,omitempty"`
}

// OK reports whether the record converted without loss.
func (c RecordCheck) OK() bool {
	return len(c.Missing) == 0 && c.Diff == "" && c.Error == ""
}

// CheckResult holds the outcome of a check run.
type CheckResult struct {
	Records []RecordCheck `json:"records"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
}

// RenderText prints one line per record, with problems indented below.
func (r CheckResult) RenderText(w io.Writer) {
	for _, rc := range r.Records {
		if rc.OK() {
			fmt.Fprintf(w, "✓ record %d\n", rc.Index)
			continue
		}
		fmt.Fprintf(w, "✗ record %d\n", rc.Index)
		if rc.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", rc.Error)
		}
		if len(rc.Missing) > 0 {
			fmt.Fprintf(w, "  no rule for: %v\n", rc.Missing)
		}
		if rc.Diff != "" {
			fmt.Fprintf(w, "  round trip: %s\n", rc.Diff)
		}
	}
	fmt.Fprintf(w, "\nCheck Summary: %d passed, %d failed, %d total\n", r.Passed, r.Failed, len(r.Records))
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [input]",
		Short: "Check that raw records convert without loss",
		Long: `Convert each raw record forward and back and report any loss.

A record fails the check when a key has no rule, when conversion
fails, or when the reverse conversion does not reproduce the input.
Field order is preserved during the check.

Exit codes:
  0 - Every record round-trips
  1 - One or more records failed
  2 - Command error (invalid rules, unreadable input, etc.)

Examples:
  marcshift check record.json
  marcshift check --input-format marcxml --rules ./rules collection.xml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, inputArg(args), cmd)
		},
	}

	addRulesFlags(cmd, &opts.Rules)
	cmd.Flags().StringVar(&opts.InputFormat, "input-format", RecordFormatJSON, "input record format (json|marcxml)")
	return cmd
}

func runCheck(opts *CheckOptions, input string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if err := checkRecordFormat("input format", opts.InputFormat); err != nil {
		return err
	}
	rules, err := LoadRules(opts.Rules, logger)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	records, err := loadRecords(cmd, formatter, input, opts.InputFormat)
	if err != nil {
		return err
	}

	result := CheckResult{Records: make([]RecordCheck, 0, len(records))}
	for i, rec := range records {
		rc := checkRecord(rules.Engine, rec)
		rc.Index = i + 1
		if rc.OK() {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Records = append(result.Records, rc)
	}

	if formatter.Format == "json" && result.Failed > 0 {
		resp := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "E_CHECK_FAILED",
				Message: fmt.Sprintf("%d record(s) failed the check", result.Failed),
			},
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else if err := formatter.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) failed the check", result.Failed))
	}
	return nil
}

// checkRecord converts rec forward and back. Keys without a rule are
// reported, then left out of the round trip comparison so the diff
// shows only what the rules themselves lose.
func checkRecord(e *engine.Engine, rec *ir.Record) RecordCheck {
	var rc RecordCheck
	opts := []engine.Option{engine.WithIgnoreMissing(true), engine.WithOrder(true)}

	out, missing, err := e.Convert(ir.Forward, rec, opts...)
	if err != nil {
		rc.Error = err.Error()
		return rc
	}
	rc.Missing = missing

	back, _, err := e.Convert(ir.Reverse, out, opts...)
	if err != nil {
		rc.Error = err.Error()
		return rc
	}

	want := ir.ExpandAll(rec)
	for _, key := range missing {
		want.Delete(key)
	}
	rc.Diff = harness.DiffRecords(want, back)
	return rc
}
