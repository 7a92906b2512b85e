package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/harness"
	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Rules    RulesOptions
	Database string
	RunToken string // optional - specific run only
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []store.ReplayResult `json:"runs"`
	TotalRuns        int                  `json:"total_runs"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// RenderText prints one block per run and an overall verdict.
func (r ReplayResult) RenderText(w io.Writer) {
	if r.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", r.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range r.Runs {
		status := "✓"
		if !run.Deterministic() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s\n", status, run.RunToken)
		fmt.Fprintf(w, "  Conversions: %d checked, %d mismatched\n", run.Checked, len(run.Mismatches))
		if run.RulesChanged {
			fmt.Fprintln(w, "  Note: rules changed since this run was logged")
		}
		for _, m := range run.Mismatches {
			fmt.Fprintf(w, "  seq %d (%s) %s\n", m.Seq, m.Direction, m.ID)
			switch {
			case m.Error != "":
				fmt.Fprintf(w, "    error: %s\n", m.Error)
			case m.Actual != m.Expected:
				fmt.Fprintf(w, "    output: %s\n", harness.Diff(m.Expected, m.Actual))
			}
			if m.Missing {
				fmt.Fprintln(w, "    skipped keys differ")
			}
		}
		fmt.Fprintln(w)
	}

	if r.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs replayed identically")
	} else {
		fmt.Fprintln(w, "✗ Replay verification failed")
	}
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay logged conversions and verify determinism",
		Long: `Re-run logged conversions with the current rules and compare outputs.

Each conversion of a run is converted again, in seq order, and its
canonical output and skipped keys are compared with the log. Runs that
were logged under a different rule set are flagged.

Exit codes:
  0 - Every conversion replayed identically
  1 - One or more conversions differ
  2 - Command error (database not found, invalid rules, etc.)

Examples:
  marcshift replay --db ./conversions.db
  marcshift replay --db ./conversions.db --run 0192f3a4-...
  marcshift replay --db ./conversions.db --rules ./rules --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	addRulesFlags(cmd, &opts.Rules)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	rules, err := LoadRules(opts.Rules, logger)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runTokens := []string{opts.RunToken}
	if opts.RunToken == "" {
		if runTokens, err = st.ListRunTokens(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to list run tokens", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]store.ReplayResult, 0, len(runTokens)),
		TotalRuns:        len(runTokens),
		AllDeterministic: true,
	}
	convert := replayConvertFunc(rules.Engine)
	for _, token := range runTokens {
		formatter.VerboseLog("Replaying run %s", token)
		run, err := st.Replay(ctx, token, rules.Hash, convert)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", token), err)
		}
		result.Runs = append(result.Runs, run)
		if !run.Deterministic() {
			result.AllDeterministic = false
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.AllDeterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_DETERMINISM", Message: "replay verification failed"}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		result.RenderText(formatter.Writer)
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// replayConvertFunc re-runs logged conversions on e. Runs are replayed
// leniently, since a strict run only logs conversions without skipped
// keys. A forward output carrying __order__ was logged with field order
// preserved, and is replayed the same way.
func replayConvertFunc(e *engine.Engine) store.ConvertFunc {
	return func(conv ir.Conversion) (*ir.Record, []string, error) {
		keep := conv.Direction == ir.Forward && conv.Output != nil && conv.Output.Has(ir.OrderKey)
		return e.Convert(conv.Direction, conv.Input, engine.WithOrder(keep))
	}
}
