package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RunToken  string
	Key         string // optional - only conversions touching this key
	Direction   string // optional - "do" or "undo"
	WithMissing bool   // optional - only conversions that skipped keys
}

// TraceEvent is one logged conversion in the trace timeline.
type TraceEvent struct {
	Seq       int64        `json:"seq"`
	Direction ir.Direction `json:"direction"`
	ID        string       `json:"id"`
	Input     *ir.Record   `json:"input"`
	Output    *ir.Record   `json:"output"`
	Missing   []string     `json:"missing,omitempty"`
	RulesHash string       `json:"rules_hash"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalConversions int `json:"total_conversions"`
	Forward          int `json:"do"`
	Reverse          int `json:"undo"`
	WithMissing      int `json:"with_missing"`
	RuleSets         int `json:"rule_sets"` // distinct rule set hashes
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunToken string       `json:"run_token"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`

	verbose bool
}

// RenderText prints the timeline and stats; verbose output adds the
// records of each conversion.
func (r TraceResult) RenderText(w io.Writer) {
	if len(r.Timeline) == 0 {
		fmt.Fprintf(w, "No conversions found for run: %s\n", r.RunToken)
		return
	}

	fmt.Fprintf(w, "Trace for Run: %s\n", r.RunToken)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	for _, ev := range r.Timeline {
		fmt.Fprintf(w, "  [%d] %s %s\n", ev.Seq, strings.ToUpper(string(ev.Direction)), truncateID(ev.ID))
		fmt.Fprintf(w, "       %s -> %s\n", formatKeys(ev.Input), formatKeys(ev.Output))
		if len(ev.Missing) > 0 {
			fmt.Fprintf(w, "       No rule: %s\n", strings.Join(ev.Missing, ", "))
		}
		if r.verbose {
			fmt.Fprintf(w, "       Input:  %s\n", canonicalString(ev.Input))
			fmt.Fprintf(w, "       Output: %s\n", canonicalString(ev.Output))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Conversions:  %d\n", r.Stats.TotalConversions)
	fmt.Fprintf(w, "  do:           %d\n", r.Stats.Forward)
	fmt.Fprintf(w, "  undo:         %d\n", r.Stats.Reverse)
	fmt.Fprintf(w, "  With Missing: %d\n", r.Stats.WithMissing)
	fmt.Fprintf(w, "  Rule Sets:    %d\n", r.Stats.RuleSets)
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the logged conversions of a run",
		Long: `Show the conversions logged under a run token, in seq order.

Each entry lists the keys going in and coming out and any keys that
were skipped for lack of a rule. With --verbose the full records are
printed in canonical JSON.

Examples:
  marcshift trace --db ./conversions.db --run 0192f3a4-...
  marcshift trace --db ./conversions.db --run 0192f3a4-... --key 24510
  marcshift trace --db ./conversions.db --run 0192f3a4-... --with-missing
  marcshift trace --db ./conversions.db --run 0192f3a4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Key, "key", "", "only conversions whose input or output has this key")
	cmd.Flags().StringVar(&opts.Direction, "direction", "", "only conversions in this direction (do|undo)")
	cmd.Flags().BoolVar(&opts.WithMissing, "with-missing", false, "only conversions that skipped keys without a rule")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Direction != "" && !ir.ValidDirections[ir.Direction(opts.Direction)] {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid direction %q: must be do or undo", opts.Direction))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	conversions, err := st.Find(ctx, store.Filter{
		RunToken:    opts.RunToken,
		Direction:   ir.Direction(opts.Direction),
		Key:         opts.Key,
		WithMissing: opts.WithMissing,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := TraceResult{
		RunToken: opts.RunToken,
		Timeline: buildTimeline(conversions),
		verbose:  opts.Verbose,
	}
	result.Stats = traceStats(result.Timeline)

	return formatter.SuccessWithTrace(result, opts.RunToken)
}

// buildTimeline converts logged conversions to timeline events.
func buildTimeline(conversions []ir.Conversion) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(conversions))
	for _, c := range conversions {
		timeline = append(timeline, TraceEvent{
			Seq:       c.Seq,
			Direction: c.Direction,
			ID:        c.ID,
			Input:     c.Input,
			Output:    c.Output,
			Missing:   c.Missing,
			RulesHash: c.RulesHash,
		})
	}
	return timeline
}

func traceStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{TotalConversions: len(timeline)}
	hashes := map[string]bool{}
	for _, ev := range timeline {
		switch ev.Direction {
		case ir.Forward:
			stats.Forward++
		case ir.Reverse:
			stats.Reverse++
		}
		if len(ev.Missing) > 0 {
			stats.WithMissing++
		}
		hashes[ev.RulesHash] = true
	}
	stats.RuleSets = len(hashes)
	return stats
}

// formatKeys lists the distinct top-level keys of r, without __order__.
func formatKeys(r *ir.Record) string {
	if r == nil {
		return "{}"
	}
	keys := slices.DeleteFunc(r.Keys(), func(k string) bool { return k == ir.OrderKey })
	return "{" + strings.Join(keys, ", ") + "}"
}

func canonicalString(r *ir.Record) string {
	if r == nil {
		return "null"
	}
	data, err := ir.MarshalCanonical(r)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// truncateID shortens a conversion ID for display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
