package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/store"
)

// ConvertOptions holds flags for the do and undo commands.
type ConvertOptions struct {
	*RootOptions
	Rules        RulesOptions
	InputFormat  string
	OutputFormat string
	Strict       bool   // fail on the first key without a rule
	KeepOrder    bool   // record field order under __order__
	DatabasePath string // log conversions to this SQLite database
	RunToken     string // continue this run instead of starting one

	tokens store.TokenGenerator // run token source; UUIDv7 when nil
}

// NewDoCommand creates the do command.
func NewDoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "do [input]",
		Short: "Convert raw MARC records to canonical form",
		Long: `Convert raw MARC records into their canonical, named-field form.

Input is read from the given file, or stdin when absent or "-". JSON
input may be a single record, an array of records, or one record per
line; MARCXML input may hold a collection.

Keys without a rule are skipped and logged unless --strict is set.

Examples:
  marcshift do record.json
  marcshift do --input-format marcxml collection.xml
  marcshift do --rules ./rules --keep-order record.json
  marcshift do --db conversions.db record.json
  marcshift do --db conversions.db --run batch-7 more.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, ir.Forward, inputArg(args), cmd)
		},
	}

	addConvertFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.InputFormat, "input-format", RecordFormatJSON, "input record format (json|marcxml)")
	return cmd
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "undo [input]",
		Short: "Convert canonical records back to raw MARC",
		Long: `Convert canonical records back into raw MARC form.

Input is canonical JSON, read from the given file or stdin. Output is
raw JSON, or MARCXML with --output-format marcxml.

Examples:
  marcshift undo canonical.json
  marcshift undo --output-format marcxml canonical.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, ir.Reverse, inputArg(args), cmd)
		},
	}

	addConvertFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.OutputFormat, "output-format", RecordFormatJSON, "output record format (json|marcxml)")
	return cmd
}

func addConvertFlags(cmd *cobra.Command, opts *ConvertOptions) {
	addRulesFlags(cmd, &opts.Rules)
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on keys without a rule")
	cmd.Flags().BoolVar(&opts.KeepOrder, "keep-order", false, "preserve field order under __order__")
	cmd.Flags().StringVar(&opts.DatabasePath, "db", "", "log conversions to this SQLite database")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "log under this run token, continuing its seq (requires --db)")
}

func inputArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// runOptions translates command flags to engine options.
func (o *ConvertOptions) runOptions() []engine.Option {
	return []engine.Option{
		engine.WithIgnoreMissing(!o.Strict),
		engine.WithOrder(o.KeepOrder),
	}
}

func runConvert(opts *ConvertOptions, dir ir.Direction, input string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	// Forward input is raw and may be MARCXML; forward output is canonical
	// and always JSON. Reverse is the mirror image.
	inFormat, outFormat := RecordFormatJSON, RecordFormatJSON
	if dir == ir.Forward && opts.InputFormat != "" {
		inFormat = opts.InputFormat
	}
	if dir == ir.Reverse && opts.OutputFormat != "" {
		outFormat = opts.OutputFormat
	}
	if err := checkRecordFormat("input format", inFormat); err != nil {
		return err
	}
	if err := checkRecordFormat("output format", outFormat); err != nil {
		return err
	}

	rules, err := LoadRules(opts.Rules, logger)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	records, err := loadRecords(cmd, formatter, input, inFormat)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Converting %d record(s) (%s)", len(records), dir)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var recorder *store.Recorder
	if opts.RunToken != "" && opts.DatabasePath == "" {
		return NewExitError(ExitCommandError, "--run requires --db")
	}
	if opts.DatabasePath != "" {
		st, err := store.Open(opts.DatabasePath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("opening database: %v", err), nil)
		}
		defer st.Close()
		if recorder, err = openRecorder(ctx, st, opts, rules.Hash); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
		}
		logger.Debug("logging conversions", "db", opts.DatabasePath, "run_token", recorder.RunToken())
	}

	outputs := make([]*ir.Record, 0, len(records))
	for i, rec := range records {
		out, missing, err := rules.Engine.Convert(dir, rec, opts.runOptions()...)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeConversion,
				fmt.Sprintf("record %d: %v", i+1, err), nil)
		}
		if len(missing) > 0 {
			logger.Warn("skipped keys without a rule", slog.Int("record", i+1), slog.Any("keys", missing))
		}
		if recorder != nil {
			if _, err := recorder.Record(ctx, dir, rec, out, missing); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("logging record %d: %v", i+1, err), nil)
			}
		}
		outputs = append(outputs, out)
	}

	if err := writeRecords(cmd.OutOrStdout(), outputs, outFormat); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output: %v", err), nil)
	}
	if recorder != nil {
		formatter.VerboseLog("Logged %d conversion(s) under run %s", len(outputs), recorder.RunToken())
	}
	return nil
}

// openRecorder starts a recorder on st. A token that already has rows
// continues after its last seq.
func openRecorder(ctx context.Context, st *store.Store, opts *ConvertOptions, rulesHash string) (*store.Recorder, error) {
	tokens := opts.tokens
	switch {
	case opts.RunToken != "":
		tokens = store.NewFixedGenerator(opts.RunToken)
	case tokens == nil:
		tokens = store.UUIDv7Generator{}
	}

	token := tokens.Generate()
	last, err := st.GetLastSeqForRun(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", token, err)
	}
	return store.NewRecorder(st, store.NewFixedGenerator(token), rulesHash,
		store.WithClock(store.NewClockAt(last))), nil
}
