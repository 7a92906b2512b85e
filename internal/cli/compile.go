package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/rules"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output    string // output file path
	NoBuiltin bool   // hash the rule set as used with --no-builtin
}

// CompilationResult holds the compiled field rules.
type CompilationResult struct {
	Fields    []ir.FieldSpec `json:"fields"`
	Files     []string       `json:"files"`
	RulesHash string         `json:"rules_hash"`
	Output    string         `json:"output,omitempty"`
}

// RenderText prints a summary line and one line per field rule.
func (r *CompilationResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Compiled %d field rule(s) from %d file(s)\n\n", len(r.Fields), len(r.Files))

	if len(r.Fields) > 0 {
		fmt.Fprintln(w, "Fields:")
		for _, f := range r.Fields {
			kind := "data"
			if f.Control {
				kind = "control"
			}
			fmt.Fprintf(w, "  %s: %s %s, pattern %s, %d subfield(s)\n",
				f.Name, kind, f.Tag, rules.ForwardPattern(f), len(f.Subfields))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Rules hash: %s\n", r.RulesHash)
	if r.Output != "" {
		fmt.Fprintf(w, "Wrote field rules to %s\n", r.Output)
	}
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rules>...",
		Short: "Compile CUE field rules",
		Long: `Compile CUE field rules to their JSON field specs.

Each argument is a .cue file or a directory of them. The rules are
validated as one set, in argument order, and the rule set hash that
logged conversions carry is printed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.NoBuiltin, "no-builtin", false, "hash the rules as used without the built-in rules")

	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	loaded, err := LoadRules(RulesOptions{Paths: paths, NoBuiltin: opts.NoBuiltin}, logger)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	for _, f := range loaded.Files {
		formatter.VerboseLog("Compiled %s", f)
	}

	result := &CompilationResult{
		Fields:    loaded.Specs,
		Files:     loaded.Files,
		RulesHash: loaded.Hash,
		Output:    opts.Output,
	}
	if result.Fields == nil {
		result.Fields = []ir.FieldSpec{}
	}

	if opts.Output != "" {
		if err := writeFieldSpecs(result.Fields, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return formatter.Success(result)
}

// writeFieldSpecs writes the field specs to a file as indented JSON.
func writeFieldSpecs(specs []ir.FieldSpec, filename string) error {
	data, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling field specs: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
