package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/compiler"
	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/rules"
	"github.com/roach88/marcshift/internal/rules/marc21"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	NoBuiltin bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Fields   int                        `json:"fields"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ShadowWarning   `json:"warnings,omitempty"`
}

// RenderText prints errors first, then shadowing warnings.
func (r ValidationResult) RenderText(w io.Writer) {
	if r.Valid {
		fmt.Fprintf(w, "✓ All rules valid (%d field(s))\n", r.Fields)
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, err := range r.Errors {
			if err.Line > 0 {
				fmt.Fprintf(w, "line %d\n", err.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		}
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Message)
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <rules>...",
		Short: "Validate field rules without converting",
		Long: `Validate CUE field rules and report rule precedence problems.

Every compile and schema error is reported, not just the first. Rules
that an earlier rule hides are reported as warnings; the check covers
the built-in rules a local rule set does not replace, unless
--no-builtin is set.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoBuiltin, "no-builtin", false, "check precedence without the built-in rules")

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var specs []ir.FieldSpec
	var validationErrors []compiler.ValidationError
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		set, err := compiler.LoadRuleSet(path)
		var compileErr *compiler.CompileError
		switch {
		case errors.As(err, &compileErr):
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   compileErr.Field,
				Message: compileErr.Message,
				Code:    MapFieldToErrorCode(compileErr.Field),
				Line:    lineOf(compileErr),
			})
			continue
		case err != nil:
			return reportLoadError(formatter, toLoadError(err))
		}
		specs = append(specs, set.Specs...)
	}
	validationErrors = append(validationErrors, compiler.Validate(specs)...)

	result := ValidationResult{
		Valid:    len(validationErrors) == 0,
		Fields:   len(specs),
		Errors:   validationErrors,
		Warnings: compiler.AnalyzeShadowing(effectiveSpecs(specs, !opts.NoBuiltin)),
	}
	if len(result.Warnings) == 0 {
		result.Warnings = nil
	}

	if result.Valid {
		return formatter.Success(result)
	}
	if formatter.Format == "json" {
		resp := CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: validationErrors[0].Code, Message: validationErrors[0].Message},
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		result.RenderText(formatter.Writer)
	}
	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(validationErrors)))
}

// effectiveSpecs lists the field specs an engine assembled from local
// would dispatch over: local first, then the built-ins it does not
// replace by name or pattern.
func effectiveSpecs(local []ir.FieldSpec, builtin bool) []ir.FieldSpec {
	out := append([]ir.FieldSpec(nil), local...)
	if !builtin {
		return out
	}
	names := make(map[string]bool, len(local))
	patterns := make(map[string]bool, len(local))
	for _, spec := range local {
		names[spec.Name] = true
		patterns[rules.ForwardPattern(spec)] = true
	}
	for _, spec := range marc21.Fields() {
		if !names[spec.Name] && !patterns[rules.ForwardPattern(spec)] {
			out = append(out, spec)
		}
	}
	return out
}

func lineOf(err *compiler.CompileError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}
