package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/compiler"
	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/rules/marc21"
)

// RulesOptions selects the rule set a command converts with.
type RulesOptions struct {
	Paths     []string // CUE rule files or directories, in precedence order
	NoBuiltin bool     // leave out the built-in MARC 21 rules
}

// addRulesFlags registers --rules and --no-builtin on cmd.
func addRulesFlags(cmd *cobra.Command, opts *RulesOptions) {
	cmd.Flags().StringArrayVarP(&opts.Paths, "rules", "r", nil, "CUE rule file or directory (repeatable, earlier wins)")
	cmd.Flags().BoolVar(&opts.NoBuiltin, "no-builtin", false, "do not register the built-in MARC 21 rules")
}

// LoadedRules is an assembled engine together with what it was built from.
type LoadedRules struct {
	Engine  *engine.Engine
	Specs   []ir.FieldSpec // local specs, in precedence order
	Files   []string       // CUE files the specs came from
	Builtin bool
	Hash    string // ir.RuleSetHash of Specs and Builtin
}

// LoadError represents an error that occurred while loading rules.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Details any       // e.g. every validation error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRules compiles and validates the rule files in opts and assembles
// them, ahead of the built-ins unless NoBuiltin is set, into one engine.
// Failures are returned as *LoadError.
func LoadRules(opts RulesOptions, logger *slog.Logger) (*LoadedRules, error) {
	builtin := !opts.NoBuiltin
	if !builtin && len(opts.Paths) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no rules: pass --rules or drop --no-builtin"}
	}

	specs, files, err := compiler.LoadRules(opts.Paths...)
	if err != nil {
		return nil, toLoadError(err)
	}
	hash, err := ir.RuleSetHash(specs, builtin)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("hashing rules: %v", err)}
	}
	eng, err := marc21.Assemble(specs, builtin, engine.WithLogger(logger))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidRules, Message: fmt.Sprintf("assembling rules: %v", err)}
	}
	logger.Debug("rules loaded", "files", len(files), "fields", len(specs), "builtin", builtin, "hash", hash)

	return &LoadedRules{Engine: eng, Specs: specs, Files: files, Builtin: builtin, Hash: hash}, nil
}

// toLoadError maps a compiler error to a LoadError with a stable code.
func toLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	var invalid *compiler.InvalidRulesError
	switch {
	case errors.As(err, &compileErr):
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	case errors.As(err, &invalid):
		return &LoadError{Code: ErrCodeInvalidRules, Message: invalid.Error(), Details: invalid.Errors}
	case errors.Is(err, compiler.ErrRulesNotFound):
		return &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, compiler.ErrNoRuleFiles):
		return &LoadError{Code: ErrCodeNoFiles, Message: err.Error()}
	case errors.Is(err, compiler.ErrLoadFailed):
		return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	default:
		return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
}

// reportLoadError prints a rules loading failure and returns the
// command error to exit with.
func reportLoadError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	message, details := loadErr.Message, loadErr.Details
	if pos := loadErr.Pos; pos.IsValid() {
		message = fmt.Sprintf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), message)
		if details == nil {
			details = map[string]any{"file": pos.Filename(), "line": pos.Line(), "column": pos.Column()}
		}
	}
	return f.Fail(ExitCommandError, loadErr.Code, message, details)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeInvalidRules = "E008" // Rules compiled but failed validation
	ErrCodeInvalidInput = "E009" // Input records unreadable
	ErrCodeConversion   = "E010" // A record failed to convert
	ErrCodeDatabase     = "E011" // Conversion log unavailable

	// Rule compilation errors, by offending field
	ErrCodeFieldTag       = "E121" // Missing or invalid tag
	ErrCodeFieldSubfields = "E122" // Invalid subfields block
	ErrCodeFieldIndicator = "E123" // Invalid ind1/ind2 block
	ErrCodeFieldFlag      = "E124" // Invalid control/repeatable/pattern value
)

// MapFieldToErrorCode maps a compiler error field, such as "tag" or
// "subfields.a", to an error code.
func MapFieldToErrorCode(field string) string {
	head, _, _ := strings.Cut(field, ".")
	switch head {
	case "tag":
		return ErrCodeFieldTag
	case "subfields":
		return ErrCodeFieldSubfields
	case "ind1", "ind2":
		return ErrCodeFieldIndicator
	case "control", "repeatable", "pattern":
		return ErrCodeFieldFlag
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
