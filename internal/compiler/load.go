package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/marcshift/internal/ir"
)

// Loading failures. LoadRuleSet wraps one of these, or returns a
// *CompileError for problems inside the CUE source.
var (
	ErrRulesNotFound = errors.New("rules path not found")
	ErrNoRuleFiles   = errors.New("no CUE files found")
	ErrLoadFailed    = errors.New("CUE load failed")
)

// RuleSet is a loaded and compiled set of field rules.
type RuleSet struct {
	Specs []ir.FieldSpec
	Files []string  // CUE files the set was loaded from
	Value cue.Value // Raw CUE value for further inspection
}

// LoadRuleSet loads CUE field rules from a directory (every .cue file
// directly in it, unified as one instance) or from a single .cue file,
// and compiles them with CompileRuleSet. Package clauses are optional;
// files in one directory that declare one must agree on it.
//
// The specs are not validated; run Validate on them.
func LoadRuleSet(path string) (*RuleSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRulesNotFound, path)
	}

	// Files are passed by name: loading "." would skip files without a
	// package clause.
	cfg := &load.Config{}
	var args, files []string
	if info.IsDir() {
		cfg.Dir = path
		if files, err = FindCUEFiles(path); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", path, err)
		}
		for _, f := range files {
			args = append(args, filepath.Base(f))
		}
	} else {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
		files = []string{path}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoRuleFiles, path)
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: no instances", ErrLoadFailed)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	specs, err := CompileRuleSet(value)
	if err != nil {
		return nil, err
	}
	return &RuleSet{Specs: specs, Files: files, Value: value}, nil
}

// FindCUEFiles returns the .cue files directly inside dir, sorted by
// name. These are the files LoadRuleSet reads for a directory.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// InvalidRulesError reports a rule set that compiled but failed
// validation. Errors holds every problem found.
type InvalidRulesError struct {
	Errors []ValidationError
}

func (e *InvalidRulesError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid rules: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("invalid rules: %s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}

// LoadRules loads every path with LoadRuleSet, concatenates the specs in
// argument order and validates the result as one rule set. It returns
// the specs together with the CUE files they came from.
func LoadRules(paths ...string) ([]ir.FieldSpec, []string, error) {
	var specs []ir.FieldSpec
	var files []string
	for _, p := range paths {
		set, err := LoadRuleSet(p)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, set.Specs...)
		files = append(files, set.Files...)
	}
	if errs := Validate(specs); len(errs) > 0 {
		return nil, nil, &InvalidRulesError{Errors: errs}
	}
	return specs, files, nil
}
