package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/marcshift/internal/ir"
)

// Filter selects logged conversions. Zero-valued fields match every row;
// set fields are combined with AND.
type Filter struct {
	RunToken  string
	Direction ir.Direction
	RulesHash string

	// Key keeps conversions whose input or output has this top-level key.
	Key string

	// WithMissing keeps conversions that skipped at least one key.
	WithMissing bool
}

// predicate is one compiled WHERE condition and its parameters.
type predicate struct {
	sql    string
	params []any
}

// compile turns f into a WHERE clause. Values are always passed as
// parameters, never interpolated. An empty filter compiles to "1 = 1".
func (f Filter) compile() (string, []any) {
	var preds []predicate
	if f.RunToken != "" {
		preds = append(preds, predicate{"run_token = ?", []any{f.RunToken}})
	}
	if f.Direction != "" {
		preds = append(preds, predicate{"direction = ?", []any{string(f.Direction)}})
	}
	if f.RulesHash != "" {
		preds = append(preds, predicate{"rules_hash = ?", []any{f.RulesHash}})
	}
	if f.Key != "" {
		preds = append(preds, predicate{
			"(EXISTS (SELECT 1 FROM json_each(input) WHERE key = ?)" +
				" OR EXISTS (SELECT 1 FROM json_each(output) WHERE key = ?))",
			[]any{f.Key, f.Key},
		})
	}
	if f.WithMissing {
		preds = append(preds, predicate{"missing <> '[]'", nil})
	}

	if len(preds) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, len(preds))
	var params []any
	for i, p := range preds {
		parts[i] = p.sql
		params = append(params, p.params...)
	}
	return strings.Join(parts, " AND "), params
}

// Find returns the conversions matching f, runs in token order and each
// run in seq order. Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, f Filter) ([]ir.Conversion, error) {
	where, params := f.compile()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversionColumns+`
		FROM conversions
		WHERE `+where+`
		ORDER BY run_token COLLATE BINARY ASC, seq ASC, id COLLATE BINARY ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("find conversions: %w", err)
	}
	return collectConversions(rows)
}
