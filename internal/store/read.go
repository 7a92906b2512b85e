package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/marcshift/internal/ir"
)

const conversionColumns = `id, run_token, seq, direction, input, output, missing, rules_hash, engine_version, ir_version`

// ReadRun returns all conversions logged under a run token.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the run holds no conversions.
func (s *Store) ReadRun(ctx context.Context, runToken string) ([]ir.Conversion, error) {
	conversions, err := s.Find(ctx, Filter{RunToken: runToken})
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	return conversions, nil
}

// ReadAllConversions returns every logged conversion, runs in token
// order and each run in seq order.
func (s *Store) ReadAllConversions(ctx context.Context) ([]ir.Conversion, error) {
	return s.Find(ctx, Filter{})
}

// ReadConversion retrieves a single conversion by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadConversion(ctx context.Context, id string) (ir.Conversion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversionColumns+`
		FROM conversions
		WHERE id = ?
	`, id)
	return scanConversion(row)
}

// ListRunTokens returns all distinct run tokens in the log.
// Results ordered alphabetically, which for UUIDv7 tokens is creation order.
func (s *Store) ListRunTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT run_token FROM conversions
		ORDER BY run_token COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list run tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run tokens: %w", err)
	}
	return tokens, nil
}

// GetLastSeqForRun returns the highest seq used in a run, or 0 for an
// unknown run. Used to continue a run with NewClockAt.
func (s *Store) GetLastSeqForRun(ctx context.Context, runToken string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM conversions WHERE run_token = ?
	`, runToken).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func collectConversions(rows *sql.Rows) ([]ir.Conversion, error) {
	defer rows.Close()

	conversions := []ir.Conversion{}
	for rows.Next() {
		conv, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return conversions, nil
}

func scanConversion(row rowScanner) (ir.Conversion, error) {
	var conv ir.Conversion
	var direction, inputJSON, outputJSON, missing string
	err := row.Scan(
		&conv.ID,
		&conv.RunToken,
		&conv.Seq,
		&direction,
		&inputJSON,
		&outputJSON,
		&missing,
		&conv.RulesHash,
		&conv.EngineVersion,
		&conv.IRVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conv, err
		}
		return conv, fmt.Errorf("scan conversion: %w", err)
	}
	conv.Direction = ir.Direction(direction)

	if conv.Input, err = unmarshalRecord(inputJSON); err != nil {
		return conv, fmt.Errorf("conversion %s: %w", conv.ID, err)
	}
	if conv.Output, err = unmarshalRecord(outputJSON); err != nil {
		return conv, fmt.Errorf("conversion %s: %w", conv.ID, err)
	}
	if conv.Missing, err = unmarshalMissing(missing); err != nil {
		return conv, fmt.Errorf("conversion %s: %w", conv.ID, err)
	}
	return conv, nil
}
