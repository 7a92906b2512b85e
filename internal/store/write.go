package store

import (
	"context"
	"fmt"

	"github.com/roach88/marcshift/internal/ir"
)

// WriteConversion inserts a conversion record into the log.
// Uses ON CONFLICT DO NOTHING for idempotency: the ID is content
// addressed, so writing the same conversion twice is silently ignored.
// Other constraint violations (e.g. an unknown direction) still error.
//
// Input and output are serialized with ir.MarshalCanonical.
func (s *Store) WriteConversion(ctx context.Context, conv ir.Conversion) error {
	inputJSON, err := marshalRecord(conv.Input)
	if err != nil {
		return fmt.Errorf("write conversion: input: %w", err)
	}
	outputJSON, err := marshalRecord(conv.Output)
	if err != nil {
		return fmt.Errorf("write conversion: output: %w", err)
	}
	missingJSON, err := marshalMissing(conv.Missing)
	if err != nil {
		return fmt.Errorf("write conversion: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversions
		(id, run_token, seq, direction, input, output, missing, rules_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		conv.ID,
		conv.RunToken,
		conv.Seq,
		string(conv.Direction),
		inputJSON,
		outputJSON,
		missingJSON,
		conv.RulesHash,
		conv.EngineVersion,
		conv.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write conversion: %w", err)
	}

	return nil
}
