package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/marcshift/internal/ir"
)

// marshalRecord converts a record to canonical JSON TEXT for storage.
// A nil record is stored as "{}".
func marshalRecord(rec *ir.Record) (string, error) {
	if rec == nil {
		rec = ir.NewRecord()
	}
	data, err := ir.MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses canonical JSON TEXT back into a record.
// Document order is kept, so repeated keys survive the round trip.
func unmarshalRecord(data string) (*ir.Record, error) {
	if data == "" {
		return ir.NewRecord(), nil
	}
	rec, err := ir.DecodeRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

func marshalMissing(keys []string) (string, error) {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("marshal missing: %w", err)
	}
	return string(data), nil
}

func unmarshalMissing(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal missing: %w", err)
	}
	return keys, nil
}
