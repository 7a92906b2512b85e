package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRecord     = "marcshift/record/v1"
	DomainConversion = "marcshift/conversion/v1"
	DomainRuleSet    = "marcshift/ruleset/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordHash computes the content hash of a record.
// Two records hash equal iff they hold the same occurrences in the same
// order (after NFC normalization).
func RecordHash(r *Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("RecordHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// ConversionID computes the content-addressed ID of one logged conversion.
// The ID is stable across replays given the same run, position, and input.
func ConversionID(runToken string, seq int64, direction string, inputHash string) (string, error) {
	obj := NewRecord(
		E("run_token", Scalar(runToken)),
		E("seq", Scalar(fmt.Sprintf("%d", seq))),
		E("direction", Scalar(direction)),
		E("input", Scalar(inputHash)),
	)

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConversionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConversion, canonical), nil
}

// RuleSetHash identifies the rules a conversion ran under: the local
// field specs in registration order, and whether the built-in rules
// (versioned with the engine) followed them.
func RuleSetHash(specs []FieldSpec, builtin bool) (string, error) {
	if specs == nil {
		specs = []FieldSpec{}
	}
	data, err := json.Marshal(struct {
		Specs   []FieldSpec `json:"specs"`
		Builtin string      `json:"builtin,omitempty"`
	}{
		Specs:   specs,
		Builtin: builtinVersion(builtin),
	})
	if err != nil {
		return "", fmt.Errorf("RuleSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleSet, data), nil
}

func builtinVersion(builtin bool) string {
	if !builtin {
		return ""
	}
	return EngineVersion
}
