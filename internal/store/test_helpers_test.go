package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/marcshift/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rawRecord() *ir.Record {
	return ir.NewRecord(
		ir.E("001", ir.Scalar("ocm123")),
		ir.E("650_0", ir.NewRecord(
			ir.E("a", ir.Scalar("Monsters")),
			ir.E("v", ir.Scalar("Juvenile fiction")),
			ir.E("a", ir.Scalar("Wild things")),
		)),
		ir.E("650_0", ir.NewRecord(ir.E("a", ir.Scalar("Imagination")))),
	)
}

func convertedRecord() *ir.Record {
	return ir.NewRecord(
		ir.E("control_number", ir.Scalar("ocm123")),
		ir.E("subject_added_entry_topical_term", ir.List{
			ir.NewRecord(
				ir.E(ir.OrderKey, ir.Strings("topical_term", "form_subdivision", "topical_term")),
				ir.E("topical_term", ir.Strings("Monsters", "Wild things")),
				ir.E("form_subdivision", ir.Scalar("Juvenile fiction")),
			),
			ir.NewRecord(ir.E("topical_term", ir.Scalar("Imagination"))),
		}),
	)
}

// createTestConversion builds a conversion with minimal required fields.
func createTestConversion(id, runToken string, seq int64) ir.Conversion {
	return ir.Conversion{
		ID:            id,
		RunToken:      runToken,
		Seq:           seq,
		Direction:     ir.Forward,
		Input:         rawRecord(),
		Output:        convertedRecord(),
		RulesHash:     "test-hash",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}
