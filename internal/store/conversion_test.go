package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcshift/internal/ir"
)

func canonical(t *testing.T, rec *ir.Record) string {
	t.Helper()
	data, err := ir.MarshalCanonical(rec)
	require.NoError(t, err)
	return string(data)
}

func TestWriteConversionRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv := createTestConversion("conv-1", "run-1", 1)
	conv.Missing = []string{"999__"}
	require.NoError(t, s.WriteConversion(ctx, conv))

	got, err := s.ReadConversion(ctx, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, conv.RunToken, got.RunToken)
	assert.Equal(t, conv.Seq, got.Seq)
	assert.Equal(t, ir.Forward, got.Direction)
	assert.Equal(t, []string{"999__"}, got.Missing)
	assert.Equal(t, "test-hash", got.RulesHash)
	assert.Equal(t, ir.EngineVersion, got.EngineVersion)
	assert.Equal(t, ir.IRVersion, got.IRVersion)

	assert.Equal(t, canonical(t, conv.Input), canonical(t, got.Input))
	assert.Equal(t, canonical(t, conv.Output), canonical(t, got.Output))
}

func TestReadConversionKeepsRepeatedKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv := createTestConversion("conv-1", "run-1", 1)
	require.NoError(t, s.WriteConversion(ctx, conv))

	got, err := s.ReadConversion(ctx, "conv-1")
	require.NoError(t, err)

	flat := ir.ExpandAll(got.Input)
	assert.Equal(t, []string{"001", "650_0", "650_0"}, flat.OccurrenceKeys())
	assert.True(t, flat.Equal(rawRecord()), "stored input expands back to the raw record")

	// Records without repeated keys are stored as they are, own order included.
	assert.True(t, got.Output.Equal(convertedRecord()))
}

func TestWriteConversionIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv := createTestConversion("conv-1", "run-1", 1)
	require.NoError(t, s.WriteConversion(ctx, conv))
	require.NoError(t, s.WriteConversion(ctx, conv), "duplicate write is a no-op")

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteConversionRejectsUnknownDirection(t *testing.T) {
	s := createTestStore(t)

	conv := createTestConversion("conv-1", "run-1", 1)
	conv.Direction = "sideways"
	assert.Error(t, s.WriteConversion(context.Background(), conv))
}

func TestWriteConversionNilRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv := createTestConversion("conv-1", "run-1", 1)
	conv.Output = nil
	require.NoError(t, s.WriteConversion(ctx, conv))

	got, err := s.ReadConversion(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Output.Len())
	assert.Nil(t, got.Missing)
}

func TestReadConversionNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadConversion(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadRunOrdersBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order on purpose
	for _, c := range []ir.Conversion{
		createTestConversion("c", "run-1", 3),
		createTestConversion("a", "run-1", 1),
		createTestConversion("b", "run-1", 2),
		createTestConversion("z", "run-2", 1),
	} {
		require.NoError(t, s.WriteConversion(ctx, c))
	}

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})

	all, err := s.ReadAllConversions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "z", all[3].ID)
}

func TestReadRunEmpty(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadRun(context.Background(), "unknown")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListRunTokens(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tokens, err := s.ListRunTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, tokens)

	require.NoError(t, s.WriteConversion(ctx, createTestConversion("x", "run-b", 1)))
	require.NoError(t, s.WriteConversion(ctx, createTestConversion("y", "run-a", 1)))
	require.NoError(t, s.WriteConversion(ctx, createTestConversion("z", "run-a", 2)))

	tokens, err = s.ListRunTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, tokens)
}

func TestGetLastSeqForRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.GetLastSeqForRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.WriteConversion(ctx, createTestConversion("a", "run-1", 4)))
	require.NoError(t, s.WriteConversion(ctx, createTestConversion("b", "run-1", 7)))

	seq, err = s.GetLastSeqForRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}
