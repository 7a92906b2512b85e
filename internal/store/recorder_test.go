package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcshift/internal/ir"
)

func TestRecorderStampsRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(s, NewFixedGenerator("run-1"), "rules-v1")
	assert.Equal(t, "run-1", rec.RunToken())

	first, err := rec.Record(ctx, ir.Forward, rawRecord(), convertedRecord(), nil)
	require.NoError(t, err)
	second, err := rec.Record(ctx, ir.Reverse, convertedRecord(), rawRecord(), []string{"x"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, "rules-v1", first.RulesHash)
	assert.Equal(t, ir.EngineVersion, first.EngineVersion)
	assert.NotEqual(t, first.ID, second.ID)

	logged, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, logged, 2)
	assert.Equal(t, ir.Reverse, logged[1].Direction)
	assert.Equal(t, []string{"x"}, logged[1].Missing)
}

func TestRecorderIDIsContentAddressed(t *testing.T) {
	inputHash, err := ir.RecordHash(rawRecord())
	require.NoError(t, err)
	want, err := ir.ConversionID("run-1", 1, "do", inputHash)
	require.NoError(t, err)

	rec := NewRecorder(createTestStore(t), NewFixedGenerator("run-1"), "h")
	conv, err := rec.Record(context.Background(), ir.Forward, rawRecord(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, want, conv.ID)
}

func TestRecorderContinuesRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(s, NewFixedGenerator("run-1"), "h", WithClock(NewClockAt(41)), WithEngineVersion("test"))
	conv, err := rec.Record(ctx, ir.Forward, rawRecord(), convertedRecord(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), conv.Seq)
	assert.Equal(t, "test", conv.EngineVersion)
}

func TestRecorderConcurrentSeqUnique(t *testing.T) {
	s := createTestStore(t)
	rec := NewRecorder(s, UUIDv7Generator{}, "h")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.Record(context.Background(), ir.Forward, rawRecord(), convertedRecord(), nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	logged, err := s.ReadRun(context.Background(), rec.RunToken())
	require.NoError(t, err)
	require.Len(t, logged, n)
	for i, c := range logged {
		assert.Equal(t, int64(i+1), c.Seq)
	}
}

// =============================================================================
// Clock and run tokens
// =============================================================================

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	assert.Equal(t, int64(101), NewClockAt(100).Next())
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, a, b)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("run-1", "run-2")
	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

// =============================================================================
// Replay
// =============================================================================

func TestReplayDeterministic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(s, NewFixedGenerator("run-1"), "h")
	_, err := rec.Record(ctx, ir.Forward, rawRecord(), convertedRecord(), nil)
	require.NoError(t, err)
	_, err = rec.Record(ctx, ir.Reverse, convertedRecord(), rawRecord(), nil)
	require.NoError(t, err)

	convert := func(conv ir.Conversion) (*ir.Record, []string, error) {
		if conv.Direction == ir.Forward {
			return convertedRecord(), nil, nil
		}
		return rawRecord(), nil, nil
	}

	result, err := s.Replay(ctx, "run-1", "h", convert)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.True(t, result.Deterministic())
	assert.False(t, result.RulesChanged)
}

func TestReplayReportsDrift(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(s, NewFixedGenerator("run-1"), "old")
	_, err := rec.Record(ctx, ir.Forward, rawRecord(), convertedRecord(), nil)
	require.NoError(t, err)

	convert := func(ir.Conversion) (*ir.Record, []string, error) {
		return ir.NewRecord(ir.E("control_number", ir.Scalar("changed"))), []string{"650_0"}, nil
	}

	result, err := s.Replay(ctx, "run-1", "new", convert)
	require.NoError(t, err)
	assert.True(t, result.RulesChanged)
	require.Len(t, result.Mismatches, 1)

	m := result.Mismatches[0]
	assert.Equal(t, int64(1), m.Seq)
	assert.True(t, m.Missing)
	assert.Contains(t, m.Actual, "changed")
	assert.Equal(t, canonical(t, convertedRecord()), m.Expected)
}

func TestReplayRecordsConvertErrors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(s, NewFixedGenerator("run-1"), "h")
	_, err := rec.Record(ctx, ir.Forward, rawRecord(), convertedRecord(), nil)
	require.NoError(t, err)

	result, err := s.Replay(ctx, "run-1", "h", func(ir.Conversion) (*ir.Record, []string, error) {
		return nil, nil, errors.New("boom")
	})
	require.NoError(t, err)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "boom", result.Mismatches[0].Error)
}

func TestReplayUnknownRun(t *testing.T) {
	s := createTestStore(t)

	result, err := s.Replay(context.Background(), "nope", "h", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Checked)
	assert.True(t, result.Deterministic())
}
