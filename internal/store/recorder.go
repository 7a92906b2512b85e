package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/marcshift/internal/ir"
)

// Sequencer hands out logical clock values. *Clock satisfies it.
type Sequencer interface {
	Next() int64
}

// TokenGenerator hands out run tokens. UUIDv7Generator and
// FixedGenerator satisfy it.
type TokenGenerator interface {
	Generate() string
}

// Recorder appends the conversions of one run to the log.
//
// A Recorder draws one run token at construction and stamps every
// conversion with the next seq from its clock. Safe for concurrent use;
// seq values are unique but rows from concurrent callers interleave.
type Recorder struct {
	store         *Store
	runToken      string
	rulesHash     string
	engineVersion string

	mu    sync.Mutex
	clock Sequencer
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock replaces the run clock. Used to continue an existing run or
// to pin seq values in tests.
func WithClock(c Sequencer) RecorderOption {
	return func(r *Recorder) {
		r.clock = c
	}
}

// WithEngineVersion overrides the engine version stamped on each row.
func WithEngineVersion(v string) RecorderOption {
	return func(r *Recorder) {
		r.engineVersion = v
	}
}

// NewRecorder starts a run. rulesHash identifies the rule set the run
// converts with, so replays can tell when the rules changed underneath.
func NewRecorder(s *Store, gen TokenGenerator, rulesHash string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:         s,
		runToken:      gen.Generate(),
		rulesHash:     rulesHash,
		engineVersion: ir.EngineVersion,
		clock:         NewClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunToken returns the token this recorder stamps on its rows.
func (r *Recorder) RunToken() string {
	return r.runToken
}

// Record logs one conversion and returns the row as written.
func (r *Recorder) Record(ctx context.Context, dir ir.Direction, in, out *ir.Record, missing []string) (ir.Conversion, error) {
	inputHash, err := ir.RecordHash(orEmpty(in))
	if err != nil {
		return ir.Conversion{}, fmt.Errorf("record conversion: %w", err)
	}

	r.mu.Lock()
	seq := r.clock.Next()
	r.mu.Unlock()

	id, err := ir.ConversionID(r.runToken, seq, string(dir), inputHash)
	if err != nil {
		return ir.Conversion{}, fmt.Errorf("record conversion: %w", err)
	}

	conv := ir.Conversion{
		ID:            id,
		RunToken:      r.runToken,
		Seq:           seq,
		Direction:     dir,
		Input:         in,
		Output:        out,
		Missing:       missing,
		RulesHash:     r.rulesHash,
		EngineVersion: r.engineVersion,
		IRVersion:     ir.IRVersion,
	}
	if err := r.store.WriteConversion(ctx, conv); err != nil {
		return ir.Conversion{}, err
	}
	return conv, nil
}

func orEmpty(r *ir.Record) *ir.Record {
	if r == nil {
		return ir.NewRecord()
	}
	return r
}
