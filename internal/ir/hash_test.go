package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHashDeterminism(t *testing.T) {
	rec := NewRecord(E("001", Scalar("123")), E("245__", NewRecord(E("a", Scalar("Title")))))

	h1, err := RecordHash(rec)
	require.NoError(t, err)
	h2, err := RecordHash(rec.Clone())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "RecordHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestRecordHashOrderSensitive(t *testing.T) {
	a := NewRecord(E("a", Scalar("1")), E("b", Scalar("2")))
	b := NewRecord(E("b", Scalar("2")), E("a", Scalar("1")))

	ha, err := RecordHash(a)
	require.NoError(t, err)
	hb, err := RecordHash(b)
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestConversionIDChangesWithInput(t *testing.T) {
	id1, err := ConversionID("run-1", 1, "do", "hash-a")
	require.NoError(t, err)
	id2, err := ConversionID("run-2", 1, "do", "hash-a")
	require.NoError(t, err)
	id3, err := ConversionID("run-1", 2, "do", "hash-a")
	require.NoError(t, err)
	id4, err := ConversionID("run-1", 1, "undo", "hash-a")
	require.NoError(t, err)
	again, err := ConversionID("run-1", 1, "do", "hash-a")
	require.NoError(t, err)

	assert.Equal(t, id1, again)
	assert.NotEqual(t, id1, id2, "different run token")
	assert.NotEqual(t, id1, id3, "different seq")
	assert.NotEqual(t, id1, id4, "different direction")
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{"a":"1"}`)
	assert.NotEqual(t, hashWithDomain(DomainRecord, data), hashWithDomain(DomainConversion, data))
}

func TestRuleSetHash(t *testing.T) {
	specs := []FieldSpec{{Name: "general_note", Tag: "500", Subfields: []SubfieldSpec{{Code: "a", Name: "general_note"}}}}

	local, err := RuleSetHash(specs, false)
	require.NoError(t, err)
	withBuiltin, err := RuleSetHash(specs, true)
	require.NoError(t, err)
	again, err := RuleSetHash(specs, false)
	require.NoError(t, err)

	assert.Equal(t, local, again)
	assert.NotEqual(t, local, withBuiltin, "built-in rules change the rule set")

	empty, err := RuleSetHash(nil, false)
	require.NoError(t, err)
	emptySlice, err := RuleSetHash([]FieldSpec{}, false)
	require.NoError(t, err)
	assert.Equal(t, empty, emptySlice)

	reordered := append([]FieldSpec{{Name: "x", Tag: "590"}}, specs...)
	other, err := RuleSetHash(reordered, false)
	require.NoError(t, err)
	assert.NotEqual(t, local, other)
}
