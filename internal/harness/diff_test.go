package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/marcshift/internal/ir"
)

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff(`{"a":"1"}`, `{"a":"1"}`))
	assert.Equal(t, `{"a":"[-1-]{+2+}"}`, Diff(`{"a":"1"}`, `{"a":"2"}`))
	assert.Equal(t, `{"a":"1"{+,"b":"2"+}}`, Diff(`{"a":"1"}`, `{"a":"1","b":"2"}`))
}

func TestDiffRecords(t *testing.T) {
	a := ir.NewRecord(ir.E("001", ir.Scalar("1")), ir.E("24510", ir.NewRecord(ir.E("a", ir.Scalar("Title")))))
	assert.Empty(t, DiffRecords(a, a.Clone()))

	b := ir.NewRecord(ir.E("001", ir.Scalar("1")), ir.E("24510", ir.NewRecord(ir.E("a", ir.Scalar("Titles")))))
	assert.Equal(t, `{"001":"1","24510":{"a":"Title{+s+}"}}`, DiffRecords(a, b))
}
