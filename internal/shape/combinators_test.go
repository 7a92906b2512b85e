package shape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcshift/internal/ir"
)

// titleFunc maps subfield a to title and b to subtitle, leaving absent
// subfields as absent values.
func titleFunc(_ *Context, _ string, value ir.Value) (ir.Value, error) {
	rec, _ := value.(*ir.Record)
	title, _ := rec.Get("a")
	subtitle, _ := rec.Get("b")
	return ir.NewRecord(
		ir.E("title", title),
		ir.E("subtitle", subtitle),
	), nil
}

func field(entries ...ir.Entry) *ir.Record {
	return ir.NewRecord(entries...)
}

func TestAsForwardSingle(t *testing.T) {
	h := AsForward(titleFunc)

	res, err := h(&Context{}, "245__", field(ir.E("a", ir.Scalar("T"))))
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, res.Mode)
	assert.Equal(t, "T", res.Value.(*ir.Record).Text("title"))
}

func TestForEachAppliesPerOccurrence(t *testing.T) {
	h := ForEach(AsForward(titleFunc))

	occurrences := ir.List{
		field(ir.E("a", ir.Scalar("One"))),
		field(ir.E("a", ir.Scalar("Two")), ir.E("b", ir.Scalar("Sub"))),
		field(ir.E("a", ir.Scalar("Three"))),
	}

	res, err := h(&Context{}, "245__", occurrences)
	require.NoError(t, err)
	assert.Equal(t, ModeEach, res.Mode)

	list := res.Value.(ir.List)
	require.Len(t, list, 3, "N occurrences yield N results")
	assert.Equal(t, "One", list[0].(*ir.Record).Text("title"))
	assert.Equal(t, "Two", list[1].(*ir.Record).Text("title"))
	assert.Equal(t, "Sub", list[1].(*ir.Record).Text("subtitle"))
	assert.Equal(t, "Three", list[2].(*ir.Record).Text("title"))
}

func TestForEachSingleValueIsOneOccurrence(t *testing.T) {
	h := ForEach(AsForward(titleFunc))

	res, err := h(&Context{}, "245__", field(ir.E("a", ir.Scalar("Only"))))
	require.NoError(t, err)
	assert.Equal(t, ModeEach, res.Mode)
	assert.Len(t, res.Value.(ir.List), 1)
}

func TestForEachResultsAreIndependent(t *testing.T) {
	shared := ir.Strings("x")
	h := ForEach(AsForward(func(_ *Context, _ string, value ir.Value) (ir.Value, error) {
		return ir.NewRecord(ir.E("value", value), ir.E("tags", shared)), nil
	}))

	res, err := h(&Context{}, "k", ir.Strings("a", "b"))
	require.NoError(t, err)
	list := res.Value.(ir.List)
	require.Len(t, list, 2)

	list[0].(*ir.Record).Set("value", ir.Scalar("mutated"))
	assert.Equal(t, "b", list[1].(*ir.Record).Text("value"), "mutating one result must not affect another")
}

func TestForEachInputsAreCopies(t *testing.T) {
	input := field(ir.E("a", ir.Scalar("orig")))
	h := ForEach(AsForward(func(_ *Context, _ string, value ir.Value) (ir.Value, error) {
		value.(*ir.Record).Set("a", ir.Scalar("changed"))
		return value, nil
	}))

	_, err := h(&Context{}, "k", ir.List{input})
	require.NoError(t, err)
	assert.Equal(t, "orig", input.Text("a"))
}

func TestForEachSkipDropsOnlyThatOccurrence(t *testing.T) {
	h := ForEach(AsForward(func(_ *Context, _ string, value ir.Value) (ir.Value, error) {
		if s, _ := ir.AsString(value); s == "skip" {
			return nil, ErrSkip
		}
		return value, nil
	}))

	res, err := h(&Context{}, "k", ir.Strings("a", "skip", "c"))
	require.NoError(t, err)
	assert.Equal(t, ir.Strings("a", "c"), res.Value)
}

func TestForEachPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	h := ForEach(AsForward(func(_ *Context, _ string, _ ir.Value) (ir.Value, error) {
		return nil, boom
	}))

	_, err := h(&Context{}, "k", ir.Strings("a"))
	assert.ErrorIs(t, err, boom)
}

func TestForEachAbsentValueHasNoOccurrences(t *testing.T) {
	called := false
	h := ForEach(AsForward(func(_ *Context, _ string, value ir.Value) (ir.Value, error) {
		called = true
		return value, nil
	}))

	res, err := h(&Context{}, "k", nil)
	require.NoError(t, err)
	assert.False(t, called)
	assert.Empty(t, res.Value)
}

func TestDropEmptyPreservesOrder(t *testing.T) {
	h := DropEmpty(AsForward(func(_ *Context, _ string, _ ir.Value) (ir.Value, error) {
		return ir.NewRecord(
			ir.E("z", ir.Scalar("1")),
			ir.E("gone", nil),
			ir.E("m", ir.Scalar("")),
			ir.E("empty_list", ir.List{}),
			ir.E("a", ir.Strings("2")),
			ir.E("empty_rec", ir.NewRecord()),
			ir.E("b", ir.Scalar("3")),
		), nil
	}))

	res, err := h(&Context{}, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "m", "a", "b"}, res.Value.(*ir.Record).OccurrenceKeys())
}

func TestDropEmptyOrderKey(t *testing.T) {
	run := func(order ir.Value) *ir.Record {
		h := DropEmpty(AsForward(func(_ *Context, _ string, _ ir.Value) (ir.Value, error) {
			return ir.NewRecord(ir.E(ir.OrderKey, order), ir.E("title", ir.Scalar("T"))), nil
		}))
		res, err := h(&Context{}, "k", nil)
		require.NoError(t, err)
		return res.Value.(*ir.Record)
	}

	assert.False(t, run(nil).Has(ir.OrderKey), "absent order is dropped")
	assert.True(t, run(ir.List{}).Has(ir.OrderKey), "empty but present order is kept")
}

func TestForEachAndDropEmptyCommute(t *testing.T) {
	occurrences := ir.List{
		field(ir.E("a", ir.Scalar("One"))),
		field(ir.E("b", ir.Scalar("Only sub"))),
	}

	outer, err := DropEmpty(ForEach(AsForward(titleFunc)))(&Context{}, "245__", occurrences)
	require.NoError(t, err)
	inner, err := ForEach(DropEmpty(AsForward(titleFunc)))(&Context{}, "245__", occurrences)
	require.NoError(t, err)

	assert.Equal(t, outer.Mode, inner.Mode)
	assert.True(t, ir.Equal(outer.Value, inner.Value))

	list := inner.Value.(ir.List)
	assert.Equal(t, []string{"title"}, list[0].(*ir.Record).OccurrenceKeys())
	assert.Equal(t, []string{"subtitle"}, list[1].(*ir.Record).OccurrenceKeys())
}

func TestSkippable(t *testing.T) {
	h := Skippable(AsForward(func(_ *Context, _ string, _ ir.Value) (ir.Value, error) {
		return nil, ErrSkip
	}))

	res, err := h(&Context{}, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, ModeSkip, res.Mode)
}

func TestSkippableLeavesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	h := Skippable(AsForward(func(_ *Context, _ string, _ ir.Value) (ir.Value, error) {
		return nil, boom
	}))

	_, err := h(&Context{}, "k", nil)
	assert.ErrorIs(t, err, boom)
}

func TestIgnoreEmpty(t *testing.T) {
	h := IgnoreEmpty(DropEmpty(AsForward(func(_ *Context, _ string, _ ir.Value) (ir.Value, error) {
		return ir.NewRecord(ir.E("title", nil)), nil
	})))

	res, err := h(&Context{}, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, ModeSkip, res.Mode)
}

func TestForceListNormalizesInput(t *testing.T) {
	var seen ir.Value
	h := ForceList(AsReverse(func(_ *Context, _ string, value ir.Value) (ir.Value, error) {
		seen = value
		return value, nil
	}))

	_, err := h(&Context{}, "k", ir.Scalar("x"))
	require.NoError(t, err)
	assert.Equal(t, ir.Strings("x"), seen)

	_, err = h(&Context{}, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.List{}, seen)
}

func TestReverseForEachFansOut(t *testing.T) {
	h := ReverseForEach(AsReverse(func(_ *Context, _ string, value ir.Value) (ir.Value, error) {
		rec := value.(*ir.Record)
		return ir.NewRecord(ir.E("a", ir.Scalar(rec.Text("title")))), nil
	}))

	res, err := h(&Context{}, "title_statement", ir.List{
		ir.NewRecord(ir.E("title", ir.Scalar("One"))),
		ir.NewRecord(ir.E("title", ir.Scalar("Two"))),
	})
	require.NoError(t, err)
	assert.Equal(t, ModeEach, res.Mode)
	list := res.Value.(ir.List)
	require.Len(t, list, 2)
	assert.Equal(t, "Two", list[1].(*ir.Record).Text("a"))
}

func TestMapOrder(t *testing.T) {
	codes := map[string]string{"a": "title", "b": "subtitle"}

	flat := field(ir.E("b", ir.Scalar("s")), ir.E("6", ir.Scalar("x")), ir.E("a", ir.Scalar("t")))
	assert.Equal(t, ir.Strings("subtitle", "title"), MapOrder(codes, flat))

	grouped := ir.NewRecord(ir.E(ir.OrderKey, ir.Strings("a", "b", "a")), ir.E("a", ir.Strings("1", "2")))
	assert.Equal(t, ir.Strings("title", "subtitle", "title"), MapOrder(codes, grouped))

	assert.Equal(t, ir.List{}, MapOrder(codes, nil))
	assert.Nil(t, OrderOrAbsent(ir.List{}))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "single", ModeSingle.String())
	assert.Equal(t, "each", ModeEach.String())
	assert.Equal(t, "skip", ModeSkip.String())
}
