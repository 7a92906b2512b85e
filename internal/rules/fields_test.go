package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcshift/internal/engine"
	"github.com/roach88/marcshift/internal/ir"
)

var titleSpec = ir.FieldSpec{
	Name: "title_statement",
	Tag:  "245",
	Subfields: []ir.SubfieldSpec{
		{Code: "a", Name: "title"},
		{Code: "b", Name: "remainder_of_title"},
		{Code: "c", Name: "statement_of_responsibility"},
		{Code: "n", Name: "number_of_part", Repeatable: true},
	},
	Indicators: []ir.IndicatorSpec{
		{Position: 1, Name: "title_added_entry", Values: []ir.IndicatorValue{
			{Code: "0", Label: "No added entry"},
			{Code: "1", Label: "Added entry"},
		}},
		{Position: 2, Name: "nonfiling_characters"},
	},
}

var subjectSpec = ir.FieldSpec{
	Name:       "subject_added_entry_topical_term",
	Tag:        "650",
	Repeatable: true,
	Subfields: []ir.SubfieldSpec{
		{Code: "a", Name: "topical_term"},
		{Code: "x", Name: "general_subdivision", Repeatable: true},
	},
	Indicators: []ir.IndicatorSpec{
		{Position: 2, Name: "thesaurus", Values: []ir.IndicatorValue{
			{Code: "0", Label: "Library of Congress Subject Headings"},
		}},
	},
}

var controlSpec = ir.FieldSpec{Name: "control_number", Tag: "001", Control: true}

func newEngine(t *testing.T, specs ...ir.FieldSpec) *engine.Engine {
	t.Helper()
	e := engine.New()
	require.NoError(t, Install(e, specs...))
	return e
}

func sub(entries ...ir.Entry) *ir.Record {
	return ir.NewRecord(entries...)
}

func TestInstallForwardDataField(t *testing.T) {
	e := newEngine(t, titleSpec)

	in := ir.NewRecord(ir.E("24514", sub(
		ir.E("a", ir.Scalar("The cats")),
		ir.E("c", ir.Scalar("by Tom")),
	)))

	out, err := e.Do(in)
	require.NoError(t, err)

	v, ok := out.Get("title_statement")
	require.True(t, ok)
	title := v.(*ir.Record)

	assert.Equal(t, []string{ir.OrderKey, "title_added_entry", "nonfiling_characters", "title", "statement_of_responsibility"}, title.Keys())
	assert.Equal(t, "Added entry", title.Text("title_added_entry"))
	assert.Equal(t, "4", title.Text("nonfiling_characters"), "unlabelled indicators carry the raw code")
	assert.Equal(t, "The cats", title.Text("title"))

	order, _ := ir.OrderOf(title)
	assert.Equal(t, []string{"title", "statement_of_responsibility"}, order)
}

func TestInstallForwardRepeatedSubfields(t *testing.T) {
	e := newEngine(t, titleSpec)

	in := ir.NewRecord(ir.E("24500", sub(
		ir.E("a", ir.Scalar("Part")),
		ir.E("n", ir.Scalar("1")),
		ir.E("a", ir.Scalar("Again")),
	)))
	out, err := e.Do(in)
	require.NoError(t, err)

	title := mustRecord(t, out, "title_statement")
	assert.Equal(t, ir.Strings("Part", "Again"), mustGet(t, title, "title"), "a repeated non-repeatable subfield keeps every value")
	assert.Equal(t, ir.Strings("1"), mustGet(t, title, "number_of_part"), "repeatable subfields are always lists")

	order, _ := ir.OrderOf(title)
	assert.Equal(t, []string{"title", "number_of_part", "title"}, order)
}

func TestInstallForwardBlankIndicatorsAreAbsent(t *testing.T) {
	e := newEngine(t, titleSpec)

	out, err := e.Do(ir.NewRecord(ir.E("245__", sub(ir.E("a", ir.Scalar("T"))))))
	require.NoError(t, err)

	title := mustRecord(t, out, "title_statement")
	assert.False(t, title.Has("title_added_entry"))
	assert.False(t, title.Has("nonfiling_characters"))
}

func TestInstallForwardLabelledBlankIndicator(t *testing.T) {
	spec := ir.FieldSpec{
		Name: "edition_statement",
		Tag:  "250",
		Subfields: []ir.SubfieldSpec{
			{Code: "a", Name: "edition_statement"},
		},
		Indicators: []ir.IndicatorSpec{
			{Position: 1, Name: "kind", Values: []ir.IndicatorValue{{Code: "_", Label: "Undefined"}}},
		},
	}
	e := newEngine(t, spec)

	in := ir.NewRecord(ir.E("250__", sub(ir.E("a", ir.Scalar("2nd ed.")))))
	out, err := e.Do(in)
	require.NoError(t, err)
	assert.Equal(t, "Undefined", mustRecord(t, out, "edition_statement").Text("kind"))

	back, err := e.Undo(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"250__"}, back.OccurrenceKeys())
}

func TestInstallForwardRepeatableField(t *testing.T) {
	e := newEngine(t, subjectSpec)

	in := ir.NewRecord(
		ir.E("650_0", sub(ir.E("a", ir.Scalar("Cats")))),
		ir.E("650_0", sub(ir.E("a", ir.Scalar("Dogs")), ir.E("x", ir.Scalar("History")))),
	)
	out, err := e.Do(in)
	require.NoError(t, err)

	list, ok := mustGet(t, out, "subject_added_entry_topical_term").(ir.List)
	require.True(t, ok)
	require.Len(t, list, 2)

	first := list[0].(*ir.Record)
	assert.Equal(t, "Cats", first.Text("topical_term"))
	assert.Equal(t, "Library of Congress Subject Headings", first.Text("thesaurus"))
	assert.False(t, first.Has("general_subdivision"), "empty repeatable subfields are dropped")

	second := list[1].(*ir.Record)
	assert.Equal(t, ir.Strings("History"), mustGet(t, second, "general_subdivision"))
}

func TestInstallForwardSkipsFieldWithoutDeclaredSubfields(t *testing.T) {
	e := newEngine(t, subjectSpec)

	in := ir.NewRecord(
		ir.E("650_0", sub(ir.E("9", ir.Scalar("local")))),
		ir.E("650_0", sub(ir.E("a", ir.Scalar("Dogs")))),
	)
	out, err := e.Do(in)
	require.NoError(t, err)

	list := mustGet(t, out, "subject_added_entry_topical_term").(ir.List)
	require.Len(t, list, 1)
	assert.Equal(t, "Dogs", list[0].(*ir.Record).Text("topical_term"))
}

func TestInstallForwardMalformedField(t *testing.T) {
	e := newEngine(t, titleSpec, controlSpec)

	_, err := e.Do(ir.NewRecord(ir.E("24500", ir.Scalar("not a field"))))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedField)
	assert.True(t, engine.IsHandlerError(err))

	_, err = e.Do(ir.NewRecord(ir.E("001", sub(ir.E("a", ir.Scalar("x"))))))
	assert.ErrorIs(t, err, ErrMalformedField)
}

func TestInstallControlField(t *testing.T) {
	e := newEngine(t, controlSpec)

	out, err := e.Do(ir.NewRecord(ir.E("001", ir.Scalar("ocm123"))))
	require.NoError(t, err)
	assert.Equal(t, "ocm123", out.Text("control_number"))

	_, ok := e.Match(ir.Forward, "0011")
	assert.False(t, ok, "control field patterns take no indicators")
}

func TestInstallExplicitPattern(t *testing.T) {
	spec := titleSpec
	spec.Pattern = "245[01]."
	e := newEngine(t, spec)

	_, ok := e.Match(ir.Forward, "24510")
	assert.True(t, ok)
	_, ok = e.Match(ir.Forward, "24520")
	assert.False(t, ok)
}

func TestInstallReverse(t *testing.T) {
	e := newEngine(t, titleSpec)

	canonical := ir.NewRecord(ir.E("title_statement", ir.NewRecord(
		ir.E("title_added_entry", ir.Scalar("No added entry")),
		ir.E("title", ir.Scalar("T")),
		ir.E("number_of_part", ir.Strings("2")),
	)))

	raw, err := e.Undo(canonical)
	require.NoError(t, err)
	require.Equal(t, []string{"2450_"}, raw.OccurrenceKeys())

	f := raw.Entries()[0].Value.(*ir.Record)
	assert.Equal(t, []string{"a", "n"}, f.OccurrenceKeys())
	assert.Equal(t, "2", f.Text("n"), "one-element lists collapse to a single subfield")
}

func TestInstallReverseFansOutLists(t *testing.T) {
	e := newEngine(t, titleSpec)

	canonical := ir.NewRecord(ir.E("title_statement", ir.NewList(
		ir.NewRecord(ir.E("title", ir.Scalar("One"))),
		ir.NewRecord(ir.E("title", ir.Scalar("Two"))),
	)))
	raw, err := e.Undo(canonical)
	require.NoError(t, err)
	assert.Equal(t, []string{"245__", "245__"}, raw.OccurrenceKeys())
}

func TestInstallReverseMalformed(t *testing.T) {
	e := newEngine(t, titleSpec)
	_, err := e.Undo(ir.NewRecord(ir.E("title_statement", ir.Scalar("bare"))))
	assert.ErrorIs(t, err, ErrMalformedField)
}

func TestInstallRoundTrip(t *testing.T) {
	e := newEngine(t, controlSpec, titleSpec, subjectSpec)

	raw := ir.NewRecord(
		ir.E("001", ir.Scalar("42")),
		ir.E("650_0", sub(
			ir.E("a", ir.Scalar("Cats")),
			ir.E("x", ir.Scalar("Behavior")),
			ir.E("x", ir.Scalar("History")),
		)),
		ir.E("24514", sub(
			ir.E("a", ir.Scalar("The cats")),
			ir.E("n", ir.Scalar("1")),
			ir.E("c", ir.Scalar("by Tom")),
			ir.E("n", ir.Scalar("2")),
		)),
		ir.E("650_0", sub(ir.E("a", ir.Scalar("Dogs")))),
	)

	canonical, err := e.Do(raw, engine.WithOrder(true))
	require.NoError(t, err)

	back, err := e.Undo(canonical)
	require.NoError(t, err)
	assert.True(t, raw.Equal(back), "round trip changed the record:\nwant %v\ngot  %v", raw.OccurrenceKeys(), back.OccurrenceKeys())
}

func TestInstallRoundTripThroughJSON(t *testing.T) {
	e := newEngine(t, controlSpec, titleSpec, subjectSpec)

	raw := ir.NewRecord(
		ir.E("001", ir.Scalar("42")),
		ir.E("650_0", sub(ir.E("a", ir.Scalar("Cats")))),
		ir.E("24500", sub(ir.E("a", ir.Scalar("T")), ir.E("b", ir.Scalar("sub")))),
		ir.E("650_0", sub(ir.E("a", ir.Scalar("Dogs")))),
	)

	canonical, err := e.Do(raw, engine.WithOrder(true))
	require.NoError(t, err)

	data, err := canonical.MarshalJSON()
	require.NoError(t, err)
	decoded, err := ir.DecodeRecord(data)
	require.NoError(t, err)

	back, err := e.Undo(decoded)
	require.NoError(t, err)
	assert.True(t, raw.Equal(back))
}

func TestInstallCarriesUndeclaredIndicators(t *testing.T) {
	spec := ir.FieldSpec{
		Name:      "main_entry_personal_name",
		Tag:       "100",
		Subfields: []ir.SubfieldSpec{{Code: "a", Name: "personal_name"}},
		Indicators: []ir.IndicatorSpec{
			{Position: 1, Name: "type_of_personal_name_entry_element"},
		},
	}
	e := newEngine(t, spec)

	raw := ir.NewRecord(ir.E("10021", sub(ir.E("a", ir.Scalar("Sendak, Maurice")))))
	canonical, err := e.Do(raw)
	require.NoError(t, err)

	name := mustRecord(t, canonical, "main_entry_personal_name")
	assert.Equal(t, "2", name.Text("type_of_personal_name_entry_element"))
	assert.Equal(t, "1", name.Text(ir.Ind2Key), "an undeclared indicator rides along under its modifier key")

	back, err := e.Undo(canonical)
	require.NoError(t, err)
	assert.True(t, raw.Equal(back), "got %v", back.OccurrenceKeys())

	blank, err := e.Do(ir.NewRecord(ir.E("1002_", sub(ir.E("a", ir.Scalar("x"))))))
	require.NoError(t, err)
	assert.False(t, mustRecord(t, blank, "main_entry_personal_name").Has(ir.Ind2Key))
}

func TestInstallRejectsDuplicateNames(t *testing.T) {
	other := ir.FieldSpec{Name: "title_statement", Tag: "246", Subfields: []ir.SubfieldSpec{{Code: "a", Name: "title"}}}

	err := Install(engine.New(), titleSpec, other)
	assert.ErrorIs(t, err, ErrDuplicateField)

	e := newEngine(t, titleSpec)
	assert.ErrorIs(t, Install(e, other), ErrDuplicateField, "names are unique across Install calls")

	name, ok := e.Match(ir.Reverse, "title_statement")
	require.True(t, ok)
	assert.Equal(t, "245", name)
}

func TestInstallRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec ir.FieldSpec
	}{
		{"no name", ir.FieldSpec{Tag: "245"}},
		{"no tag", ir.FieldSpec{Name: "x"}},
		{"duplicate code", ir.FieldSpec{Name: "x", Tag: "245", Subfields: []ir.SubfieldSpec{{Code: "a", Name: "one"}, {Code: "a", Name: "two"}}}},
		{"duplicate name", ir.FieldSpec{Name: "x", Tag: "245", Subfields: []ir.SubfieldSpec{{Code: "a", Name: "one"}, {Code: "b", Name: "one"}}}},
		{"bad indicator", ir.FieldSpec{Name: "x", Tag: "245", Indicators: []ir.IndicatorSpec{{Position: 3, Name: "i"}}}},
		{"control with subfields", ir.FieldSpec{Name: "x", Tag: "001", Control: true, Subfields: []ir.SubfieldSpec{{Code: "a", Name: "one"}}}},
		{"bad pattern", ir.FieldSpec{Name: "x", Tag: "245", Pattern: "245["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Install(engine.New(), tt.spec))
		})
	}
}

func TestInstallEarlierSpecWins(t *testing.T) {
	local := ir.FieldSpec{Name: "local_title", Tag: "245", Pattern: "2451.", Subfields: []ir.SubfieldSpec{{Code: "a", Name: "title"}}}
	e := newEngine(t, local, titleSpec)

	name, ok := e.Match(ir.Forward, "24510")
	require.True(t, ok)
	assert.Equal(t, "local_title", name)

	name, ok = e.Match(ir.Forward, "24500")
	require.True(t, ok)
	assert.Equal(t, "title_statement", name)
}

func mustGet(t *testing.T, r *ir.Record, key string) ir.Value {
	t.Helper()
	v, ok := r.Get(key)
	require.True(t, ok, "missing key %q", key)
	return v
}

func mustRecord(t *testing.T, r *ir.Record, key string) *ir.Record {
	t.Helper()
	rec, ok := mustGet(t, r, key).(*ir.Record)
	require.True(t, ok, "key %q is not a record", key)
	return rec
}
