package cli

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/store"
)

const canonicalTitle = `{"title_statement":{"__order__":["title"],"title_added_entry":"No added entry","nonfiling_characters":"4","title":"The nutshell library."}}`

func decodeOne(t *testing.T, out string) *ir.Record {
	t.Helper()
	rec, err := ir.DecodeRecord([]byte(out))
	require.NoError(t, err, "output: %s", out)
	return rec
}

func TestDoFromStdin(t *testing.T) {
	out, _, err := execute(t, titleRecord, "do")
	require.NoError(t, err)

	rec := decodeOne(t, out)
	assert.Equal(t, "12883376", rec.Text("control_number"))
	v, ok := rec.Get("title_statement")
	require.True(t, ok)
	title := v.(*ir.Record)
	assert.Equal(t, "Where the wild things are /", title.Text("title"))
	assert.Equal(t, "Added entry", title.Text("title_added_entry"))
}

func TestDoFromFileLogsMissingKeys(t *testing.T) {
	input := writeFile(t, t.TempDir(), "rec.json", `{"001":"x","999__":{"a":"local"}}`)

	out, stderr, err := execute(t, "", "do", input)
	require.NoError(t, err)

	rec := decodeOne(t, out)
	assert.Equal(t, []string{"control_number"}, rec.Keys())
	assert.Contains(t, stderr, "skipped keys without a rule")
	assert.Contains(t, stderr, "999__")
}

func TestDoStrictFailsOnMissingRule(t *testing.T) {
	out, _, err := execute(t, `{"999__":{"a":"local"}}`, "do", "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E010]")
	assert.Contains(t, out, "MISSING_RULE")
}

func TestDoStrictJSONError(t *testing.T) {
	out, _, err := execute(t, `{"999__":{"a":"local"}}`, "do", "--strict", "--format", "json")
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConversion, resp.Error.Code)
}

func TestDoMARCXMLCollection(t *testing.T) {
	out, _, err := execute(t, "", "do", "--input-format", "marcxml", testMARCXML)
	require.NoError(t, err)

	records, err := ir.DecodeRecords([]byte(out))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "12883376", records[0].Text("control_number"))
	assert.Equal(t, "second", records[1].Text("control_number"))
	assert.True(t, records[0].Has("leader"))
}

func TestDoKeepOrder(t *testing.T) {
	in := `{"001":"1","650_0":{"a":"Monsters"},"500__":{"a":"Note"},"650_0":{"a":"Imagination"}}`
	out, _, err := execute(t, in, "do", "--keep-order")
	require.NoError(t, err)

	rec := decodeOne(t, out)
	order, ok := ir.OrderOf(rec)
	require.True(t, ok, "output: %s", out)
	assert.Len(t, order, 4)
}

func TestDoWithLocalRules(t *testing.T) {
	out, _, err := execute(t, `{"590__":{"a":"Signed by the author."}}`, "do", "--rules", testLocalRules)
	require.NoError(t, err)

	rec := decodeOne(t, out)
	v, ok := rec.Get("local_note")
	require.True(t, ok, "output: %s", out)
	notes := ir.ForceList(v)
	require.Len(t, notes, 1)
	assert.Equal(t, "Signed by the author.", notes[0].(*ir.Record).Text("local_note"))
}

func TestUndoToJSON(t *testing.T) {
	out, _, err := execute(t, canonicalTitle, "undo")
	require.NoError(t, err)

	rec := decodeOne(t, out)
	v, ok := rec.Get("24504")
	require.True(t, ok, "output: %s", out)
	assert.Equal(t, "The nutshell library.", v.(*ir.Record).Text("a"))
}

func TestUndoToMARCXML(t *testing.T) {
	out, _, err := execute(t, canonicalTitle, "undo", "--output-format", "marcxml")
	require.NoError(t, err)

	assert.Contains(t, out, `<datafield tag="245" ind1="0" ind2="4">`)
	assert.Contains(t, out, `<subfield code="a">The nutshell library.</subfield>`)
}

func TestConvertCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		exitCode int
		contains string
	}{
		{
			name:     "no_rules",
			stdin:    titleRecord,
			args:     []string{"do", "--no-builtin"},
			exitCode: ExitCommandError,
			contains: "Error [E001]",
		},
		{
			name:     "rules_not_found",
			stdin:    titleRecord,
			args:     []string{"do", "--rules", "/nonexistent/rules.cue"},
			exitCode: ExitCommandError,
			contains: "Error [E005]",
		},
		{
			name:     "invalid_json",
			stdin:    `{"001":`,
			args:     []string{"do"},
			exitCode: ExitCommandError,
			contains: "Error [E009]",
		},
		{
			name:     "input_not_found",
			args:     []string{"do", "/nonexistent/rec.json"},
			exitCode: ExitCommandError,
			contains: "Error [E005]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestConvertInvalidRecordFormat(t *testing.T) {
	_, _, err := execute(t, titleRecord, "do", "--input-format", "csv")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid input format "csv"`)
}

func TestConvertLogsToDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "log.db")

	_, _, err := execute(t, titleRecord, "do", "--db", dbPath)
	require.NoError(t, err)
	_, _, err = execute(t, canonicalTitle, "undo", "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	tokens, err := st.ListRunTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 2, "one run per invocation")

	all, err := st.ReadAllConversions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, conv := range all {
		assert.Equal(t, int64(1), conv.Seq)
		assert.NotEmpty(t, conv.RulesHash)
	}
}

func TestConvertWithFixedRunToken(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "log.db")
	opts := &ConvertOptions{
		RootOptions:  &RootOptions{Format: "text"},
		DatabasePath: dbPath,
		tokens:       store.NewFixedGenerator("run-fixed"),
	}
	cmd := NewDoCommand(opts.RootOptions)
	cmd.SetIn(strings.NewReader(titleRecord + "\n" + titleRecord))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.NoError(t, runConvert(opts, ir.Forward, "", cmd))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "run-fixed")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, []int64{1, 2}, []int64{run[0].Seq, run[1].Seq})
}

func TestConvertContinuesRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "log.db")

	_, _, err := execute(t, titleRecord, "do", "--db", dbPath, "--run", "batch-7")
	require.NoError(t, err)
	_, _, err = execute(t, `{"control_number":"7"}`, "undo", "--db", dbPath, "--run", "batch-7")
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "batch-7")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, int64(2), run[1].Seq)
	assert.Equal(t, ir.Reverse, run[1].Direction)
}

func TestConvertRunRequiresDB(t *testing.T) {
	_, _, err := execute(t, titleRecord, "do", "--run", "batch-7")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--run requires --db")
}
