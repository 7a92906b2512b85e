package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/marcshift/internal/ir"
	"github.com/roach88/marcshift/internal/marcxml"
)

// Record formats accepted by --input-format and --output-format.
const (
	RecordFormatJSON    = "json"
	RecordFormatMARCXML = "marcxml"
)

// ValidRecordFormats lists the record formats.
var ValidRecordFormats = []string{RecordFormatJSON, RecordFormatMARCXML}

func checkRecordFormat(flag, format string) error {
	if !slices.Contains(ValidRecordFormats, format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid %s %q: must be one of %v", flag, format, ValidRecordFormats))
	}
	return nil
}

// openInput opens path for reading. An empty path or "-" reads the
// command's stdin.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

// readRecords reads every record from r. JSON input may be one object,
// an array of objects, or one object per line.
func readRecords(r io.Reader, format string) ([]*ir.Record, error) {
	switch format {
	case RecordFormatMARCXML:
		return marcxml.DecodeAll(r)
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return ir.DecodeRecords(data)
	}
}

// loadRecords opens path and reads its records, reporting failures as
// invalid input.
func loadRecords(cmd *cobra.Command, f *OutputFormatter, path, format string) ([]*ir.Record, error) {
	in, err := openInput(cmd, path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("opening input: %v", err), nil)
	}
	defer in.Close()

	records, err := readRecords(in, format)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("reading %s input: %v", format, err), nil)
	}
	return records, nil
}

// writeRecords writes records to w. JSON output is the canonical form,
// indented: a single object for one record, an array otherwise.
func writeRecords(w io.Writer, records []*ir.Record, format string) error {
	if format == RecordFormatMARCXML {
		return marcxml.EncodeAll(w, records, marcxml.WithIndent("  "))
	}

	var v ir.Value
	if len(records) == 1 {
		v = records[0]
	} else {
		list := make(ir.List, len(records))
		for i, r := range records {
			list[i] = r
		}
		v = list
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}
