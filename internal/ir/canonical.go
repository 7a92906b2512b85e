package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for hashing and replay
// comparison.
//
// Key differences from MarshalJSON:
// 1. A record that repeats a key and carries no OrderKey is written in
//    grouped form (Group), so the bytes pin every occurrence and its
//    position; records without repeats are written as they are
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Strings are NFC normalized
// 4. Absent values are written as null
//
// Key order is NOT sorted: in a record, order is content.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case Scalar:
		s, err := marshalCanonicalString(string(val))
		if err != nil {
			return err
		}
		buf.Write(s)
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case *Record:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		if needsOrder(val) {
			val = Group(val)
		}
		buf.WriteByte('{')
		for i, g := range val.Grouped() {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := marshalCanonicalString(g.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			var gv Value = List(g.Values)
			if len(g.Values) == 1 {
				gv = g.Values[0]
			}
			if err := writeCanonical(buf, gv); err != nil {
				return fmt.Errorf("key %q: %w", g.Key, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// needsOrder reports whether a record's flat order is lost without an
// OrderKey, which is the case once a key repeats.
func needsOrder(r *Record) bool {
	return !r.Has(OrderKey) && len(r.Keys()) < r.Len()
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization. Only control characters, backslash, and quote are
// escaped; U+2028 and U+2029 are written literally.
func marshalCanonicalString(s string) ([]byte, error) {
	// NFC normalize at serialization boundary
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators converts U+2028 and U+2029 escapes produced by
// encoding/json back to literal characters. An escape preceded by an odd
// run of backslashes is literal text in the source and stays.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') && precedingBackslashes(out)%2 == 0 {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func precedingBackslashes(b []byte) int {
	n := 0
	for j := len(b) - 1; j >= 0 && b[j] == '\\'; j-- {
		n++
	}
	return n
}
