package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// MarshalJSON implements json.Marshaler for Record.
//
// Keys are written once each, in order of first appearance. A key with
// several occurrences is written as an array of its values. Interleaving
// between repeated keys is only preserved through OrderKey; call Group
// first when the flat order matters.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, g := range r.Grouped() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(g.Key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", g.Key, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		var v Value
		if len(g.Values) == 1 {
			v = g.Values[0]
		} else {
			v = List(g.Values)
		}
		valBytes, err := MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", g.Key, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
// Uses type-switch dispatch; nil marshals as null.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case Scalar:
		return json.Marshal(string(val))
	case List:
		return marshalList(val)
	case *Record:
		if val == nil {
			return []byte("null"), nil
		}
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

func marshalList(l List) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Record.
// Object key order is kept exactly as written in the document.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := DecodeRecord(data)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

// DecodeRecord decodes one JSON object into a Record, keeping key order.
//
// encoding/json decodes objects into Go maps and loses order, so the
// document is walked with gjson instead.
func DecodeRecord(data []byte) (*Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, fmt.Errorf("expected JSON object, got %s", res.Type)
	}
	return decodeObject(res)
}

// DecodeRecords decodes a document holding several records.
// Accepted shapes: a JSON array of objects, a single object, or JSON
// lines (one object per line).
func DecodeRecords(data []byte) ([]*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if gjson.ValidBytes(trimmed) {
		res := gjson.ParseBytes(trimmed)
		switch {
		case res.IsArray():
			return decodeArrayOfRecords(res)
		case res.IsObject():
			rec, err := decodeObject(res)
			if err != nil {
				return nil, err
			}
			return []*Record{rec}, nil
		default:
			return nil, fmt.Errorf("expected JSON object or array, got %s", res.Type)
		}
	}

	var (
		records []*Record
		lineErr error
		line    int
	)
	gjson.ForEachLine(string(trimmed), func(res gjson.Result) bool {
		line++
		if !gjson.Valid(res.Raw) || !res.IsObject() {
			lineErr = fmt.Errorf("line %d: expected JSON object", line)
			return false
		}
		rec, err := decodeObject(res)
		if err != nil {
			lineErr = fmt.Errorf("line %d: %w", line, err)
			return false
		}
		records = append(records, rec)
		return true
	})
	if lineErr != nil {
		return nil, lineErr
	}
	return records, nil
}

func decodeArrayOfRecords(res gjson.Result) ([]*Record, error) {
	var (
		records []*Record
		err     error
		i       int
	)
	res.ForEach(func(_, elem gjson.Result) bool {
		if !elem.IsObject() {
			err = fmt.Errorf("records[%d]: expected JSON object, got %s", i, elem.Type)
			return false
		}
		var rec *Record
		rec, err = decodeObject(elem)
		if err != nil {
			err = fmt.Errorf("records[%d]: %w", i, err)
			return false
		}
		records = append(records, rec)
		i++
		return true
	})
	return records, err
}

func decodeObject(res gjson.Result) (*Record, error) {
	rec := NewRecord()
	var err error
	res.ForEach(func(key, val gjson.Result) bool {
		var v Value
		v, err = decodeValue(val)
		if err != nil {
			err = fmt.Errorf("key %q: %w", key.String(), err)
			return false
		}
		rec.Add(key.String(), v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// decodeValue maps a gjson result onto the Value union.
// Numbers and booleans become scalars holding their literal text;
// null becomes an absent value.
func decodeValue(res gjson.Result) (Value, error) {
	switch {
	case res.IsObject():
		return decodeObject(res)
	case res.IsArray():
		list := List{}
		var err error
		i := 0
		res.ForEach(func(_, elem gjson.Result) bool {
			var v Value
			v, err = decodeValue(elem)
			if err != nil {
				err = fmt.Errorf("[%d]: %w", i, err)
				return false
			}
			list = append(list, v)
			i++
			return true
		})
		if err != nil {
			return nil, err
		}
		return list, nil
	}

	switch res.Type {
	case gjson.Null:
		return nil, nil
	case gjson.String:
		return Scalar(res.Str), nil
	case gjson.Number, gjson.True, gjson.False:
		return Scalar(res.Raw), nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %q", res.Raw)
	}
}
