package marcxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/marcshift/internal/ir"
)

// Namespace is the MARC 21 slim namespace written on <collection>.
const Namespace = "http://www.loc.gov/MARC21/slim"

// LeaderKey is the raw key the leader is stored under.
const LeaderKey = "leader"

// ErrInvalidField is returned by Encode for an entry that has no MARCXML
// form.
var ErrInvalidField = errors.New("marcxml: field cannot be encoded")

type xmlRecord struct {
	Elements []xmlElement `xml:",any"`
}

type xmlElement struct {
	XMLName   xml.Name
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
	Text      string        `xml:",chardata"`
}

type xmlSubfield struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

// Decoder reads raw records from a MARCXML stream.
type Decoder struct {
	xd    *xml.Decoder
	count int
}

// NewDecoder returns a decoder reading from r. The document may hold a
// <collection> of records or a single bare <record>.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{xd: xml.NewDecoder(r)}
}

// Next returns the next record in the stream, or io.EOF when none remain.
func (d *Decoder) Next() (*ir.Record, error) {
	for {
		tok, err := d.xd.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("marcxml: record %d: %w", d.count+1, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}

		d.count++
		var raw xmlRecord
		if err := d.xd.DecodeElement(&raw, &start); err != nil {
			return nil, fmt.Errorf("marcxml: record %d: %w", d.count, err)
		}
		return raw.toRecord(), nil
	}
}

// DecodeAll reads every record in r.
func DecodeAll(r io.Reader) ([]*ir.Record, error) {
	d := NewDecoder(r)
	var records []*ir.Record
	for {
		rec, err := d.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

func (x xmlRecord) toRecord() *ir.Record {
	rec := ir.NewRecord()
	for _, el := range x.Elements {
		switch el.XMLName.Local {
		case "leader":
			rec.Add(LeaderKey, ir.Scalar(el.Text))
		case "controlfield":
			rec.Add(el.Tag, ir.Scalar(el.Text))
		case "datafield":
			body := ir.NewRecord()
			for _, sf := range el.Subfields {
				body.Add(sf.Code, ir.Scalar(sf.Text))
			}
			rec.Add(el.Tag+keyIndicator(el.Ind1)+keyIndicator(el.Ind2), body)
		}
	}
	return rec
}

func keyIndicator(s string) string {
	if strings.TrimSpace(s) == "" {
		return ir.BlankModifier
	}
	return s
}

func xmlIndicator(s string) string {
	if s == ir.BlankModifier {
		return " "
	}
	return s
}

// Encoder writes raw records as a MARCXML <collection>.
type Encoder struct {
	xe      *xml.Encoder
	started bool
	closed  bool
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithIndent indents the output, one level per nesting depth.
func WithIndent(indent string) EncoderOption {
	return func(e *Encoder) {
		e.xe.Indent("", indent)
	}
}

// NewEncoder returns an encoder writing to w. Close must be called to
// finish the document.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{xe: xml.NewEncoder(w)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode writes one record. The record may be flat or grouped; it is
// expanded before writing.
//
// Keys map back to elements as Decoder reads them: "leader", a
// three-character tag with a scalar (control field), or a tag with or
// without two indicator characters holding a record (data field). Any
// other entry fails with ErrInvalidField and nothing of the record is
// written.
func (e *Encoder) Encode(rec *ir.Record) error {
	if e.closed {
		return errors.New("marcxml: encode after close")
	}
	tokens, err := recordTokens(ir.ExpandAll(rec))
	if err != nil {
		return err
	}
	if !e.started {
		e.started = true
		tokens = append([]xml.Token{start("collection", xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: Namespace})}, tokens...)
	}
	for _, tok := range tokens {
		if err := e.xe.EncodeToken(tok); err != nil {
			return fmt.Errorf("marcxml: %w", err)
		}
	}
	return e.xe.Flush()
}

// Close ends the collection. An encoder that wrote no record writes an
// empty collection.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if !e.started {
		e.started = true
		if err := e.xe.EncodeToken(start("collection", xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: Namespace})); err != nil {
			return fmt.Errorf("marcxml: %w", err)
		}
	}
	if err := e.xe.EncodeToken(xml.EndElement{Name: xml.Name{Local: "collection"}}); err != nil {
		return fmt.Errorf("marcxml: %w", err)
	}
	return e.xe.Flush()
}

// EncodeAll writes records as one complete document.
func EncodeAll(w io.Writer, records []*ir.Record, opts ...EncoderOption) error {
	enc := NewEncoder(w, opts...)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return enc.Close()
}

func recordTokens(rec *ir.Record) ([]xml.Token, error) {
	tokens := []xml.Token{start("record")}
	for _, entry := range rec.Entries() {
		if entry.Key == ir.OrderKey {
			continue
		}
		els, err := fieldTokens(entry.Key, entry.Value)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, els...)
	}
	return append(tokens, end("record")), nil
}

func fieldTokens(key string, v ir.Value) ([]xml.Token, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case ir.List:
		var tokens []xml.Token
		for _, elem := range val {
			els, err := fieldTokens(key, elem)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, els...)
		}
		return tokens, nil
	case ir.Scalar:
		switch {
		case key == LeaderKey:
			return text(start("leader"), string(val)), nil
		case len(key) == 3:
			return text(start("controlfield", attr("tag", key)), string(val)), nil
		}
	case *ir.Record:
		switch len(key) {
		case 3:
			return dataField(key, " ", " ", val)
		case 5:
			return dataField(key[:3], xmlIndicator(key[3:4]), xmlIndicator(key[4:5]), val)
		}
	}
	return nil, fmt.Errorf("%w: key %q holding %T", ErrInvalidField, key, v)
}

func dataField(tag, ind1, ind2 string, body *ir.Record) ([]xml.Token, error) {
	tokens := []xml.Token{start("datafield", attr("tag", tag), attr("ind1", ind1), attr("ind2", ind2))}
	for _, sf := range body.Entries() {
		if sf.Key == ir.OrderKey {
			continue
		}
		for _, s := range ir.StringsOf(sf.Value) {
			tokens = append(tokens, text(start("subfield", attr("code", sf.Key)), s)...)
		}
		if _, isRec := sf.Value.(*ir.Record); isRec {
			return nil, fmt.Errorf("%w: subfield %q of %s is a record", ErrInvalidField, sf.Key, tag)
		}
	}
	return append(tokens, end("datafield")), nil
}

func start(name string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}

func end(name string) xml.EndElement {
	return xml.EndElement{Name: xml.Name{Local: name}}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func text(s xml.StartElement, body string) []xml.Token {
	return []xml.Token{s, xml.CharData(body), s.End()}
}
