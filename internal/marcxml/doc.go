// Package marcxml reads and writes MARCXML (MARC 21 slim) documents as
// raw records.
//
// A raw record holds one occurrence per field, in document order:
//
//	leader        -> "leader": scalar
//	controlfield  -> tag: scalar
//	datafield     -> tag+ind1+ind2: record of subfield code -> scalar
//
// Blank indicators are written "_" in keys, so <datafield tag="650"
// ind1=" " ind2="0"> becomes key "650_0". Subfields keep their order and
// repeats. This is the shape the built-in MARC 21 rules consume with Do
// and produce with Undo.
//
// Decoder streams: it holds one record in memory at a time.
package marcxml
