// Package codec provides the JSON Lines encoding used by jsonlbuf buffers.
//
// The codec package owns the on-disk contract that downstream bulk loaders
// read byte-for-byte: one compact JSON object per line, UTF-8, terminated by
// a single '\n'. Everything above this package (normalization, compression,
// buffering) only ever hands it a Document.
//
// # Line Format
//
// Each serialized line has the shape:
//
//	{"<key>":<value>,"<key>":<value>,...}\n
//
// Keys are written in insertion order. Values are stored as already-encoded
// JSON and are emitted verbatim once compacted, so a value never carries an
// insignificant newline and a line always holds exactly one record.
//
// # Documents
//
// A Document is an insertion-ordered JSON object whose values are raw JSON
// (json.RawMessage). Setting an existing key replaces the value in place and
// keeps the original position, which mirrors how the ingestion protocol merges
// flattened fields over reserved columns.
//
// # JSON Capability
//
// Encoding and decoding go through the JSON interface rather than a process
// wide codec. StdJSON is the default implementation; it disables HTML
// escaping and decodes numbers as json.Number so integers survive a round
// trip unchanged.
//
// # Usage
//
//	serializer := codec.NewLineSerializer(nil)
//
//	doc := codec.NewDocument()
//	doc.Set("a", json.RawMessage(`1`))
//
//	line, err := serializer.Serialize(doc)
//	if err != nil {
//	    return err
//	}
//	// line == []byte("{\"a\":1}\n")
//
// Reading a JSON Lines stream back:
//
//	reader := codec.NewLineReader(r)
//	for reader.Next() {
//	    doc := reader.Document()
//	    ...
//	}
//	if err := reader.Err(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// StdJSON and LineSerializer are stateless and safe for concurrent use.
// Documents are not; a Document belongs to the goroutine that built it.
package codec
