package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// LineReader provides sequential access to the documents of a JSON Lines
// stream.
type LineReader struct {
	reader *bufio.Reader
	doc    *Document
	raw    []byte
	line   int
	err    error
}

// NewLineReader creates a reader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{reader: bufio.NewReader(r)}
}

// Next advances to the next non-empty line. It returns false at the end of
// the stream or on the first malformed line; check Err afterwards.
func (r *LineReader) Next() bool {
	if r.err != nil {
		return false
	}
	for {
		raw, err := r.reader.ReadBytes('\n')
		if len(raw) > 0 {
			r.line++
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				doc, perr := ParseDocument(trimmed)
				if perr != nil {
					r.err = fmt.Errorf("line %d: %w", r.line, perr)
					return false
				}
				r.doc = doc
				r.raw = trimmed
				return true
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return false
		}
	}
}

// Document returns the document read by the last successful Next.
func (r *LineReader) Document() *Document {
	return r.doc
}

// Bytes returns the line read by the last successful Next without
// surrounding whitespace or its terminator.
func (r *LineReader) Bytes() []byte {
	return r.raw
}

// Line returns the 1-based number of the last line consumed.
func (r *LineReader) Line() int {
	return r.line
}

// Err returns the first non-EOF error encountered.
func (r *LineReader) Err() error {
	return r.err
}

// ReadAll collects every remaining document.
func (r *LineReader) ReadAll() ([]*Document, error) {
	var docs []*Document
	for r.Next() {
		docs = append(docs, r.Document())
	}
	return docs, r.Err()
}

// CopyLines copies the JSON Lines stream in src to dst, checking that every
// line holds a JSON object. Blank lines are dropped. It returns the number of
// lines written.
func CopyLines(dst io.Writer, src io.Reader) (int, error) {
	r := NewLineReader(src)
	n := 0
	for r.Next() {
		line := append(r.Bytes(), '\n')
		if _, err := dst.Write(line); err != nil {
			return n, fmt.Errorf("line %d: %w", r.Line(), err)
		}
		n++
	}
	return n, r.Err()
}
