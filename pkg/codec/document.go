package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNotObject is returned when a document is decoded from JSON that is not
// an object.
var ErrNotObject = errors.New("codec: JSON value is not an object")

// Document is an insertion-ordered JSON object with raw JSON values.
type Document struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{fields: orderedmap.New[string, json.RawMessage]()}
}

// ParseDocument decodes a JSON object, keeping the field order of data.
// A literal null decodes to an empty document.
func ParseDocument(data []byte) (*Document, error) {
	d := NewDocument()
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return d, nil
}

// Set stores value under key. An existing key keeps its position and
// replaced reports whether it was overwritten.
func (d *Document) Set(key string, value json.RawMessage) (replaced bool) {
	_, replaced = d.fields.Set(key, value)
	return replaced
}

// Get returns the raw value stored under key.
func (d *Document) Get(key string) (json.RawMessage, bool) {
	return d.fields.Get(key)
}

// Delete removes key from the document.
func (d *Document) Delete(key string) bool {
	_, present := d.fields.Delete(key)
	return present
}

// Len returns the number of fields.
func (d *Document) Len() int {
	return d.fields.Len()
}

// Keys returns the field names in order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.fields.Len())
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for every field in order until fn returns false.
func (d *Document) Range(fn func(key string, value json.RawMessage) bool) {
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// MarshalJSON encodes the document with StdJSON.
func (d *Document) MarshalJSON() ([]byte, error) {
	return MarshalDocument(nil, d)
}

// UnmarshalJSON replaces the document contents with the fields of data.
func (d *Document) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return fmt.Errorf("codec: invalid JSON document")
	}
	fields := orderedmap.New[string, json.RawMessage]()
	if bytes.Equal(trimmed, []byte("null")) {
		d.fields = fields
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrNotObject
	}
	if err := fields.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("codec: decode document: %w", err)
	}
	d.fields = fields
	return nil
}

// MarshalDocument returns the compact encoding of doc produced through j.
// A nil j means StdJSON.
func MarshalDocument(j JSON, doc *Document) ([]byte, error) {
	return appendObject(nil, orDefault(j), doc)
}

func appendObject(dst []byte, j JSON, doc *Document) ([]byte, error) {
	dst = append(dst, '{')
	first := true
	var err error
	doc.Range(func(key string, value json.RawMessage) bool {
		if !first {
			dst = append(dst, ',')
		}
		first = false

		var k []byte
		if k, err = j.Marshal(key); err != nil {
			err = fmt.Errorf("encode key %q: %w", key, err)
			return false
		}
		dst = append(dst, k...)
		dst = append(dst, ':')

		if dst, err = appendValue(dst, j, value); err != nil {
			err = fmt.Errorf("encode field %q: %w", key, err)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return append(dst, '}'), nil
}

// appendValue writes a raw value, compacting it when it carries whitespace
// that could include a line break.
func appendValue(dst []byte, j JSON, value json.RawMessage) ([]byte, error) {
	if len(value) == 0 {
		return append(dst, "null"...), nil
	}
	if bytes.ContainsAny(value, "\n\r\t ") {
		compacted, err := j.Compact(value)
		if err != nil {
			return nil, err
		}
		value = compacted
	} else if !json.Valid(value) {
		return nil, fmt.Errorf("invalid JSON value %q", value)
	}
	return append(dst, value...), nil
}
