package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// JSON is the encode/decode capability shared by the serializer and the
// record normalizer. Implementations must be safe for concurrent use.
type JSON interface {
	// Marshal encodes v as compact JSON without a trailing newline.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes exactly one JSON value from data into v.
	Unmarshal(data []byte, v any) error
	// Compact strips insignificant whitespace from an encoded value.
	Compact(data []byte) ([]byte, error)
}

// StdJSON implements JSON on top of encoding/json.
type StdJSON struct{}

var _ JSON = StdJSON{}

// Marshal encodes v without HTML escaping.
func (StdJSON) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Unmarshal decodes data into v using json.Number for numbers and rejects
// trailing content after the first value.
func (StdJSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return nil
}

// Compact returns data with insignificant whitespace removed.
func (StdJSON) Compact(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orDefault(j JSON) JSON {
	if j == nil {
		return StdJSON{}
	}
	return j
}
