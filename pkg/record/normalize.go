package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/ssargent/jsonlbuf/pkg/codec"
)

var (
	// ErrInvalidData is returned when a record's data is not a JSON object.
	ErrInvalidData = errors.New("record: data is not a JSON object")
	// ErrReservedField is returned in strict mode when a flattened data
	// field would overwrite a reserved column.
	ErrReservedField = errors.New("record: data field collides with reserved column")
)

// NormalizerConfig configures a Normalizer. Zero values select the
// defaults: no flattening, UUID ids, codec.StdJSON.
type NormalizerConfig struct {
	Flattening Flattening
	// StrictReservedFields rejects flattened fields named like a reserved
	// column instead of letting them overwrite it.
	StrictReservedFields bool
	IDs                  IDGenerator
	JSON                 codec.JSON
}

// Normalizer converts input records into output documents.
type Normalizer struct {
	flattening Flattening
	strict     bool
	ids        IDGenerator
	json       codec.JSON
}

// NewNormalizer creates a normalizer from config.
func NewNormalizer(config NormalizerConfig) *Normalizer {
	n := &Normalizer{
		flattening: config.Flattening,
		strict:     config.StrictReservedFields,
		ids:        config.IDs,
		json:       config.JSON,
	}
	if n.ids == nil {
		n.ids = UUIDGenerator{}
	}
	if n.json == nil {
		n.json = codec.StdJSON{}
	}
	return n
}

// Normalize converts rec with the default generator and codec.
func Normalize(rec Record, flatten bool) (*codec.Document, error) {
	config := NormalizerConfig{}
	if flatten {
		config.Flattening = RootLevelFlattening
	}
	return NewNormalizer(config).Normalize(rec)
}

// Normalize builds the output document for rec: reserved id, reserved
// timestamp, then the data either nested under ColumnData or merged into
// the root. Object and array values become JSON strings of their compact
// text.
func (n *Normalizer) Normalize(rec Record) (*codec.Document, error) {
	id, err := n.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate record id: %w", err)
	}
	idValue, err := n.json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode record id: %w", err)
	}

	data, err := n.transform(rec.Data)
	if err != nil {
		return nil, err
	}

	doc := codec.NewDocument()
	doc.Set(ColumnID, idValue)
	doc.Set(ColumnEmittedAt, json.RawMessage(strconv.FormatInt(rec.EmittedAt, 10)))

	if n.flattening == RootLevelFlattening {
		var collision string
		data.Range(func(key string, value json.RawMessage) bool {
			if n.strict && IsReserved(key) {
				collision = key
				return false
			}
			doc.Set(key, value)
			return true
		})
		if collision != "" {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, collision)
		}
		return doc, nil
	}

	nested, err := codec.MarshalDocument(n.json, data)
	if err != nil {
		return nil, fmt.Errorf("encode record data: %w", err)
	}
	doc.Set(ColumnData, nested)
	return doc, nil
}

// transform decodes the top-level fields of data and replaces object and
// array values with their compact JSON text. Scalars carrying invalid UTF-8
// are re-encoded, which turns the bad bytes into U+FFFD.
func (n *Normalizer) transform(data json.RawMessage) (*codec.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return codec.NewDocument(), nil
	}
	fields, err := codec.ParseDocument(data)
	if err != nil {
		if errors.Is(err, codec.ErrNotObject) {
			return nil, ErrInvalidData
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	out := codec.NewDocument()
	var ferr error
	fields.Range(func(key string, value json.RawMessage) bool {
		if isContainer(value) {
			var compact []byte
			if compact, ferr = n.json.Compact(value); ferr != nil {
				ferr = fmt.Errorf("compact field %q: %w", key, ferr)
				return false
			}
			if value, ferr = n.json.Marshal(string(compact)); ferr != nil {
				ferr = fmt.Errorf("stringify field %q: %w", key, ferr)
				return false
			}
		} else if !utf8.Valid(value) {
			var scalar any
			if ferr = n.json.Unmarshal(value, &scalar); ferr != nil {
				ferr = fmt.Errorf("decode field %q: %w", key, ferr)
				return false
			}
			if value, ferr = n.json.Marshal(scalar); ferr != nil {
				ferr = fmt.Errorf("encode field %q: %w", key, ferr)
				return false
			}
		}
		out.Set(key, value)
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// IsReserved reports whether name is one of the reserved columns.
func IsReserved(name string) bool {
	switch name {
	case ColumnID, ColumnEmittedAt, ColumnData:
		return true
	}
	return false
}

func isContainer(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
