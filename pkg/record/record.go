package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ssargent/jsonlbuf/pkg/codec"
)

// Reserved column names shared with downstream loaders.
const (
	ColumnID        = "_airbyte_ab_id"
	ColumnEmittedAt = "_airbyte_emitted_at"
	ColumnData      = "_airbyte_data"
)

// MessageTypeRecord is the protocol envelope type carrying a record.
const MessageTypeRecord = "RECORD"

// StreamDescriptor identifies a logical stream.
type StreamDescriptor struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

func (s StreamDescriptor) String() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// Record is a single input record. Data must be a JSON object; EmittedAt is
// epoch milliseconds.
type Record struct {
	Namespace string          `json:"namespace,omitempty"`
	Stream    string          `json:"stream"`
	Data      json.RawMessage `json:"data"`
	EmittedAt int64           `json:"emitted_at"`
}

// Descriptor returns the stream the record belongs to.
func (r Record) Descriptor() StreamDescriptor {
	return StreamDescriptor{Namespace: r.Namespace, Name: r.Stream}
}

// New builds a record from a Go value, encoding data through j. A nil j
// means codec.StdJSON.
func New(j codec.JSON, stream StreamDescriptor, data map[string]any, emittedAt int64) (Record, error) {
	if j == nil {
		j = codec.StdJSON{}
	}
	raw, err := j.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("encode record data: %w", err)
	}
	return Record{
		Namespace: stream.Namespace,
		Stream:    stream.Name,
		Data:      raw,
		EmittedAt: emittedAt,
	}, nil
}

// Message is the protocol envelope wrapping records and control messages.
type Message struct {
	Type   string  `json:"type"`
	Record *Record `json:"record,omitempty"`
}

// DecodeMessage decodes one protocol line. It accepts either an envelope or
// a bare record object. ok is false for envelopes that carry something other
// than a record, which callers skip.
func DecodeMessage(j codec.JSON, line []byte) (rec Record, ok bool, err error) {
	if j == nil {
		j = codec.StdJSON{}
	}
	line = bytes.TrimSpace(line)

	var probe struct {
		Type   *string         `json:"type"`
		Record json.RawMessage `json:"record"`
	}
	if err := j.Unmarshal(line, &probe); err != nil {
		return Record{}, false, fmt.Errorf("decode message: %w", err)
	}

	body := line
	if probe.Type != nil {
		if *probe.Type != MessageTypeRecord {
			return Record{}, false, nil
		}
		if len(probe.Record) == 0 {
			return Record{}, false, fmt.Errorf("decode message: %s message without record", MessageTypeRecord)
		}
		body = probe.Record
	}

	if err := j.Unmarshal(body, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}
