// Package compress wraps byte sinks with an optional streaming compressor.
//
// The adapter knows nothing about the bytes it carries. A compressed sink is
// a single end-to-end stream: one gzip member, one zstd frame or one lz4
// frame, finalized when the Writer is closed.
package compress

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies the compression applied to a buffer's byte stream.
type Type uint8

const (
	// None writes bytes through unchanged.
	None Type = iota
	// Gzip frames the stream as a single gzip member. This is the default
	// for JSON Lines output.
	Gzip
	// Zstd frames the stream as a zstd stream.
	Zstd
	// LZ4 frames the stream with the lz4 frame format.
	LZ4
)

// Default is the compression used when none is configured.
const Default = Gzip

// String returns the canonical name of the type.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Extension returns the file suffix appended to compressed output.
func (t Type) Extension() string {
	switch t {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// ContentType returns the media type of the compressed stream.
func (t Type) ContentType() string {
	switch t {
	case Gzip:
		return "application/gzip"
	case Zstd:
		return "application/zstd"
	case LZ4:
		return "application/x-lz4"
	default:
		return "application/x-ndjson"
	}
}

// ParseType parses a compression name. Besides the canonical names it
// accepts the protocol spellings "No Compression" and "GZIP".
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "no compression", "no_compression":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression type: %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t > LZ4 {
		return nil, fmt.Errorf("unknown compression type: %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Writer is a sink filter. Flush pushes pending compressed bytes to the
// underlying writer; Close finalizes the stream. Neither closes the
// underlying writer.
type Writer interface {
	io.Writer
	Flush() error
	Close() error
}

// Wrap returns a Writer that compresses into w according to t.
func Wrap(w io.Writer, t Type) (Writer, error) {
	switch t {
	case None:
		return passthrough{w: w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %d", uint8(t))
	}
}

// NewReader returns a reader that decompresses r according to t. Closing
// it does not close r.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %d", uint8(t))
	}
}

type passthrough struct {
	w io.Writer
}

func (p passthrough) Write(b []byte) (int, error) { return p.w.Write(b) }
func (passthrough) Flush() error                  { return nil }
func (passthrough) Close() error                  { return nil }
