// Package buffer streams normalized records into a byte sink as JSON Lines,
// optionally compressed.
//
// A Buffer owns one Storage for its whole life and moves through
// Created -> Writing -> Flushed -> Closed. It is not safe for concurrent
// use: one goroutine drives Write, Flush, Finalize and Close in order, and
// concurrent ingestion uses one Buffer per stream.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ssargent/jsonlbuf/pkg/codec"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/logging"
	"github.com/ssargent/jsonlbuf/pkg/record"
)

// State is the lifecycle position of a Buffer.
type State int

const (
	// StateCreated is a buffer whose storage is not open yet.
	StateCreated State = iota
	// StateWriting accepts writes and intermediate flushes.
	StateWriting
	// StateFlushed holds a complete stream that can be read back.
	StateFlushed
	// StateClosed has released its storage.
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateWriting:
		return "writing"
	case StateFlushed:
		return "flushed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds configuration for a Buffer. Zero values give an uncompressed,
// non-flattened buffer with UUID ids, codec.StdJSON and a discarding logger.
type Config struct {
	Stream               record.StreamDescriptor
	Compression          compress.Type
	Flattening           record.Flattening
	StrictReservedFields bool
	JSON                 codec.JSON
	IDs                  record.IDGenerator
	Logger               *slog.Logger
}

// Buffer serializes records into a Storage.
type Buffer struct {
	storage    Storage
	config     Config
	normalizer *record.Normalizer
	serializer *codec.LineSerializer
	counter    *countingWriter
	writer     compress.Writer
	logger     *slog.Logger

	state        State
	writerClosed bool
	line         []byte
	bytes        int64
	records      int64
}

// New opens storage and returns a buffer in the Writing state. Failures are
// reported as *InitializationError and leave storage released.
func New(storage Storage, config Config) (*Buffer, error) {
	if storage == nil {
		return nil, &InitializationError{Stream: config.Stream, Err: errors.New("nil storage")}
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	b := &Buffer{
		storage: storage,
		config:  config,
		normalizer: record.NewNormalizer(record.NormalizerConfig{
			Flattening:           config.Flattening,
			StrictReservedFields: config.StrictReservedFields,
			IDs:                  config.IDs,
			JSON:                 config.JSON,
		}),
		serializer: codec.NewLineSerializer(config.JSON),
		logger:     logger.With("stream", config.Stream.String()),
		state:      StateCreated,
	}

	sink, err := storage.Open()
	if err != nil {
		return nil, &InitializationError{Stream: config.Stream, Err: err}
	}
	b.counter = &countingWriter{w: sink}

	writer, err := compress.Wrap(b.counter, config.Compression)
	if err != nil {
		return nil, &InitializationError{Stream: config.Stream, Err: errors.Join(err, storage.Close())}
	}
	b.writer = writer
	b.state = StateWriting

	b.logger.Debug("buffer opened",
		"file", b.Filename(),
		"compression", config.Compression.String(),
		"flattening", config.Flattening.String())
	return b, nil
}

// Write normalizes rec and appends it as one line.
func (b *Buffer) Write(rec record.Record) error {
	switch b.state {
	case StateWriting:
	case StateClosed:
		return &WriteError{Stream: b.config.Stream, Op: "write", Err: ErrClosed}
	default:
		return &WriteError{Stream: b.config.Stream, Op: "write", Err: ErrNotWritable}
	}

	doc, err := b.normalizer.Normalize(rec)
	if err != nil {
		return &WriteError{Stream: b.config.Stream, Op: "normalize", Err: err}
	}

	b.line, err = b.serializer.AppendLine(b.line[:0], doc)
	if err != nil {
		return &WriteError{Stream: b.config.Stream, Op: "serialize", Err: err}
	}

	n, err := b.writer.Write(b.line)
	b.bytes += int64(n)
	if err != nil {
		return &WriteError{Stream: b.config.Stream, Op: "write", Err: err}
	}
	b.records++
	return nil
}

// Flush pushes pending bytes through the compressor into storage without
// ending the stream. It is a no-op once the buffer is finalized.
func (b *Buffer) Flush() error {
	switch b.state {
	case StateWriting:
	case StateClosed:
		return &WriteError{Stream: b.config.Stream, Op: "flush", Err: ErrClosed}
	default:
		return nil
	}

	if err := b.writer.Flush(); err != nil {
		return &WriteError{Stream: b.config.Stream, Op: "flush", Err: err}
	}
	if err := b.storage.Flush(); err != nil {
		return &WriteError{Stream: b.config.Stream, Op: "flush", Err: err}
	}
	return nil
}

// Finalize ends the compressed stream, flushes storage and moves the buffer
// to Flushed. After Finalize the stored bytes are complete and Reader may be
// used. Calling it again is a no-op.
func (b *Buffer) Finalize() error {
	switch b.state {
	case StateWriting:
	case StateClosed:
		return &WriteError{Stream: b.config.Stream, Op: "finalize", Err: ErrClosed}
	default:
		return nil
	}

	b.writerClosed = true
	if err := b.writer.Close(); err != nil {
		return &WriteError{Stream: b.config.Stream, Op: "finalize", Err: err}
	}
	if err := b.storage.Flush(); err != nil {
		return &WriteError{Stream: b.config.Stream, Op: "finalize", Err: err}
	}
	b.state = StateFlushed

	b.logger.Debug("buffer finalized",
		"records", b.records,
		"bytes", b.bytes,
		"stored_bytes", b.counter.n)
	return nil
}

// Close finalizes the stream if needed and releases storage. Release is
// attempted even when finalizing fails. Closing a closed buffer is a no-op.
func (b *Buffer) Close() error {
	if b.state == StateClosed {
		return nil
	}

	var errs []error
	if !b.writerClosed {
		b.writerClosed = true
		if err := b.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("finalize compression: %w", err))
		}
	}
	if err := b.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release storage: %w", err))
	}
	b.state = StateClosed

	if len(errs) > 0 {
		b.logger.Warn("buffer closed with errors", "error", errors.Join(errs...))
		return &CloseError{Stream: b.config.Stream, Err: errors.Join(errs...)}
	}
	b.logger.Debug("buffer closed", "records", b.records, "stored_bytes", b.counter.n)
	return nil
}

// Discard closes the buffer and deletes the stored bytes.
func (b *Buffer) Discard() error {
	closeErr := b.Close()
	if err := b.storage.Delete(); err != nil {
		return errors.Join(closeErr, fmt.Errorf("delete storage: %w", err))
	}
	return closeErr
}

// Reader opens the stored, possibly compressed, bytes. The buffer must be
// finalized or closed.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	if b.state != StateFlushed && b.state != StateClosed {
		return nil, ErrNotFinalized
	}
	return b.storage.Reader()
}

// State returns the lifecycle state.
func (b *Buffer) State() State { return b.state }

// Stream returns the stream the buffer belongs to.
func (b *Buffer) Stream() record.StreamDescriptor { return b.config.Stream }

// Compression returns the compression applied to stored bytes.
func (b *Buffer) Compression() compress.Type { return b.config.Compression }

// Flattening returns the flattening mode of the buffer.
func (b *Buffer) Flattening() record.Flattening { return b.config.Flattening }

// ByteCount returns the serialized bytes accepted before compression.
func (b *Buffer) ByteCount() int64 { return b.bytes }

// StoredBytes returns the bytes that reached storage after compression.
func (b *Buffer) StoredBytes() int64 {
	if b.counter == nil {
		return 0
	}
	return b.counter.n
}

// RecordCount returns the number of records written.
func (b *Buffer) RecordCount() int64 { return b.records }

// Filename returns the storage file name with the compression extension.
func (b *Buffer) Filename() string {
	return b.storage.Filename() + b.config.Compression.Extension()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
