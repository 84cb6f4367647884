package buffer

import (
	"log/slog"

	"github.com/ssargent/jsonlbuf/pkg/codec"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/config"
	"github.com/ssargent/jsonlbuf/pkg/record"
)

// StorageFunc supplies a fresh Storage for each new buffer.
type StorageFunc func() (Storage, error)

// CreateFunc yields a ready-to-use buffer for a stream.
type CreateFunc func(stream record.StreamDescriptor) (*Buffer, error)

// Option customizes buffers produced by a CreateFunc.
type Option func(*Config)

// WithLogger sets the buffer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithJSON sets the JSON capability.
func WithJSON(j codec.JSON) Option {
	return func(c *Config) { c.JSON = j }
}

// WithIDGenerator sets the record id generator.
func WithIDGenerator(ids record.IDGenerator) Option {
	return func(c *Config) { c.IDs = ids }
}

// NewCreateFunc returns a factory building buffers from format. A nil format
// means gzip compression without flattening.
func NewCreateFunc(format *config.Format, newStorage StorageFunc, opts ...Option) CreateFunc {
	base := Config{
		Compression: compress.Default,
		Flattening:  record.NoFlattening,
	}
	if format != nil {
		base.Compression = format.Compression
		base.Flattening = format.Flattening
		base.StrictReservedFields = format.StrictReservedFields
	}
	for _, opt := range opts {
		opt(&base)
	}

	return func(stream record.StreamDescriptor) (*Buffer, error) {
		storage, err := newStorage()
		if err != nil {
			return nil, &InitializationError{Stream: stream, Err: err}
		}
		cfg := base
		cfg.Stream = stream
		return New(storage, cfg)
	}
}
