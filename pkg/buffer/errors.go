package buffer

import (
	"errors"
	"fmt"

	"github.com/ssargent/jsonlbuf/pkg/record"
)

// Errors
var (
	ErrClosed       = errors.New("buffer: closed")
	ErrNotWritable  = errors.New("buffer: finalized, not accepting writes")
	ErrNotFinalized = errors.New("buffer: not finalized")
)

// InitializationError reports that the sink could not be opened or wrapped.
type InitializationError struct {
	Stream record.StreamDescriptor
	Err    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize buffer for stream %q: %v", e.Stream, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// WriteError reports a serialization or I/O failure. The buffer content is
// undefined afterwards; close it and discard the output.
type WriteError struct {
	Stream record.StreamDescriptor
	Op     string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s buffer for stream %q: %v", e.Op, e.Stream, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// CloseError reports a failure finalizing or releasing the sink. Release was
// still attempted.
type CloseError struct {
	Stream record.StreamDescriptor
	Err    error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("close buffer for stream %q: %v", e.Stream, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }
