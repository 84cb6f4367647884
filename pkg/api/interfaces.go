package api

import (
	"io"

	"github.com/ssargent/jsonlbuf/pkg/buffer"
	"github.com/ssargent/jsonlbuf/pkg/segment"
)

// SegmentStore is the staging store the API publishes finalized buffers to
type SegmentStore interface {
	Stage(b *buffer.Buffer) (segment.Meta, error)
	Put(meta segment.Meta, data io.Reader) (segment.Meta, error)
	Meta(id string) (segment.Meta, error)
	Get(id string) (segment.Meta, []byte, error)
	List() ([]segment.Meta, error)
	Delete(id string) error
}

var _ SegmentStore = (*segment.Store)(nil)
