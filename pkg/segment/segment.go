// Package segment stages finalized buffers in a local pebble database until
// they are picked up by a loader.
package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/jsonlbuf/pkg/buffer"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/record"
)

// Errors
var (
	ErrNotFound  = errors.New("segment: not found")
	ErrInvalidID = errors.New("segment: invalid id")
)

var (
	metaPrefix = []byte("m/")
	dataPrefix = []byte("d/")
)

// Meta describes a staged segment.
type Meta struct {
	ID          string                  `json:"id"`
	Stream      record.StreamDescriptor `json:"stream"`
	Filename    string                  `json:"filename"`
	Compression compress.Type           `json:"compression"`
	Flattening  record.Flattening       `json:"flattening"`
	Records     int64                   `json:"records"`
	Bytes       int64                   `json:"bytes"`
	StoredBytes int64                   `json:"stored_bytes"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Store keeps segment bytes and metadata keyed by KSUID.
type Store struct {
	db  *pebble.DB
	now func() time.Time
}

// Open opens or creates a store at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open segment store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Stage finalizes b and stores its bytes. The buffer is left open; the
// caller still closes it.
func (s *Store) Stage(b *buffer.Buffer) (Meta, error) {
	if err := b.Finalize(); err != nil {
		return Meta{}, err
	}
	r, err := b.Reader()
	if err != nil {
		return Meta{}, fmt.Errorf("read buffer: %w", err)
	}
	defer r.Close()

	return s.Put(Meta{
		Stream:      b.Stream(),
		Filename:    b.Filename(),
		Compression: b.Compression(),
		Flattening:  b.Flattening(),
		Records:     b.RecordCount(),
		Bytes:       b.ByteCount(),
		StoredBytes: b.StoredBytes(),
	}, r)
}

// Put stores data under a new id and returns the completed metadata.
func (s *Store) Put(meta Meta, data io.Reader) (Meta, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return Meta{}, fmt.Errorf("read segment data: %w", err)
	}

	id := ksuid.New()
	meta.ID = id.String()
	meta.StoredBytes = int64(len(payload))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now().UTC()
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("encode segment meta: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(key(metaPrefix, id), encoded, nil); err != nil {
		return Meta{}, err
	}
	if err := batch.Set(key(dataPrefix, id), payload, nil); err != nil {
		return Meta{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return Meta{}, fmt.Errorf("commit segment: %w", err)
	}
	return meta, nil
}

// Meta returns the metadata of a segment.
func (s *Store) Meta(id string) (Meta, error) {
	kid, err := parseID(id)
	if err != nil {
		return Meta{}, err
	}
	raw, err := s.get(key(metaPrefix, kid))
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode segment meta: %w", err)
	}
	return meta, nil
}

// Get returns the metadata and the stored bytes of a segment.
func (s *Store) Get(id string) (Meta, []byte, error) {
	meta, err := s.Meta(id)
	if err != nil {
		return Meta{}, nil, err
	}
	kid, _ := parseID(id)
	data, err := s.get(key(dataPrefix, kid))
	if err != nil {
		return Meta{}, nil, err
	}
	return meta, data, nil
}

// List returns every segment's metadata ordered by id, which sorts by
// creation second.
func (s *Store) List() ([]Meta, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: metaPrefix,
		UpperBound: upperBound(metaPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var metas []Meta
	for ok := it.First(); ok; ok = it.Next() {
		var meta Meta
		if err := json.Unmarshal(it.Value(), &meta); err != nil {
			return nil, fmt.Errorf("decode segment meta %s: %w", it.Key(), err)
		}
		metas = append(metas, meta)
	}
	return metas, it.Error()
}

// Delete removes a segment.
func (s *Store) Delete(id string) error {
	if _, err := s.Meta(id); err != nil {
		return err
	}
	kid, _ := parseID(id)

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(key(metaPrefix, kid), nil); err != nil {
		return err
	}
	if err := batch.Delete(key(dataPrefix, kid), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(k []byte) ([]byte, error) {
	value, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func parseID(id string) (ksuid.KSUID, error) {
	kid, err := ksuid.Parse(id)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return kid, nil
}

func key(prefix []byte, id ksuid.KSUID) []byte {
	return append(append([]byte{}, prefix...), id.String()...)
}

func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	end[len(end)-1]++
	return end
}
