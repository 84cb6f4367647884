package segment

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/jsonlbuf/pkg/buffer"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "segments"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutGet(t *testing.T) {
	store := openTestStore(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	meta, err := store.Put(Meta{
		Stream:      record.StreamDescriptor{Name: "users"},
		Filename:    "users.jsonl",
		Compression: compress.None,
		Records:     2,
		Bytes:       16,
	}, strings.NewReader("{\"a\":1}\n{\"b\":2}\n"))
	require.NoError(t, err)

	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, int64(16), meta.StoredBytes)
	assert.Equal(t, fixed, meta.CreatedAt)

	got, data, err := store.Get(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(data))
}

func TestStore_NotFound(t *testing.T) {
	store := openTestStore(t)

	_, _, err := store.Get("2ZJ4Z1nFvPqKqR4wYt0sQ2GdMhx")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete("2ZJ4Z1nFvPqKqR4wYt0sQ2GdMhx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_InvalidID(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Meta("not-a-ksuid")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestStore_ListAndDelete(t *testing.T) {
	store := openTestStore(t)

	var ids []string
	for _, name := range []string{"users", "orders", "events"} {
		meta, err := store.Put(Meta{Stream: record.StreamDescriptor{Name: name}}, strings.NewReader(name))
		require.NoError(t, err)
		ids = append(ids, meta.ID)
	}

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 3)

	var listed []string
	for _, m := range metas {
		listed = append(listed, m.ID)
	}
	assert.ElementsMatch(t, ids, listed)

	require.NoError(t, store.Delete(ids[1]))
	_, _, err = store.Get(ids[1])
	assert.ErrorIs(t, err, ErrNotFound)

	metas, err = store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestStore_ListEmpty(t *testing.T) {
	store := openTestStore(t)
	metas, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestStore_Stage(t *testing.T) {
	store := openTestStore(t)
	stream := record.StreamDescriptor{Namespace: "public", Name: "users"}

	b, err := buffer.New(buffer.NewMemoryStorage("users.jsonl"), buffer.Config{
		Stream:      stream,
		Compression: compress.Gzip,
		Flattening:  record.RootLevelFlattening,
	})
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Write(record.Record{
			Namespace: "public",
			Stream:    "users",
			Data:      json.RawMessage(`{"name":"ada"}`),
			EmittedAt: int64(i),
		}))
	}

	meta, err := store.Stage(b)
	require.NoError(t, err)
	assert.Equal(t, buffer.StateFlushed, b.State())
	assert.Equal(t, stream, meta.Stream)
	assert.Equal(t, "users.jsonl.gz", meta.Filename)
	assert.Equal(t, compress.Gzip, meta.Compression)
	assert.Equal(t, record.RootLevelFlattening, meta.Flattening)
	assert.Equal(t, int64(3), meta.Records)
	assert.Equal(t, b.ByteCount(), meta.Bytes)
	assert.Equal(t, b.StoredBytes(), meta.StoredBytes)

	_, data, err := store.Get(meta.ID)
	require.NoError(t, err)

	r, err := compress.NewReader(bytes.NewReader(data), meta.Compression)
	require.NoError(t, err)
	defer r.Close()

	lines := 0
	reader := json.NewDecoder(r)
	for reader.More() {
		var line map[string]any
		require.NoError(t, reader.Decode(&line))
		assert.Equal(t, "ada", line["name"])
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments")
	store, err := Open(path)
	require.NoError(t, err)

	meta, err := store.Put(Meta{Stream: record.StreamDescriptor{Name: "users"}}, strings.NewReader("{}\n"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Meta(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, got.ID)
}
