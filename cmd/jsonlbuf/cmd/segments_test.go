package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/jsonlbuf/pkg/codec"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/record"
	"github.com/ssargent/jsonlbuf/pkg/segment"
)

func TestCopySegment(t *testing.T) {
	var compressed bytes.Buffer
	w, err := compress.Wrap(&compressed, compress.LZ4)
	require.NoError(t, err)
	_, err = w.Write([]byte("{\"a\":1}\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	meta := segment.Meta{Compression: compress.LZ4}

	var raw bytes.Buffer
	require.NoError(t, copySegment(&raw, meta, compressed.Bytes(), false))
	assert.Equal(t, compressed.Bytes(), raw.Bytes())

	var decoded bytes.Buffer
	require.NoError(t, copySegment(&decoded, meta, compressed.Bytes(), true))
	assert.Equal(t, "{\"a\":1}\n", decoded.String())
}

func TestPrintSegments(t *testing.T) {
	var out bytes.Buffer
	printSegments(&out, []segment.Meta{{
		ID:          "2ZJ4Z1nFvPqKqR4wYt0sQ2GdMhx",
		Stream:      record.StreamDescriptor{Namespace: "public", Name: "users"},
		Records:     3,
		StoredBytes: 120,
		Compression: compress.Gzip,
	}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "STREAM")
	assert.Contains(t, lines[1], "public.users")
	assert.Contains(t, lines[1], "gzip")
}

func TestCopySegment_DecodeRejectsCorruptLines(t *testing.T) {
	meta := segment.Meta{ID: "2ZJ4Z1nFvPqKqR4wYt0sQ2GdMhx", Compression: compress.None}

	var out bytes.Buffer
	err := copySegment(&out, meta, []byte("{\"a\":1}\n[1,2]\n"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrNotObject)
	assert.Contains(t, err.Error(), meta.ID)
	assert.Equal(t, "{\"a\":1}\n", out.String())
}
