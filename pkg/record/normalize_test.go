package record

import (
	"encoding/json"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/jsonlbuf/pkg/codec"
)

func fixedIDs(id string) IDGenerator {
	return IDFunc(func() (string, error) { return id, nil })
}

func encode(t *testing.T, doc *codec.Document) string {
	t.Helper()
	out, err := codec.MarshalDocument(nil, doc)
	require.NoError(t, err)
	return string(out)
}

func TestNormalize_Nested(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{IDs: fixedIDs("id-1")})
	doc, err := n.Normalize(Record{Stream: "users", Data: json.RawMessage(`{"a": 1, "b": {"x": 2}}`), EmittedAt: 1000})
	require.NoError(t, err)

	assert.Equal(t, []string{ColumnID, ColumnEmittedAt, ColumnData}, doc.Keys())
	assert.Equal(t, `{"_airbyte_ab_id":"id-1","_airbyte_emitted_at":1000,"_airbyte_data":{"a":1,"b":"{\"x\":2}"}}`, encode(t, doc))
}

func TestNormalize_RootLevel(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{Flattening: RootLevelFlattening, IDs: fixedIDs("id-1")})
	doc, err := n.Normalize(Record{Stream: "users", Data: json.RawMessage(`{"a": 1, "b": {"x": 2}}`), EmittedAt: 1000})
	require.NoError(t, err)

	assert.Equal(t, `{"_airbyte_ab_id":"id-1","_airbyte_emitted_at":1000,"a":1,"b":"{\"x\":2}"}`, encode(t, doc))
}

func TestNormalize_ContainerStringRoundTrips(t *testing.T) {
	original := `{"list":[1,{"deep":[true,null]}],"obj":{"k":"v \"quoted\""}}`
	n := NewNormalizer(NormalizerConfig{Flattening: RootLevelFlattening})
	doc, err := n.Normalize(Record{Data: json.RawMessage(original)})
	require.NoError(t, err)

	for _, key := range []string{"list", "obj"} {
		value, ok := doc.Get(key)
		require.True(t, ok)

		var text string
		require.NoError(t, json.Unmarshal(value, &text), key)

		var want, got any
		source, _ := codec.ParseDocument([]byte(original))
		raw, _ := source.Get(key)
		require.NoError(t, json.Unmarshal(raw, &want))
		require.NoError(t, json.Unmarshal([]byte(text), &got))
		assert.Equal(t, want, got, key)
	}
}

func TestNormalize_ScalarsPassThrough(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{Flattening: RootLevelFlattening, IDs: fixedIDs("x")})
	doc, err := n.Normalize(Record{Data: json.RawMessage(`{"s":"text","n":1.5e3,"t":true,"z":null}`), EmittedAt: -5})
	require.NoError(t, err)

	assert.Equal(t, `{"_airbyte_ab_id":"x","_airbyte_emitted_at":-5,"s":"text","n":1.5e3,"t":true,"z":null}`, encode(t, doc))
}

func TestNormalize_EmptyData(t *testing.T) {
	tests := []struct {
		name string
		data json.RawMessage
	}{
		{name: "missing", data: nil},
		{name: "null", data: json.RawMessage(`null`)},
		{name: "empty object", data: json.RawMessage(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(NormalizerConfig{IDs: fixedIDs("id")})
			doc, err := n.Normalize(Record{Data: tt.data, EmittedAt: 1})
			require.NoError(t, err)
			assert.Equal(t, `{"_airbyte_ab_id":"id","_airbyte_emitted_at":1,"_airbyte_data":{}}`, encode(t, doc))
		})
	}
}

func TestNormalize_InvalidData(t *testing.T) {
	for _, data := range []string{`[1,2]`, `"text"`, `{"a":`} {
		_, err := Normalize(Record{Data: json.RawMessage(data)}, false)
		assert.ErrorIs(t, err, ErrInvalidData, data)
	}
}

func TestNormalize_ReservedCollision(t *testing.T) {
	data := json.RawMessage(`{"_airbyte_ab_id":"mine","v":1}`)

	t.Run("overwrite by default", func(t *testing.T) {
		n := NewNormalizer(NormalizerConfig{Flattening: RootLevelFlattening, IDs: fixedIDs("generated")})
		doc, err := n.Normalize(Record{Data: data, EmittedAt: 2})
		require.NoError(t, err)
		assert.Equal(t, `{"_airbyte_ab_id":"mine","_airbyte_emitted_at":2,"v":1}`, encode(t, doc))
	})

	t.Run("strict", func(t *testing.T) {
		n := NewNormalizer(NormalizerConfig{Flattening: RootLevelFlattening, StrictReservedFields: true})
		_, err := n.Normalize(Record{Data: data})
		assert.ErrorIs(t, err, ErrReservedField)
	})

	t.Run("nested ignores collisions", func(t *testing.T) {
		n := NewNormalizer(NormalizerConfig{StrictReservedFields: true, IDs: fixedIDs("generated")})
		doc, err := n.Normalize(Record{Data: data})
		require.NoError(t, err)
		id, _ := doc.Get(ColumnID)
		assert.Equal(t, `"generated"`, string(id))
	})
}

func TestNormalize_IDGeneratorError(t *testing.T) {
	boom := errors.New("no entropy")
	n := NewNormalizer(NormalizerConfig{IDs: IDFunc(func() (string, error) { return "", boom })})
	_, err := n.Normalize(Record{Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, boom)
}

func TestNormalize_DefaultIDsAreUUIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		doc, err := Normalize(Record{Data: json.RawMessage(`{}`)}, false)
		require.NoError(t, err)

		raw, _ := doc.Get(ColumnID)
		var id string
		require.NoError(t, json.Unmarshal(raw, &id))
		_, err = uuid.Parse(id)
		require.NoError(t, err)

		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(ColumnID))
	assert.True(t, IsReserved(ColumnEmittedAt))
	assert.True(t, IsReserved(ColumnData))
	assert.False(t, IsReserved("_airbyte_other"))
}

func TestNormalize_InvalidUTF8Scalars(t *testing.T) {
	line := []byte("{\"stream\":\"users\",\"data\":{\"s\":\"a\xffb\",\"o\":{\"k\":\"\xfe\"}},\"emitted_at\":1}")
	rec, ok, err := DecodeMessage(nil, line)
	require.NoError(t, err)
	require.True(t, ok)

	for _, flatten := range []bool{false, true} {
		doc, err := Normalize(rec, flatten)
		require.NoError(t, err)

		out, err := codec.NewLineSerializer(nil).Serialize(doc)
		require.NoError(t, err)
		assert.True(t, utf8.Valid(out), "flatten=%v line=%q", flatten, out)
		assert.True(t, json.Valid(out), "flatten=%v", flatten)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		fields := decoded
		if !flatten {
			fields = decoded[ColumnData].(map[string]any)
		}
		assert.Equal(t, "a\uFFFDb", fields["s"])
		assert.Equal(t, "{\"k\":\"\uFFFD\"}", fields["o"])
	}
}

func TestNormalize_NestedAndFlattenedAgree(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"a":1}`,
		`{"a": 1, "b": {"x": 2}}`,
		`{"s":"text","n":-2.5e10,"t":true,"f":false,"z":null}`,
		`{"list":[1,[2,[3]],{"k":"v"}],"empty_obj":{},"empty_list":[]}`,
		`{"unicode":"h\u00e9llo \u2603","escaped":"quote \" slash \\ newline \n"}`,
		`{"deep":{"a":{"b":{"c":{"d":[true,null,"x"]}}}},"last":0}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			rec := Record{Stream: "users", Data: json.RawMessage(input), EmittedAt: 99}
			serializer := codec.NewLineSerializer(nil)

			nestedDoc, err := NewNormalizer(NormalizerConfig{IDs: fixedIDs("id")}).Normalize(rec)
			require.NoError(t, err)
			flatDoc, err := NewNormalizer(NormalizerConfig{Flattening: RootLevelFlattening, IDs: fixedIDs("id")}).Normalize(rec)
			require.NoError(t, err)

			nestedLine, err := serializer.Serialize(nestedDoc)
			require.NoError(t, err)
			flatLine, err := serializer.Serialize(flatDoc)
			require.NoError(t, err)

			var nested, flat map[string]any
			require.NoError(t, json.Unmarshal(nestedLine, &nested))
			require.NoError(t, json.Unmarshal(flatLine, &flat))

			assert.Len(t, nested, 3)
			assert.NotContains(t, flat, ColumnData)
			assert.Equal(t, nested[ColumnID], flat[ColumnID])
			assert.Equal(t, nested[ColumnEmittedAt], flat[ColumnEmittedAt])

			data, ok := nested[ColumnData].(map[string]any)
			require.True(t, ok)

			leaves := make(map[string]any)
			for key, value := range flat {
				if !IsReserved(key) {
					leaves[key] = value
				}
			}
			assert.Equal(t, data, leaves)

			for key, value := range data {
				switch value.(type) {
				case map[string]any, []any:
					t.Errorf("field %q kept a container value", key)
				}
			}
		})
	}
}
