package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
)

func TestDecode_KeepsIntegers(t *testing.T) {
	recs, err := Decode(strings.NewReader(`[{"GateName":"B7","Floor":2,"Score":1.5}]`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, json.Number("2"), recs[0]["Floor"])
	assert.Equal(t, json.Number("1.5"), recs[0]["Score"])
}

func TestDecode_Invalid(t *testing.T) {
	for name, in := range map[string]string{
		"not array": `{"id":"1"}`,
		"trailing":  `[] []`,
		"null item": `[null]`,
		"truncated": `[{"id":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	recs, err := Decode(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestPersistThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "docVectors.json")
	in := []record.Record{{
		"id":          "1",
		"title":       "A",
		"titleVector": []float32{1, 2, 3},
		"nullVector":  nil,
	}}
	require.NoError(t, Persist(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0]["title"])
	assert.Equal(t, []any{json.Number("1"), json.Number("2"), json.Number("3")}, out[0]["titleVector"])
	v, ok := out[0]["nullVector"]
	assert.True(t, ok)
	assert.Nil(t, v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestPersist_NilWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Persist(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
