package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/sandboxd/pkg/errs"
)

type doc struct {
	Name string `json:"name"`
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	path := st.SessionPath("abc")
	require.NoError(t, st.WriteJSON(path, doc{Name: "hello"}))

	var got doc
	require.NoError(t, st.ReadJSON(path, &got))
	assert.Equal(t, "hello", got.Name)
}

func TestReadJSONMissingFileIsUserInput(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	err = st.ReadJSON(st.SessionPath("missing"), &doc{})
	assert.Error(t, err)
	var se *errs.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errs.KindUserInput, se.Kind)
}

func TestListMatchesGlob(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, st.WriteJSON(st.SessionPath("a"), doc{}))
	require.NoError(t, st.WriteJSON(st.SessionPath("b"), doc{}))
	require.NoError(t, st.WriteJSON(st.ReportPath("a", "benchmarker", 0), doc{}))

	names, err := st.List("session-*.json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session-a.json", "session-b.json"}, names)
}

func TestSessionPathIsKeyedByID(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(st.Root(), "session-xyz.json"), st.SessionPath("xyz"))
}

func TestWriteJSONIsAtomic(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	path := st.SessionPath("atomic")
	require.NoError(t, st.WriteJSON(path, doc{Name: "v1"}))
	require.NoError(t, st.WriteJSON(path, doc{Name: "v2"}))

	var got doc
	require.NoError(t, st.ReadJSON(path, &got))
	assert.Equal(t, "v2", got.Name)
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr), "temp file must be renamed into place")
}
