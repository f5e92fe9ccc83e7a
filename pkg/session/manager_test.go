package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/sandboxd/pkg/store"
)

func newTestManager(t *testing.T) *Manager {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewManager(st, nil, nil, nil, nil)
}

func TestCreateSessionRequiresBinaryFile(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateSession("test", "deadbeef", map[string]string{}, false, Configuration{})
	assert.Error(t, err)
}

func TestCreateSessionPersistsAndIsLoadable(t *testing.T) {
	m := newTestManager(t)
	s, err := m.CreateSession("test", "deadbeef", map[string]string{"binary_file": "cpu_task"}, false, Configuration{})
	require.NoError(t, err)
	assert.Equal(t, Persisted, s.State)
	assert.NotEmpty(t, s.ID)

	loaded, err := m.LoadSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, "cpu_task", loaded.BinaryFile())
	assert.Nil(t, loaded.ExecutedAt)
}

func TestLoadSessionNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.LoadSession("nonexistent")
	assert.Error(t, err)
}

func TestListSessionsReturnsAllCreated(t *testing.T) {
	m := newTestManager(t)
	s1, err := m.CreateSession("a", "sha1", map[string]string{"binary_file": "x"}, false, Configuration{})
	require.NoError(t, err)
	s2, err := m.CreateSession("b", "sha2", map[string]string{"binary_file": "y"}, false, Configuration{})
	require.NoError(t, err)

	ids, err := m.ListSessions()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{s1.ID, s2.ID}, ids)
}

func TestExecuteRefusesWhenRawSeriesRequestedWithoutScraper(t *testing.T) {
	m := newTestManager(t)
	s, err := m.CreateSession("a", "sha1", map[string]string{"binary_file": "x"}, false, Configuration{ProvideRawSeries: true})
	require.NoError(t, err)

	err = m.Execute(nil, s.ID) //nolint:staticcheck // nil ctx ok: we fail before any ctx use
	assert.Error(t, err)
}

func TestAppendReportGrowsMonotonically(t *testing.T) {
	s := &Session{}
	s.AppendReport("r1")
	s.AppendReport("r2")
	assert.Equal(t, []string{"r1", "r2"}, s.ReportsList)
}
