package runlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replygraph/replygraph/internal/logging"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"), time.Second, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_ListNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	// nanosecond precision must not break ordering
	require.NoError(t, j.Record(Run{RunID: "r1", ProjectID: "p1", Status: "success", StartedAt: base}))
	require.NoError(t, j.Record(Run{RunID: "r2", ProjectID: "p1", Status: "fail", StartedAt: base.Add(100 * time.Millisecond)}))
	require.NoError(t, j.Record(Run{RunID: "r3", ProjectID: "p1", Status: "success", StartedAt: base.Add(120 * time.Millisecond), NodeCount: 4}))

	runs, err := j.List("p1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "r3", runs[0].RunID)
	assert.Equal(t, "r2", runs[1].RunID)
	assert.Equal(t, "r1", runs[2].RunID)
	assert.Equal(t, 4, runs[0].NodeCount)

	limited, err := j.List("p1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "r3", limited[0].RunID)
}

func TestJournal_ListAcrossProjects(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(Run{RunID: "a", ProjectID: "p1", StartedAt: base}))
	require.NoError(t, j.Record(Run{RunID: "b", ProjectID: "p2", StartedAt: base.Add(time.Hour)}))
	require.NoError(t, j.Record(Run{RunID: "c", ProjectID: "p1", StartedAt: base.Add(2 * time.Hour)}))

	runs, err := j.List("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})

	runs, err = j.List("", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].RunID)
}

func TestJournal_Empty(t *testing.T) {
	j := openTestJournal(t)

	runs, err := j.List("p1", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestJournal_RejectsIncompleteRun(t *testing.T) {
	j := openTestJournal(t)
	assert.Error(t, j.Record(Run{ProjectID: "p1"}))
}
