package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
)

func f64(v float64) *float64 { return &v }

func TestUpdate_QueuedToRunningAllowed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run1"), 0o755))
	j := New(root)

	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusQueued}))
	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 0, Progress: f64(0)}))

	rec, err := j.Snapshot("run1")
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusRunning, rec.Status)
}

func TestUpdate_RejectsDecreasingProgress(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run1"), 0o755))
	j := New(root)

	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 2, Progress: f64(0.5)}))
	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 1, Progress: f64(0.9)}))

	rec, err := j.Snapshot("run1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.StepIndex)
	assert.InDelta(t, 0.5, *rec.Progress, 1e-9)
}

func TestUpdate_TerminalStatusIsFinal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run1"), 0o755))
	j := New(root)

	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 0, Progress: f64(0)}))
	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusCompleted, StepIndex: 1, Progress: f64(1)}))
	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 2, Progress: f64(0.1)}))

	rec, err := j.Snapshot("run1")
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusCompleted, rec.Status)
}

func TestUpdate_PersistsAtomically(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run1"), 0o755))
	j := New(root)
	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 1, Progress: f64(0.25)}))

	data, err := os.ReadFile(filepath.Join(root, "run1", "progress.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "running"`)
}

func TestSnapshot_FallsBackToDiskAfterRestart(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run1"), 0o755))
	j1 := New(root)
	require.NoError(t, j1.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 3, Progress: f64(0.6)}))

	j2 := New(root)
	rec, err := j2.Snapshot("run1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.StepIndex)
}

func TestSnapshot_NotFound(t *testing.T) {
	j := New(t.TempDir())
	_, err := j.Snapshot("missing")
	require.Error(t, err)
}

func TestAppendLog_Serializes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run1"), 0o755))
	j := New(root)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.AppendLog("run1", "line"))
	}
	data, err := os.ReadFile(filepath.Join(root, "run1", "run.log"))
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 5, lines)
}

func TestSubscribe_ReceivesNotification(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run1"), 0o755))
	j := New(root)
	ch := j.Subscribe("run1")

	require.NoError(t, j.Update("run1", Record{Status: runstore.StatusRunning, StepIndex: 0, Progress: f64(0)}))
	select {
	case <-ch:
	default:
		t.Fatal("expected notification after Update")
	}
}
