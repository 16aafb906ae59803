package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saladfingers379/RIS-SIONNA/internal/progress"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
)

// writeFakeWorker writes a shell script that stands in for cmd/simworker:
// it emits one PROGRESS line, one opaque log line, then exits with the
// code baked into the script.
func writeFakeWorker(t *testing.T, dir string, exitCode int, sleepMS int) string {
	t.Helper()
	path := filepath.Join(dir, "fakeworker.sh")
	script := fmt.Sprintf(`#!/bin/sh
echo 'PROGRESS {"status":"running","step_index":1,"progress":0.5}'
echo 'plain log line'
sleep 0.%03d
exit %d
`, sleepMS, exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestScheduler(t *testing.T, workerPath string, simCap int64) (*Scheduler, *runstore.Store, *progress.Journal) {
	t.Helper()
	root := t.TempDir()
	store, err := runstore.New(root)
	require.NoError(t, err)
	journal := progress.New(root)
	cfg := DefaultConfig(workerPath)
	cfg.SimConcurrency = simCap
	cfg.RisConcurrency = 1
	s := New(store, journal, nil, cfg)
	t.Cleanup(s.Shutdown)
	return s, store, journal
}

func TestSubmit_SucceedingJobReachesCompleted(t *testing.T) {
	worker := writeFakeWorker(t, t.TempDir(), 0, 10)
	s, _, journal := newTestScheduler(t, worker, 1)

	job, err := s.Submit(Submission{Kind: KindSim, Action: "run", Payload: map[string]any{}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := s.Get(job.JobID)
		return ok && j.Status == StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)

	rec, err := journal.Snapshot(job.RunID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusCompleted, rec.Status)
}

func TestSubmit_NonZeroExitFailsJob(t *testing.T) {
	worker := writeFakeWorker(t, t.TempDir(), 2, 10)
	s, _, _ := newTestScheduler(t, worker, 1)

	job, err := s.Submit(Submission{Kind: KindSim, Action: "run", Payload: map[string]any{}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := s.Get(job.JobID)
		return ok && j.Status == StatusFailed
	}, 3*time.Second, 10*time.Millisecond)

	j, _ := s.Get(job.JobID)
	assert.Equal(t, "invalid config", j.Error)
}

func TestSubmit_TwoJobsOneSlotRunSequentially(t *testing.T) {
	worker := writeFakeWorker(t, t.TempDir(), 0, 50)
	s, _, _ := newTestScheduler(t, worker, 1)

	job1, err := s.Submit(Submission{Kind: KindSim, Action: "run", Payload: map[string]any{}})
	require.NoError(t, err)
	job2, err := s.Submit(Submission{Kind: KindSim, Action: "run", Payload: map[string]any{}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := s.Get(job2.JobID)
		return ok && j.Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	j1, _ := s.Get(job1.JobID)
	assert.Equal(t, StatusCompleted, j1.Status)
	assert.True(t, job1.RunID < job2.RunID || job1.RunID == job2.RunID)
}

func TestParseProgressLine(t *testing.T) {
	rec, ok := parseProgressLine(`PROGRESS {"status":"running","step_index":2,"progress":0.3}`)
	require.True(t, ok)
	assert.Equal(t, 2, rec.StepIndex)

	_, ok = parseProgressLine("not a progress line")
	assert.False(t, ok)
}
