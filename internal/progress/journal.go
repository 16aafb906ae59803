// Package progress implements ProgressJournal (spec.md §4.2): a
// single-writer-per-run, many-reader, file-backed progress+log channel
// keyed by run id. Writers replace progress.json atomically; readers never
// block on a writer and never observe a partial document.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
)

// Status mirrors runstore.Status for the subset a ProgressRecord can hold.
type Status = runstore.Status

// Record is the ProgressRecord of spec.md §3. Monotone in
// (StepIndex, Progress); Error is set iff Status is failed.
type Record struct {
	Status     Status   `json:"status"`
	StepIndex  int      `json:"step_index"`
	StepName   string   `json:"step_name"`
	TotalSteps int      `json:"total_steps"`
	Progress   *float64 `json:"progress"`
	Error      *string  `json:"error"`
	UpdatedAt  string   `json:"updated_at"`
}

// isTerminal reports whether s is a status from which no further
// transition is permitted.
func isTerminal(s Status) bool {
	return s == runstore.StatusCompleted || s == runstore.StatusFailed
}

// Journal owns progress.json and run.log for every run under root, serializing
// writes per run id.
type Journal struct {
	root string

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	latest  map[string]Record
	notify  map[string][]chan struct{}
}

// New returns a Journal rooted at the same directory RunStore uses.
func New(root string) *Journal {
	return &Journal{
		root:   root,
		locks:  map[string]*sync.Mutex{},
		latest: map[string]Record{},
		notify: map[string][]chan struct{}{},
	}
}

func (j *Journal) lockFor(runID string) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()
	l, ok := j.locks[runID]
	if !ok {
		l = &sync.Mutex{}
		j.locks[runID] = l
	}
	return l
}

func (j *Journal) progressPath(runID string) string {
	return filepath.Join(j.root, runID, "progress.json")
}

func (j *Journal) logPath(runID string) string {
	return filepath.Join(j.root, runID, "run.log")
}

// Update overwrites progress.json atomically, enforcing the valid
// transitions of spec.md §4.2: any -> running (once, from queued);
// running -> running with non-decreasing (step_index, progress);
// running -> completed|failed. Out-of-order updates are dropped rather
// than applied, and a terminal status, once written, is never replaced
// (spec.md §5 ordering guarantee 3).
func (j *Journal) Update(runID string, next Record) error {
	lock := j.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	current, _ := j.snapshotLocked(runID)
	if !transitionAllowed(current, next) {
		return nil // clamp: silently drop the out-of-order update
	}
	next.UpdatedAt = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	payload, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "marshal progress record", err)
	}
	if err := runstore.WriteAtomicFile(j.progressPath(runID), payload); err != nil {
		return err
	}

	j.mu.Lock()
	j.latest[runID] = next
	for _, ch := range j.notify[runID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	j.mu.Unlock()
	return nil
}

func transitionAllowed(current *Record, next Record) bool {
	if current == nil {
		return true
	}
	if isTerminal(current.Status) {
		return false
	}
	if current.Status == runstore.StatusQueued && next.Status == runstore.StatusRunning {
		return true
	}
	if current.Status == runstore.StatusRunning {
		switch next.Status {
		case runstore.StatusCompleted, runstore.StatusFailed:
			return true
		case runstore.StatusRunning:
			return nonDecreasing(*current, next)
		}
		return false
	}
	if current.Status == next.Status {
		return nonDecreasing(*current, next)
	}
	return false
}

func nonDecreasing(current, next Record) bool {
	if next.StepIndex != current.StepIndex {
		return next.StepIndex > current.StepIndex
	}
	cp, np := 0.0, 0.0
	if current.Progress != nil {
		cp = *current.Progress
	}
	if next.Progress != nil {
		np = *next.Progress
	}
	return np >= cp
}

// Snapshot returns the latest record without blocking writers, reading
// from the in-memory cache when available and falling back to disk
// otherwise (e.g. after a process restart with a still-running worker).
func (j *Journal) Snapshot(runID string) (*Record, error) {
	if rec, ok := j.snapshotLocked(runID); ok {
		return rec, nil
	}
	data, err := os.ReadFile(j.progressPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.KindNotFound, "no progress recorded for run: "+runID)
		}
		return nil, apperr.Wrap(apperr.KindIO, "read progress.json", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "unmarshal progress.json", err)
	}
	return &rec, nil
}

func (j *Journal) snapshotLocked(runID string) (*Record, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.latest[runID]
	if !ok {
		return nil, false
	}
	return &rec, true
}

// Subscribe returns a channel that receives a notification (best-effort,
// coalesced) whenever Update successfully writes a new record for runID.
// This is the in-memory broadcast extension point spec.md §9 allows in
// place of polling; the file-on-disk contract is still maintained for
// reader compatibility via Snapshot.
func (j *Journal) Subscribe(runID string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	j.mu.Lock()
	j.notify[runID] = append(j.notify[runID], ch)
	j.mu.Unlock()
	return ch
}

// AppendLog appends a UTF-8 line to run.log with a monotonic timestamp
// prefix, serialized within a run (spec.md §4.2).
func (j *Journal) AppendLog(runID, line string) error {
	lock := j.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(j.logPath(runID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "open run.log", err)
	}
	defer f.Close()

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	_, err = fmt.Fprintf(f, "%s %s\n", ts, line)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "append run.log", err)
	}
	return nil
}
