// Package runstore implements RunStore (spec.md §4.1): allocates run
// identifiers, creates and owns the per-run directory tree, and writes
// atomic JSON/log/binary artifacts. The directory tree is append-only once
// a run reaches a terminal status; RunStore never deletes a directory.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// Kind is a run's job family.
type Kind string

const (
	KindSim Kind = "sim"
	KindRis Kind = "ris"
)

// Status is a run's lifecycle stage (spec.md §4.6).
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusQueued       Status = "queued"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Run identifies one allocated run directory.
type Run struct {
	ID   string
	Kind Kind
	Dir  string
}

// subdirs created under every run directory at allocation time (spec.md
// §3's directory skeleton).
var subdirs = []string{"data", "plots", "viewer"}

// Store owns the run directory tree rooted at Root.
type Store struct {
	Root string

	mu      sync.Mutex
	lastSec string
	counter int
	cache   *IndexCache
}

// SetIndexCache attaches (or, with nil, detaches) the derived index
// accelerator List consults. The caller is expected to have already
// rebuilt it from disk (IndexCache.Rebuild) before attaching.
func (s *Store) SetIndexCache(c *IndexCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c
}

func (s *Store) indexCache() *IndexCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache
}

// NoteStatus updates the attached index cache (a no-op if none is
// attached) for a run id whose kind/status the caller already knows,
// sparing List() a disk stat the next time it is asked to list this run.
func (s *Store) NoteStatus(runID string, kind Kind, status Status) {
	if cache := s.indexCache(); cache != nil {
		_ = cache.Put(runID, kind, status)
	}
}

// New returns a Store rooted at root, creating the root directory if
// necessary.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "create run root", err)
	}
	return &Store{Root: root}, nil
}

// nextID generates a monotonic run id of the form YYYYMMDD-HHMMSS-NNNNN
// (spec.md §3): UTC wall clock plus a 5-digit per-second counter that is
// monotonic within this process.
func (s *Store) nextID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := now.UTC().Format("20060102-150405")
	if sec == s.lastSec {
		s.counter++
	} else {
		s.lastSec = sec
		s.counter = 0
	}
	return fmt.Sprintf("%s-%05d", sec, s.counter)
}

// Allocate assigns a fresh run id and atomically creates the directory
// skeleton. Returns apperr.KindCollision if the directory already exists;
// the caller (JobScheduler) is expected to retry with a new id per §4.6.
func (s *Store) Allocate(kind Kind) (*Run, error) {
	id := s.nextID(time.Now())
	dir := filepath.Join(s.Root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, apperr.New(apperr.KindCollision, "run directory already exists: "+id)
		}
		return nil, apperr.Wrap(apperr.KindIO, "create run directory", err)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "create run subdirectory", err)
		}
	}
	return &Run{ID: id, Kind: kind, Dir: dir}, nil
}

// AllocateWithRetry calls Allocate up to maxAttempts times, retrying on
// collision (spec.md §4.6 "RunStore CollisionError: scheduler retries up
// to 3 times with a new id, then fails the submission").
func (s *Store) AllocateWithRetry(kind Kind, maxAttempts int) (*Run, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		run, err := s.Allocate(kind)
		if err == nil {
			return run, nil
		}
		if !apperr.Is(err, apperr.KindCollision) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// WriteAtomic writes data under run/relPath via write-to-temp-then-rename
// so concurrent readers never observe a partial file (spec.md §4.1, §4.6
// invariant 2).
func (s *Store) WriteAtomic(run *Run, relPath string, data []byte) error {
	return WriteAtomicFile(filepath.Join(run.Dir, relPath), data)
}

// WriteAtomicFile is the free-standing atomic-replace primitive used by
// RunStore, ProgressJournal, and ArtifactWriter alike: write to a sibling
// temp file, fsync, then rename over the destination.
func WriteAtomicFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindIO, "mkdir for atomic write", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed away

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.Wrap(apperr.KindIO, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperr.Wrap(apperr.KindIO, "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(apperr.KindIO, "close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return apperr.Wrap(apperr.KindIO, "rename temp file into place", err)
	}
	return nil
}

// Open returns the directory handle for an existing run, failing with
// apperr.KindNotFound if the directory is absent.
func (s *Store) Open(runID string) (*Run, error) {
	dir := filepath.Join(s.Root, runID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperr.New(apperr.KindNotFound, "run not found: "+runID)
	}
	return &Run{ID: runID, Dir: dir, Kind: inferKind(dir)}, nil
}

// ListedRun is a directory entry surfaced by List; partially initialized
// directories (missing summary.json) are reported as StatusInitializing
// per spec.md §4.1.
type ListedRun struct {
	ID     string
	Kind   Kind
	Status Status
}

// List enumerates run ids discovered on disk in reverse-chronological
// order, optionally filtered to the given kinds. String order on the
// YYYYMMDD-HHMMSS-NNNNN id is chronological, so a plain reverse sort
// suffices (spec.md §4.1).
func (s *Store) List(kinds ...Kind) ([]ListedRun, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "read run root", err)
	}
	want := map[Kind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	cache := s.indexCache()
	var out []ListedRun
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		kind, status, cached := lookupCached(cache, e.Name())
		if !cached {
			dir := filepath.Join(s.Root, e.Name())
			kind = inferKind(dir)
			status = statusOf(dir)
			if cache != nil {
				_ = cache.Put(e.Name(), kind, status)
			}
		}
		if len(want) > 0 && !want[kind] {
			continue
		}
		out = append(out, ListedRun{ID: e.Name(), Kind: kind, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// lookupCached returns a cache hit only for a terminal status: queued and
// running runs can still advance on disk, so those are always re-stat'd
// and the cache refreshed with whatever is found.
func lookupCached(cache *IndexCache, runID string) (kind Kind, status Status, ok bool) {
	if cache == nil {
		return "", "", false
	}
	kind, status, hit := cache.Get(runID)
	if !hit || (status != StatusCompleted && status != StatusFailed) {
		return "", "", false
	}
	return kind, status, true
}

// statusOf reads summary.json's "status" field, the authoritative record
// of a run's terminal outcome (ArtifactWriter always writes it before a
// worker exits). A missing file means the run hasn't reached its first
// artifact write yet; a present-but-unparseable or status-less file is
// treated as completed, matching a summary.json written before this field
// existed.
func statusOf(dir string) Status {
	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		return StatusInitializing
	}
	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.Status == "" {
		return StatusCompleted
	}
	switch Status(parsed.Status) {
	case StatusInitializing, StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return Status(parsed.Status)
	default:
		return StatusCompleted
	}
}

// inferKind guesses a run's kind from the presence of metrics.json (RIS
// only artifact per spec.md §4.5); callers that need the authoritative
// kind should read it from config.json/summary.json instead.
func inferKind(dir string) Kind {
	if _, err := os.Stat(filepath.Join(dir, "metrics.json")); err == nil {
		return KindRis
	}
	return KindSim
}
