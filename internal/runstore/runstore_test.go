package runstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_UniqueAcrossConcurrentSubmissions(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	const n = 50
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run, err := store.AllocateWithRetry(KindSim, 3)
			require.NoError(t, err)
			ids[i] = run.ID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.False(t, seen[id], "duplicate run id %s", id)
		seen[id] = true
	}
}

func TestAllocate_CreatesSkeleton(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	run, err := store.Allocate(KindRis)
	require.NoError(t, err)

	for _, sub := range []string{"data", "plots", "viewer"} {
		info, err := os.Stat(filepath.Join(run.Dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWriteAtomic_NoPartialReads(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	run, err := store.Allocate(KindSim)
	require.NoError(t, err)

	payload := []byte(`{"status":"running"}`)
	require.NoError(t, store.WriteAtomic(run, "progress.json", payload))

	data, err := os.ReadFile(filepath.Join(run.Dir, "progress.json"))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestOpen_NotFound(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = store.Open("nonexistent")
	require.Error(t, err)
}

func TestList_ReverseChronologicalAndInitializing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	run1, err := store.Allocate(KindSim)
	require.NoError(t, err)
	run2, err := store.Allocate(KindSim)
	require.NoError(t, err)
	require.NoError(t, store.WriteAtomic(run1, "summary.json", []byte(`{}`)))
	// run2 deliberately left without summary.json to exercise the
	// "initializing" reporting of partially initialized directories.

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run2.ID, runs[0].ID)
	assert.Equal(t, StatusInitializing, runs[0].Status)
	assert.Equal(t, run1.ID, runs[1].ID)
	assert.Equal(t, StatusCompleted, runs[1].Status)
}

func TestList_ReportsFailedStatusFromSummary(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	run, err := store.Allocate(KindRis)
	require.NoError(t, err)
	require.NoError(t, store.WriteAtomic(run, "summary.json", []byte(`{"status":"failed"}`)))

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
}

func TestList_UsesIndexCacheForTerminalStatusAndSkipsCacheDir(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	done, err := store.Allocate(KindSim)
	require.NoError(t, err)
	require.NoError(t, store.WriteAtomic(done, "summary.json", []byte(`{"status":"completed"}`)))

	cache, err := OpenIndexCache(root)
	require.NoError(t, err)
	defer cache.Close()
	require.NoError(t, cache.Rebuild(store))
	store.SetIndexCache(cache)

	// Overwrite the on-disk status without touching the cache: List should
	// still report the cached terminal status, proving it is actually
	// consulted rather than always re-stat'd.
	require.NoError(t, store.WriteAtomic(done, "summary.json", []byte(`{"status":"failed"}`)))

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1, "the _index_cache directory must not be listed as a run")
	assert.Equal(t, done.ID, runs[0].ID)
	assert.Equal(t, StatusCompleted, runs[0].Status)

	cachedKind, cachedStatus, ok := cache.Get(done.ID)
	require.True(t, ok)
	assert.Equal(t, KindSim, cachedKind)
	assert.Equal(t, StatusCompleted, cachedStatus)
}
