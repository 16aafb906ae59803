package runstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// IndexCache is a derived, rebuildable accelerator for List() on large run
// roots: a small badger KV store keyed by run id, caching each run's Kind
// and Status so a listing call can skip re-statting every directory's
// summary.json. The on-disk directory tree remains RunStore's sole source
// of truth — IndexCache is rebuilt from it at startup (Rebuild) and kept
// current by Store.NoteStatus and Store.List's own miss-fill, never the
// other way around.
type IndexCache struct {
	db *badger.DB
}

type cacheEntry struct {
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
}

// OpenIndexCache opens (creating if absent) a badger store under
// <root>/_index_cache.
func OpenIndexCache(root string) (*IndexCache, error) {
	dir := filepath.Join(root, "_index_cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "create index cache dir", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "open index cache", err)
	}
	return &IndexCache{db: db}, nil
}

// Close releases the underlying badger handle.
func (c *IndexCache) Close() error {
	return c.db.Close()
}

// Put records the current kind/status of a run id. Called by
// Store.NoteStatus on every scheduler dispatch/reap status transition, and
// by Store.List itself whenever it has to fall back to a disk stat for a
// run the cache doesn't yet know about or hasn't reached a terminal status
// for.
func (c *IndexCache) Put(runID string, kind Kind, status Status) error {
	payload, err := json.Marshal(cacheEntry{Kind: kind, Status: status})
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runID), payload)
	})
}

// Get returns the cached kind/status for a run id, or ok=false on a miss —
// a miss is not an error, it just means the caller should fall back to a
// disk stat and populate the cache via Put.
func (c *IndexCache) Get(runID string) (kind Kind, status Status, ok bool) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var entry cacheEntry
			if err := json.Unmarshal(val, &entry); err != nil {
				return err
			}
			kind, status, ok = entry.Kind, entry.Status, true
			return nil
		})
	})
	if err != nil {
		return "", "", false
	}
	return kind, status, ok
}

// Rebuild repopulates the cache from disk, discarding any stale entries
// for run directories that no longer exist. Intended to run once at
// process startup before serving any List() calls.
func (c *IndexCache) Rebuild(store *Store) error {
	runs, err := store.List()
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		var stale [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			stale = append(stale, append([]byte(nil), iter.Item().Key()...))
		}
		iter.Close()
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for _, r := range runs {
			payload, err := json.Marshal(cacheEntry{Kind: r.Kind, Status: r.Status})
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(r.ID), payload); err != nil {
				return err
			}
		}
		return nil
	})
}
