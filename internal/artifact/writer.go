// Package artifact implements ArtifactWriter (spec.md §4.5): renders the
// fixed artifact set for each run kind. Every write goes through
// runstore's atomic replace primitive so a concurrent reader never
// observes a truncated or half-written document.
package artifact

import (
	"encoding/json"
	"path/filepath"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
)

// Writer renders artifacts into one run's directory.
type Writer struct {
	store *runstore.Store
	run   *runstore.Run
}

// New returns a Writer scoped to run.
func New(store *runstore.Store, run *runstore.Run) *Writer {
	return &Writer{store: store, run: run}
}

// writeJSON marshals v and atomically replaces relPath under the run
// directory.
func (w *Writer) writeJSON(relPath string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "marshal "+relPath, err)
	}
	return w.store.WriteAtomic(w.run, relPath, payload)
}

// writeBytes atomically replaces relPath with raw bytes (png/npy/npz/csv
// artifacts that are rendered elsewhere and handed to the writer whole).
func (w *Writer) writeBytes(relPath string, data []byte) error {
	return w.store.WriteAtomic(w.run, relPath, data)
}

// Path returns the absolute path of an artifact, for components (e.g. the
// gateway's static file service) that need to stat or stream it directly
// rather than through the Writer.
func (w *Writer) Path(relPath string) string {
	return filepath.Join(w.run.Dir, relPath)
}
