package progress

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// Watcher notifies subscribers when a run's progress.json or run.log
// changes on disk, sparing the gateway's SSE/WS fan-out from polling
// (spec.md §9 talks about push-based progress delivery; fsnotify is the
// mechanism the rest of this pack uses for that).
type Watcher struct {
	fsw *fsnotify.Watcher
	j   *Journal
}

// NewWatcher starts watching every currently-allocated run directory under
// root plus root itself (so newly allocated run directories are picked up).
func NewWatcher(j *Journal, root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "create fsnotify watcher", err)
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, apperr.Wrap(apperr.KindIO, "watch run root", err)
	}
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				_ = fsw.Add(filepath.Join(root, e.Name()))
			}
		}
	}
	w := &Watcher{fsw: fsw, j: j}
	go w.loop(root)
	return w, nil
}

func (w *Watcher) loop(root string) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(root, ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handle(root string, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	base := filepath.Base(ev.Name)
	dir := filepath.Dir(ev.Name)

	if dir == root {
		// A brand new run directory; start watching its files too.
		_ = w.fsw.Add(ev.Name)
		return
	}
	if base != "progress.json" && base != "run.log" {
		return
	}
	runID := filepath.Base(dir)
	w.j.mu.Lock()
	for _, ch := range w.j.notify[runID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	w.j.mu.Unlock()
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
