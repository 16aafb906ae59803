package gateway

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// handleListRuns implements GET /api/runs: reverse-chronological listing
// with a viewer-presence flag and, when available, the run's summary.json.
func (g *Gateway) handleListRuns(c *gin.Context) {
	listed, err := g.store.List()
	if err != nil {
		writeError(c, err)
		return
	}

	type runEntry struct {
		RunID      string `json:"run_id"`
		Kind       string `json:"kind"`
		Status     string `json:"status"`
		HasViewer  bool   `json:"has_viewer"`
		Summary    any    `json:"summary,omitempty"`
	}
	out := make([]runEntry, 0, len(listed))
	for _, r := range listed {
		run, err := g.store.Open(r.ID)
		entry := runEntry{RunID: r.ID, Kind: string(r.Kind), Status: string(r.Status)}
		if err == nil {
			if _, statErr := os.Stat(filepath.Join(run.Dir, "viewer", "heatmap.json")); statErr == nil {
				entry.HasViewer = true
			}
			if summary, readErr := readJSONFile(filepath.Join(run.Dir, "summary.json")); readErr == nil {
				entry.Summary = summary
			}
		}
		out = append(out, entry)
	}
	c.JSON(200, gin.H{"runs": out})
}

// handleGetRun implements GET /api/run/{run_id}: {config, summary,
// progress}, each field omitted (null) if the artifact is absent.
func (g *Gateway) handleGetRun(c *gin.Context) {
	runID := c.Param("run_id")
	run, err := g.store.Open(runID)
	if err != nil {
		writeError(c, err)
		return
	}

	config, _ := readJSONFile(filepath.Join(run.Dir, "config.json"))
	summary, _ := readJSONFile(filepath.Join(run.Dir, "summary.json"))
	var progressOut any
	if rec, err := g.journal.Snapshot(runID); err == nil {
		progressOut = rec
	}

	c.JSON(200, gin.H{"config": config, "summary": summary, "progress": progressOut})
}

// handleGetProgress implements GET /api/progress/{run_id}.
func (g *Gateway) handleGetProgress(c *gin.Context) {
	runID := c.Param("run_id")
	rec, err := g.journal.Snapshot(runID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, rec)
}

func readJSONFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// writeError maps an apperr.Kind to its HTTP status (spec.md §7
// "InvalidConfig and NotFound are surfaced locally (HTTP 4xx)").
func writeError(c *gin.Context, err error) {
	status := 500
	var appErr *apperr.Error
	if as, ok := err.(*apperr.Error); ok {
		appErr = as
		status = appErr.Kind.HTTPStatus()
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
