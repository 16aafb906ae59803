package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saladfingers379/RIS-SIONNA/internal/gridalign"
	"github.com/saladfingers379/RIS-SIONNA/internal/riskernel"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
)

func newTestWriter(t *testing.T) (*Writer, *runstore.Run) {
	t.Helper()
	store, err := runstore.New(t.TempDir())
	require.NoError(t, err)
	run, err := store.Allocate(runstore.KindSim)
	require.NoError(t, err)
	return New(store, run), run
}

func TestWriteHeatmap_ProducesJSONAndNPZ(t *testing.T) {
	w, run := newTestWriter(t)
	grid, err := gridalign.Align(gridalign.Request{
		CellSize: [2]float64{1, 1},
		Center:   [3]float64{0, 0, 0},
		RequestedSize: [2]float64{4, 4},
	})
	require.NoError(t, err)

	values := make([][]float64, len(grid.CellCenters))
	for r := range values {
		values[r] = make([]float64, len(grid.CellCenters[r]))
	}
	h := NewHeatmap("rss_db", grid, values)
	require.NoError(t, w.WriteHeatmap(h))

	data, err := os.ReadFile(filepath.Join(run.Dir, "viewer", "heatmap.json"))
	require.NoError(t, err)
	var decoded Heatmap
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "rss_db", decoded.Metric)

	npzData, err := os.ReadFile(filepath.Join(run.Dir, "viewer", "heatmap.npz"))
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(npzData), int64(len(npzData)))
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["values.npy"])
	assert.True(t, names["cell_centers.npy"])
}

func TestWriteConfigSnapshot_HashIsDeterministic(t *testing.T) {
	w, _ := newTestWriter(t)
	cfg := map[string]any{"a": 1, "b": "two"}

	hash1, err := w.WriteConfigSnapshot(cfg)
	require.NoError(t, err)
	hash2, err := w.WriteConfigSnapshot(cfg)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 64)
}

func TestWritePatternData_RoundTripsShape(t *testing.T) {
	w, run := newTestWriter(t)
	phase := riskernel.PhaseMap{{0.1, 0.2}, {0.3, 0.4}}
	theta := []float64{-1, 0, 1}
	linear := []float64{0.1, 1.0, 0.1}
	db := []float64{-10, 0, -10}

	require.NoError(t, w.WritePatternData(phase, theta, linear, db))
	for _, name := range []string{"phase_map.npy", "theta_deg.npy", "pattern_linear.npy", "pattern_db.npy"} {
		info, err := os.Stat(filepath.Join(run.Dir, "data", name))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestWriteRisMetrics_OmitsValidationInPatternMode(t *testing.T) {
	w, run := newTestWriter(t)
	first := 12.5
	require.NoError(t, w.WriteRisMetrics(&RisMetrics{Peak: -3, PeakDeg: 30, FirstNullDeg: &first}))

	data, err := os.ReadFile(filepath.Join(run.Dir, "metrics.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "validation")
}
