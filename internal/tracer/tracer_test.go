package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/gridalign"
)

func TestSelect_DefaultsToCPU(t *testing.T) {
	tr, err := Select("", false, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendCPU, tr.Backend())
}

func TestSelect_GPURequestedUnavailableNoFallback_Errors(t *testing.T) {
	_, err := Select(BackendGPU, false, func() bool { return false })
	require.Error(t, err)
	appErr, ok := err.(*apperr.Error)
	require.True(t, ok)
	assert.Equal(t, apperr.KindBackendUnavailable, appErr.Kind)
	assert.Equal(t, "RT backend is CUDA/OptiX", appErr.Message)
}

func TestSelect_GPURequestedUnavailableWithFallback_ReturnsCPU(t *testing.T) {
	tr, err := Select(BackendGPU, true, func() bool { return false })
	require.NoError(t, err)
	assert.Equal(t, BackendCPU, tr.Backend())
}

func TestSelect_GPURequestedAvailable_ReturnsGPU(t *testing.T) {
	tr, err := Select(BackendGPU, false, func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, BackendGPU, tr.Backend())
}

func TestCPUTracer_TraceProducesHeatmapAndPaths(t *testing.T) {
	grid, err := gridalign.Align(gridalign.Request{
		RequestedSize: [2]float64{10, 10},
		CellSize:      [2]float64{2, 2},
		Center:        [3]float64{0, 0, 1.5},
	})
	require.NoError(t, err)

	tr := newCPUTracer()
	res, err := tr.Trace(context.Background(), Request{
		Scene: Scene{
			Transmitter: [3]float64{0, 0, 2},
			Receivers:   [][3]float64{{5, 5, 1.5}},
			FrequencyHz: 2.4e9,
			TxPowerDBM:  20,
		},
		Grid: grid,
	})
	require.NoError(t, err)
	assert.Len(t, res.HeatmapDB, len(grid.CellCenters))
	assert.Len(t, res.Paths, 1)
	assert.Equal(t, "los-0", res.Paths[0].PathID)
	assert.Contains(t, res.Markers, "tx")
	assert.Contains(t, res.Markers, "rx_0")
}
