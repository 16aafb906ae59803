package gridalign

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign_S5SnapAndRecenter(t *testing.T) {
	g, err := Align(Request{
		RequestedSize: [2]float64{37.3, 18.7},
		CellSize:      [2]float64{1.0, 0.5},
		Center:        [3]float64{10, 2, 1.5},
	})
	require.NoError(t, err)
	assert.InDelta(t, 38.0, g.Size[0], 1e-9)
	assert.InDelta(t, 19.0, g.Size[1], 1e-9)

	c := g.CellCenters[0][0]
	assert.InDelta(t, -8.5, c[0], 1e-9)
	assert.InDelta(t, -7.25, c[1], 1e-9)
	assert.InDelta(t, 1.5, c[2], 1e-9)
}

func TestAlign_TieBreakKeepsExactMultiple(t *testing.T) {
	g, err := Align(Request{
		RequestedSize: [2]float64{10, 10},
		CellSize:      [2]float64{2, 2},
		Center:        [3]float64{0, 0, 0},
	})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, g.Size[0], 1e-9)
	assert.InDelta(t, 10.0, g.Size[1], 1e-9)
}

func TestAlign_MinimumTwoCells(t *testing.T) {
	g, err := Align(Request{
		RequestedSize: [2]float64{0.5, 0.5},
		CellSize:      [2]float64{1, 1},
		Center:        [3]float64{0, 0, 0},
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, g.Size[0], 1e-9)
	assert.InDelta(t, 2.0, g.Size[1], 1e-9)
}

func TestAlign_Idempotent(t *testing.T) {
	req := Request{
		RequestedSize: [2]float64{37.3, 18.7},
		CellSize:      [2]float64{1.0, 0.5},
		Center:        [3]float64{10, 2, 1.5},
	}
	g1, err := Align(req)
	require.NoError(t, err)

	req2 := req
	req2.RequestedSize = g1.Size
	g2, err := Align(req2)
	require.NoError(t, err)

	assert.Equal(t, g1.Size, g2.Size)
}

func TestAlign_RejectsNonPositiveCellSize(t *testing.T) {
	_, err := Align(Request{
		RequestedSize: [2]float64{10, 10},
		CellSize:      [2]float64{0, 1},
		Center:        [3]float64{0, 0, 0},
	})
	require.Error(t, err)
}

func TestAlign_RejectsNonFiniteCenter(t *testing.T) {
	_, err := Align(Request{
		RequestedSize: [2]float64{10, 10},
		CellSize:      [2]float64{1, 1},
		Center:        [3]float64{math.Inf(1), 0, 0},
	})
	require.Error(t, err)
}

func TestAlign_AutoSizeUsesDeviceBoundingBox(t *testing.T) {
	g, err := Align(Request{
		CellSize: [2]float64{1, 1},
		Center:   [3]float64{0, 0, 0},
		AutoSize: true,
		Padding:  1,
		Devices: []Device{
			{X: -2, Y: -1},
			{X: 3, Y: 2},
		},
	})
	require.NoError(t, err)
	// bbox width = 5 + 2*1 = 7, height = 3 + 2*1 = 5, both already integer
	// multiples of the unit cell size.
	assert.InDelta(t, 7.0, g.Size[0], 1e-9)
	assert.InDelta(t, 5.0, g.Size[1], 1e-9)
}
