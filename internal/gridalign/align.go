// Package gridalign implements GridAligner (spec.md §4.3): snapping a
// requested radio-map rectangle to an integer number of cells centered on a
// requested center, and emitting the canonical cell_centers every other
// component treats as ground truth for placement (spec.md §9 design note).
package gridalign

import (
	"math"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// Device is a point of interest considered when AutoSize inflates the
// requested rectangle to the bounding box of devices (spec.md §4.3 step 1).
type Device struct {
	X, Y float64
}

// Request is the GridAligner input (spec.md §4.3).
type Request struct {
	RequestedSize [2]float64 // (width, height); ignored if AutoSize
	CellSize      [2]float64 // (cx, cy)
	Center        [3]float64 // (x, y, z)
	AutoSize      bool
	Padding       float64
	Devices       []Device // bounding-box members when AutoSize is set
}

// Grid is the canonical RadioMapGrid artifact (spec.md §3).
type Grid struct {
	CellSize       [2]float64
	Center         [3]float64
	Size           [2]float64
	OrientationRad [3]float64
	// CellCenters[row][col] = (x, y, z); row indexes Y, col indexes X.
	CellCenters [][][3]float64
	XS          []float64
	YS          []float64
}

// Align implements spec.md §4.3's four-step algorithm.
func Align(req Request) (*Grid, error) {
	if req.CellSize[0] <= 0 || req.CellSize[1] <= 0 {
		return nil, apperr.New(apperr.KindInvalidGrid, "cell_size must be positive on both axes")
	}
	for _, c := range req.Center {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, apperr.New(apperr.KindInvalidGrid, "center must be finite")
		}
	}

	width, height := req.RequestedSize[0], req.RequestedSize[1]
	if req.AutoSize {
		width, height = boundingBoxSize(req.Devices, req.Padding)
	}
	if width <= 0 || height <= 0 {
		return nil, apperr.New(apperr.KindInvalidGrid, "requested_size must be positive on both axes")
	}

	snappedW := snapUp(width, req.CellSize[0])
	snappedH := snapUp(height, req.CellSize[1])
	if snappedW < 2*req.CellSize[0] {
		snappedW = 2 * req.CellSize[0]
	}
	if snappedH < 2*req.CellSize[1] {
		snappedH = 2 * req.CellSize[1]
	}

	g := &Grid{
		CellSize: req.CellSize,
		Center:   req.Center,
		Size:     [2]float64{snappedW, snappedH},
	}
	g.XS, g.YS = cellAxes(req.Center[0], req.Center[1], snappedW, snappedH, req.CellSize[0], req.CellSize[1])
	g.CellCenters = buildCellCenters(g.XS, g.YS, req.Center[2])
	return g, nil
}

// boundingBoxSize returns the (width, height) of the bounding box of
// devices inflated by padding on each side. An empty device set yields a
// box sized 2*padding on each axis, which the caller's positivity check
// rejects only when padding is not positive.
func boundingBoxSize(devices []Device, padding float64) (float64, float64) {
	if len(devices) == 0 {
		return 2 * padding, 2 * padding
	}
	minX, maxX := devices[0].X, devices[0].X
	minY, maxY := devices[0].Y, devices[0].Y
	for _, d := range devices[1:] {
		minX, maxX = math.Min(minX, d.X), math.Max(maxX, d.X)
		minY, maxY = math.Min(minY, d.Y), math.Max(maxY, d.Y)
	}
	return (maxX - minX) + 2*padding, (maxY - minY) + 2*padding
}

// snapUp rounds size up to the nearest multiple of cell, preferring the
// unchanged size when it already is a multiple (the tie-break of §4.3).
func snapUp(size, cell float64) float64 {
	ratio := size / cell
	n := math.Round(ratio)
	if n*cell < size-1e-9 {
		n = math.Ceil(ratio)
	}
	if n < 1 {
		n = 1
	}
	return n * cell
}

// cellAxes computes the canonical cell-center coordinate lists of §3:
// xs[i] = center.x - wx/2 + (i+0.5)*cx, for i in [0, wx/cx).
func cellAxes(centerX, centerY, w, h, cx, cy float64) (xs, ys []float64) {
	nx := int(math.Round(w / cx))
	ny := int(math.Round(h / cy))
	xs = make([]float64, nx)
	for i := 0; i < nx; i++ {
		xs[i] = centerX - w/2 + (float64(i)+0.5)*cx
	}
	ys = make([]float64, ny)
	for j := 0; j < ny; j++ {
		ys[j] = centerY - h/2 + (float64(j)+0.5)*cy
	}
	return xs, ys
}

func buildCellCenters(xs, ys []float64, z float64) [][][3]float64 {
	rows := make([][][3]float64, len(ys))
	for j, y := range ys {
		row := make([][3]float64, len(xs))
		for i, x := range xs {
			row[i] = [3]float64{x, y, z}
		}
		rows[j] = row
	}
	return rows
}
