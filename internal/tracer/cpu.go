package tracer

import (
	"context"
	"fmt"
	"math"
)

const speedOfLightMPerS = 299_792_458.0

// cpuTracer is the LLVM/CPU backend: a free-space-path-loss estimate per
// grid cell plus one direct line-of-sight path per receiver. The real
// wave-propagation solver is out of scope (spec.md §1); this keeps the
// facade's contract exercised end to end without it.
type cpuTracer struct{}

func newCPUTracer() *cpuTracer { return &cpuTracer{} }

func (t *cpuTracer) Backend() Backend { return BackendCPU }

func (t *cpuTracer) Trace(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Backend: BackendCPU}
	freqHz := req.Scene.FrequencyHz
	if freqHz <= 0 {
		freqHz = 2.4e9
	}

	if req.Grid != nil {
		rows := len(req.Grid.CellCenters)
		heat := make([][]float64, rows)
		for r, row := range req.Grid.CellCenters {
			vals := make([]float64, len(row))
			for c, cell := range row {
				vals[c] = req.Scene.TxPowerDBM - freeSpacePathLossDB(req.Scene.Transmitter, cell, freqHz)
			}
			heat[r] = vals
		}
		res.HeatmapDB = heat
	}

	res.Markers = map[string][3]float64{"tx": req.Scene.Transmitter}
	for i, rx := range req.Scene.Receivers {
		res.Markers[fmt.Sprintf("rx_%d", i)] = rx
	}

	for i, rx := range req.Scene.Receivers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		pathLossDB := freeSpacePathLossDB(req.Scene.Transmitter, rx, freqHz)
		lengthM := distance(req.Scene.Transmitter, rx)
		res.Paths = append(res.Paths, Path{
			PathID:       fmt.Sprintf("los-%d", i),
			Points:       [][3]float64{req.Scene.Transmitter, rx},
			Order:        0,
			Type:         "los",
			PathLengthM:  lengthM,
			DelaySeconds: lengthM / speedOfLightMPerS,
			PowerDB:      req.Scene.TxPowerDBM - pathLossDB,
		})
	}
	return res, nil
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// freeSpacePathLossDB is the Friis free-space path loss in dB:
// 20*log10(4*pi*d*f/c). d == 0 is clamped to avoid -Inf.
func freeSpacePathLossDB(tx, rx [3]float64, freqHz float64) float64 {
	d := distance(tx, rx)
	if d < 1e-6 {
		d = 1e-6
	}
	return 20 * math.Log10(4*math.Pi*d*freqHz/speedOfLightMPerS)
}
