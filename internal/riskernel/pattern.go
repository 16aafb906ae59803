package riskernel

import (
	"math"
	"math/cmplx"
)

// epsFloor is the noise floor used when taking 10*log10 of a linear
// pattern value, per spec.md §4.4 op 3.
const epsFloor = 1e-12

// RxSweep describes the principal-cut angular scan in degrees.
type RxSweep struct {
	StartDeg, StopDeg, StepDeg float64
}

// thetaGrid returns the inclusive scan of StartDeg..StopDeg by StepDeg,
// matching numpy.arange(start, stop+step/2, step) used by the original
// implementation so the endpoint is reliably included despite float step
// accumulation.
func (s RxSweep) thetaGrid() []float64 {
	if s.StepDeg <= 0 {
		return nil
	}
	n := int(math.Floor((s.StopDeg-s.StartDeg)/s.StepDeg+0.5)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.StartDeg+float64(i)*s.StepDeg)
	}
	return out
}

// direction returns the unit direction vector in the principal cut (the
// plane spanned by the panel's normal and local x-axis) for an angle
// measured from boresight (the normal), per spec.md §4.4 op 3 and the
// geometry built by ComputeLocalFrame.
func direction(frame Frame, angleDeg float64) Vec3 {
	rad := angleDeg * math.Pi / 180
	return frame.Z.scale(math.Cos(rad)).add(frame.X.scale(math.Sin(rad)))
}

// Normalization selects the pattern-sweep normalization of spec.md §4.4
// op 3.
type Normalization string

const (
	NormPeak0dB Normalization = "peak_0db"
	NormNone    Normalization = "none"
)

// PatternSweep implements spec.md §4.4 op 3: scans theta over the
// configured range in the principal cut defined by txAngleDeg, returning
// (theta_deg, pattern_linear, pattern_db).
func PatternSweep(geom *Geometry, phase PhaseMap, sweep RxSweep, frequencyHz, txAngleDeg float64, norm Normalization) (thetaDeg, patternLinear, patternDB []float64) {
	thetaDeg = sweep.thetaGrid()
	k := WaveNumber(frequencyHz)
	dTx := direction(geom.Frame, txAngleDeg)

	patternLinear = make([]float64, len(thetaDeg))
	for t, theta := range thetaDeg {
		dRx := direction(geom.Frame, theta)
		var sum complex128
		for j := 0; j < geom.NY; j++ {
			for i := 0; i < geom.NX; i++ {
				p := geom.Centers[j][i]
				totalPhase := phase[j][i] + k*(p.dot(dRx)-p.dot(dTx))
				sum += cmplx.Exp(complex(0, totalPhase))
			}
		}
		patternLinear[t] = cmplx.Abs(sum) * cmplx.Abs(sum)
	}

	patternLinear = applyNormalization(patternLinear, norm)
	patternDB = make([]float64, len(patternLinear))
	for i, v := range patternLinear {
		patternDB[i] = 10 * math.Log10(math.Max(v, epsFloor))
	}
	return thetaDeg, patternLinear, patternDB
}

func applyNormalization(linear []float64, norm Normalization) []float64 {
	if norm != NormPeak0dB {
		return linear
	}
	peak := 0.0
	for _, v := range linear {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return linear
	}
	out := make([]float64, len(linear))
	for i, v := range linear {
		out[i] = v / peak
	}
	return out
}

// LinkGain implements SPEC_FULL's supplemented link mode (original_source
// item 2): the same array-response computation as PatternSweep but
// evaluated at one angle, with no normalization applied.
func LinkGain(geom *Geometry, phase PhaseMap, frequencyHz, txAngleDeg, rxAngleDeg float64) (linear, db float64) {
	_, patternLinear, _ := PatternSweep(geom, phase, RxSweep{StartDeg: rxAngleDeg, StopDeg: rxAngleDeg, StepDeg: 1}, frequencyHz, txAngleDeg, NormNone)
	linear = patternLinear[0]
	db = 10 * math.Log10(math.Max(linear, epsFloor))
	return linear, db
}
