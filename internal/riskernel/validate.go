package riskernel

import "math"

// ValidationResult is the spec.md §4.4 op 5 result.
type ValidationResult struct {
	RMSEDB       float64
	PeakDegError float64
	PeakDBError  float64
	Pass         bool
}

// ValidationThresholds are the fixed pass/fail bounds of spec.md §4.4 op 5.
type ValidationThresholds struct {
	RMSEDBMax     float64
	PeakDegErrMax float64
}

// Validate implements spec.md §4.4 op 5: references are peak-normalized
// and resampled onto the computed theta grid by linear interpolation with
// edge clamping, then compared by RMSE and peak location/level error.
func Validate(thetaDeg, patternDB, refTheta, refPattern []float64, thresholds ValidationThresholds) ValidationResult {
	refDB := resampleLinearClamped(refTheta, peakNormalizeDB(refPattern), thetaDeg)
	computedDB := peakNormalizeDB(patternDB)

	sumSq := 0.0
	for i := range computedDB {
		d := computedDB[i] - refDB[i]
		sumSq += d * d
	}
	rmse := math.Sqrt(sumSq / float64(len(computedDB)))

	compPeakIdx := argmax(computedDB)
	refPeakIdx := argmax(refDB)
	peakDegErr := thetaDeg[compPeakIdx] - thetaDeg[refPeakIdx]
	peakDBErr := computedDB[compPeakIdx] - refDB[refPeakIdx]

	pass := rmse <= thresholds.RMSEDBMax && math.Abs(peakDegErr) <= thresholds.PeakDegErrMax
	return ValidationResult{RMSEDB: rmse, PeakDegError: peakDegErr, PeakDBError: peakDBErr, Pass: pass}
}

// peakNormalizeDB re-normalizes an already-dB series so its peak is 0 dB,
// matching "references are peak-normalized" in spec.md §4.4 op 5.
func peakNormalizeDB(db []float64) []float64 {
	peak := db[argmax(db)]
	out := make([]float64, len(db))
	for i, v := range db {
		out[i] = v - peak
	}
	return out
}

// resampleLinearClamped linearly interpolates y (sampled at xs) onto the
// query points xq, clamping to the edge values outside [min(xs), max(xs)].
func resampleLinearClamped(xs, ys, xq []float64) []float64 {
	out := make([]float64, len(xq))
	for i, x := range xq {
		out[i] = interp1(xs, ys, x)
	}
	return out
}

func interp1(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if n == 1 || x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	for i := 1; i < n; i++ {
		if x <= xs[i] {
			x0, x1 := xs[i-1], xs[i]
			y0, y1 := ys[i-1], ys[i]
			if x1 == x0 {
				return y0
			}
			t := (x - x0) / (x1 - x0)
			return y0 + t*(y1-y0)
		}
	}
	return ys[n-1]
}
