package riskernel

// SidelobeMetrics is the spec.md §4.4 op 4 result.
type SidelobeMetrics struct {
	PeakDeg      float64
	PeakDB       float64
	FirstNullDeg *float64
	SLLDB        *float64
}

// ComputeSidelobeMetrics implements spec.md §4.4 op 4: peak, first null on
// either side of the peak below peak-20dB, and side-lobe level (max outside
// the main lobe bounded by the two first nulls, minus peak).
func ComputeSidelobeMetrics(thetaDeg, patternDB []float64) SidelobeMetrics {
	peakIdx := argmax(patternDB)
	m := SidelobeMetrics{PeakDeg: thetaDeg[peakIdx], PeakDB: patternDB[peakIdx]}

	nullBelow := patternDB[peakIdx] - 20
	leftNull := findFirstNull(thetaDeg, patternDB, peakIdx, -1, nullBelow)
	rightNull := findFirstNull(thetaDeg, patternDB, peakIdx, +1, nullBelow)

	if leftNull != nil && rightNull == nil {
		m.FirstNullDeg = leftNull
	} else if rightNull != nil && leftNull == nil {
		m.FirstNullDeg = rightNull
	} else if leftNull != nil && rightNull != nil {
		// report whichever is angularly nearer to the peak
		if absF(*leftNull-m.PeakDeg) <= absF(*rightNull-m.PeakDeg) {
			m.FirstNullDeg = leftNull
		} else {
			m.FirstNullDeg = rightNull
		}
	}

	leftIdx, rightIdx := indexOf(thetaDeg, leftNull), indexOf(thetaDeg, rightNull)
	if leftIdx >= 0 && rightIdx >= 0 {
		maxOutside := negInf
		found := false
		for i, v := range patternDB {
			if i <= leftIdx || i >= rightIdx {
				if v > maxOutside {
					maxOutside = v
					found = true
				}
			}
		}
		if found {
			sll := maxOutside - m.PeakDB
			m.SLLDB = &sll
		}
	}
	return m
}

const negInf = -1e308

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// findFirstNull walks away from peakIdx in the given direction (+1 or -1)
// and returns the angle of the nearest local minimum whose value is below
// threshold, or nil if none is found before the array edge.
func findFirstNull(thetaDeg, patternDB []float64, peakIdx, dir int, threshold float64) *float64 {
	for i := peakIdx + dir; i > 0 && i < len(patternDB)-1; i += dir {
		isLocalMin := patternDB[i] <= patternDB[i-1] && patternDB[i] <= patternDB[i+1]
		if isLocalMin && patternDB[i] < threshold {
			v := thetaDeg[i]
			return &v
		}
	}
	return nil
}

func indexOf(thetaDeg []float64, val *float64) int {
	if val == nil {
		return -1
	}
	for i, v := range thetaDeg {
		if v == *val {
			return i
		}
	}
	return -1
}
