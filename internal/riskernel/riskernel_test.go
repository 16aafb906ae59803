package riskernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildS1Geometry(t *testing.T) *Geometry {
	t.Helper()
	geom, err := ComputeElementCenters(20, 20, 4.9e-3, 4.9e-3,
		Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0})
	require.NoError(t, err)
	return geom
}

func TestS1_SteerOneBitQuantization(t *testing.T) {
	geom := buildS1Geometry(t)
	freq := 28e9

	phase := SynthesizeSteer(geom, freq, 30, 0, 0)
	quant, err := Quantize(phase, 1)
	require.NoError(t, err)

	for _, row := range quant {
		for _, v := range row {
			assert.True(t, almostEqual(v, math.Pi/2) || almostEqual(v, -math.Pi/2),
				"phase %v not in {-pi/2, pi/2}", v)
		}
	}

	sweep := RxSweep{StartDeg: -90, StopDeg: 90, StepDeg: 2}
	thetaDeg, _, patternDB := PatternSweep(geom, quant, sweep, freq, 0, NormPeak0dB)
	m := ComputeSidelobeMetrics(thetaDeg, patternDB)

	assert.InDelta(t, 30, m.PeakDeg, 2.0)
	if m.SLLDB != nil {
		assert.LessOrEqual(t, *m.SLLDB, -8.0)
	}
}

func TestS2_FocusDeterministic(t *testing.T) {
	geom := buildS1Geometry(t)
	freq := 28e9
	focal := Vec3{1.0, 0, 0.8}

	p1 := SynthesizeFocus(geom, freq, focal)
	p2 := SynthesizeFocus(geom, freq, focal)
	assert.Equal(t, p1, p2)

	quant, err := Quantize(p1, 0)
	require.NoError(t, err)
	assert.Equal(t, p1, quant)
}

func TestS3_ValidatePassOnIdenticalReference(t *testing.T) {
	geom := buildS1Geometry(t)
	freq := 28e9
	phase := SynthesizeSteer(geom, freq, 30, 0, 0)
	quant, _ := Quantize(phase, 1)
	sweep := RxSweep{StartDeg: -90, StopDeg: 90, StepDeg: 2}
	thetaDeg, _, patternDB := PatternSweep(geom, quant, sweep, freq, 0, NormPeak0dB)

	result := Validate(thetaDeg, patternDB, thetaDeg, patternDB, ValidationThresholds{RMSEDBMax: 3.0, PeakDegErrMax: 2.0})
	assert.InDelta(t, 0, result.RMSEDB, 1e-9)
	assert.InDelta(t, 0, result.PeakDegError, 1e-9)
	assert.True(t, result.Pass)
}

func TestS4_ValidateFailsOnPeakShift(t *testing.T) {
	geom := buildS1Geometry(t)
	freq := 28e9
	phase := SynthesizeSteer(geom, freq, 30, 0, 0)
	quant, _ := Quantize(phase, 1)
	sweep := RxSweep{StartDeg: -90, StopDeg: 90, StepDeg: 2}
	thetaDeg, _, patternDB := PatternSweep(geom, quant, sweep, freq, 0, NormPeak0dB)

	shiftedTheta := make([]float64, len(thetaDeg))
	for i, v := range thetaDeg {
		shiftedTheta[i] = v - 5
	}

	result := Validate(thetaDeg, patternDB, shiftedTheta, patternDB, ValidationThresholds{RMSEDBMax: 3.0, PeakDegErrMax: 2.0})
	assert.InDelta(t, 5, result.PeakDegError, 0.5)
	assert.False(t, result.Pass)
}

func TestPhaseWrapInvariant(t *testing.T) {
	geom := buildS1Geometry(t)
	for _, phase := range []PhaseMap{
		SynthesizeSteer(geom, 28e9, 45, 10, 20),
		SynthesizeFocus(geom, 28e9, Vec3{2, 1, 0.5}),
		SynthesizeGradient(geom, 28e9, Vec3{1, 0, 0}, Vec3{-1, 0, 0}),
		SynthesizeUniform(geom, 3.0),
	} {
		for _, row := range phase {
			for _, v := range row {
				assert.Greater(t, v, -math.Pi)
				assert.LessOrEqual(t, v, math.Pi)
			}
		}
	}
}

func TestQuantizeRoundTrip(t *testing.T) {
	geom := buildS1Geometry(t)
	phase := SynthesizeSteer(geom, 28e9, 17, 5, 3)
	for bits := 1; bits <= 3; bits++ {
		q1, err := Quantize(phase, bits)
		require.NoError(t, err)
		q2, err := Quantize(q1, bits)
		require.NoError(t, err)
		for j := range q1 {
			for i := range q1[j] {
				assert.InDelta(t, q1[j][i], q2[j][i], 1e-9)
			}
		}
	}
}

func TestQuantizeIdentityAtZeroBits(t *testing.T) {
	geom := buildS1Geometry(t)
	phase := SynthesizeSteer(geom, 28e9, 17, 5, 3)
	q, err := Quantize(phase, 0)
	require.NoError(t, err)
	assert.Equal(t, phase, q)
}

func TestComputeLocalFrame_RejectsParallelHint(t *testing.T) {
	_, err := ComputeLocalFrame(Vec3{0, 0, 1}, Vec3{0, 0, 2})
	require.Error(t, err)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
