package riskernel

import "math"

// PhaseMap is a [ny][nx] grid of phases in radians, wrapped to (-pi, pi].
type PhaseMap [][]float64

func newPhaseMap(nx, ny int) PhaseMap {
	pm := make(PhaseMap, ny)
	for j := range pm {
		pm[j] = make([]float64, nx)
	}
	return pm
}

// WrapPhase wraps an angle in radians into (-pi, pi], matching
// synthesize_phase's output invariant (spec.md §4.4 / §8 property 5).
func WrapPhase(phaseRad float64) float64 {
	wrapped := math.Mod(phaseRad+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

func (pm PhaseMap) wrapInPlace() {
	for j := range pm {
		for i := range pm[j] {
			pm[j][i] = WrapPhase(pm[j][i])
		}
	}
}

// WaveNumber returns k = 2*pi*f/c.
func WaveNumber(frequencyHz float64) float64 {
	return 2 * math.Pi * frequencyHz / speedOfLightMPerS
}

const speedOfLightMPerS = 299_792_458.0

// SynthesizeUniform implements spec.md §4.4 op 1 "uniform": a constant
// phase across the whole panel.
func SynthesizeUniform(geom *Geometry, phaseRad float64) PhaseMap {
	pm := newPhaseMap(geom.NX, geom.NY)
	for j := 0; j < geom.NY; j++ {
		for i := 0; i < geom.NX; i++ {
			pm[j][i] = phaseRad
		}
	}
	pm.wrapInPlace()
	return pm
}

// SynthesizeSteer implements spec.md §4.4 op 1 "steer":
// phi(i,j) = -k*(sin(el)*p_x(i,j) + cos(el)*sin(az)*p_y(i,j)) + phi0,
// where p_x, p_y are the element's in-plane local-frame coordinates.
func SynthesizeSteer(geom *Geometry, frequencyHz, azDeg, elDeg, phaseOffsetDeg float64) PhaseMap {
	k := WaveNumber(frequencyHz)
	az := azDeg * math.Pi / 180
	el := elDeg * math.Pi / 180
	phi0 := phaseOffsetDeg * math.Pi / 180
	sinEl, cosEl, sinAz := math.Sin(el), math.Cos(el), math.Sin(az)

	pm := newPhaseMap(geom.NX, geom.NY)
	for j := 0; j < geom.NY; j++ {
		for i := 0; i < geom.NX; i++ {
			px, py := localOffsets(geom, i, j)
			pm[j][i] = -k*(sinEl*px+cosEl*sinAz*py) + phi0
		}
	}
	pm.wrapInPlace()
	return pm
}

// SynthesizeFocus implements spec.md §4.4 op 1 "focus":
// phi(i,j) = -k*||p(i,j) - F|| (mod 2*pi).
func SynthesizeFocus(geom *Geometry, frequencyHz float64, focal Vec3) PhaseMap {
	k := WaveNumber(frequencyHz)
	pm := newPhaseMap(geom.NX, geom.NY)
	for j := 0; j < geom.NY; j++ {
		for i := 0; i < geom.NX; i++ {
			dist := geom.Centers[j][i].sub(focal).norm()
			pm[j][i] = -k * dist
		}
	}
	pm.wrapInPlace()
	return pm
}

// SynthesizeGradient implements spec.md §4.4 op 1 "gradient" (reflector
// mode): phi(i,j) = -k*(||p(i,j)-S|| + ||p(i,j)-T||).
func SynthesizeGradient(geom *Geometry, frequencyHz float64, source, target Vec3) PhaseMap {
	k := WaveNumber(frequencyHz)
	pm := newPhaseMap(geom.NX, geom.NY)
	for j := 0; j < geom.NY; j++ {
		for i := 0; i < geom.NX; i++ {
			p := geom.Centers[j][i]
			dist := p.sub(source).norm() + p.sub(target).norm()
			pm[j][i] = -k * dist
		}
	}
	pm.wrapInPlace()
	return pm
}

// localOffsets returns the (x, y) coordinates of element (i, j) in the
// panel's own local frame, i.e. the same offsets used to place it in
// ComputeElementCenters.
func localOffsets(geom *Geometry, i, j int) (float64, float64) {
	px := (float64(i) - float64(geom.NX-1)/2) * geom.DX
	py := (float64(j) - float64(geom.NY-1)/2) * geom.DY
	return px, py
}
