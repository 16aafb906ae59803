package riskernel

import (
	"math"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// Quantize implements spec.md §4.4 op 2: bits=0 is the identity; otherwise
// each phase is mapped to the center of its bin among 2^bits uniform bins
// over [-pi, pi). The lowest bin center is -pi + pi/2^bits — this resolves
// the open question in spec.md §9 about the wrap-boundary convention: pi
// and -pi fall in the same bin (the one centered at -pi + pi/2^bits is the
// first bin; the bin containing +pi wraps to that same lowest bin since
// phases are taken mod 2*pi before binning).
func Quantize(pm PhaseMap, bits int) (PhaseMap, error) {
	if bits < 0 {
		return nil, apperr.New(apperr.KindInvalidConfig, "quantization bits must be >= 0")
	}
	if bits == 0 {
		out := make(PhaseMap, len(pm))
		for j, row := range pm {
			out[j] = append([]float64(nil), row...)
		}
		return out, nil
	}
	levels := 1 << bits
	step := 2 * math.Pi / float64(levels)
	out := make(PhaseMap, len(pm))
	for j, row := range pm {
		out[j] = make([]float64, len(row))
		for i, phase := range row {
			out[j][i] = WrapPhase(quantizeOne(phase, step, levels))
		}
	}
	return out, nil
}

// quantizeOne maps phase into [0, 2*pi), finds its bin index among
// `levels` uniform bins whose lowest center sits at -pi + step/2, and
// returns that bin's center (still expressed on the same 2*pi-periodic
// scale as the input before the caller wraps it to (-pi, pi]).
func quantizeOne(phase, step float64, levels int) float64 {
	lowestCenter := -math.Pi + step/2
	wrapped := math.Mod(phase-lowestCenter, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	idx := int(math.Floor(wrapped/step + 0.5))
	if idx >= levels {
		idx = 0
	}
	return lowestCenter + float64(idx)*step
}
