// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Curve selects a psychoacoustic frequency weighting (IEC 61672).
type Curve int

const (
	CurveA Curve = iota
	CurveC
	CurveZ
)

// Pole frequencies (Hz) of the analog weighting filters and the offsets
// that normalize the curves to 0 dB at 1 kHz.
const (
	poleLow     = 20.6
	poleMidLow  = 107.7
	poleMidHigh = 737.9
	poleHigh    = 12194.0

	offsetA = 2.0
	offsetC = 0.06
)

// Frequencies below this are evaluated at this value. The A and C responses
// tend to zero at DC, so log10 would otherwise return -Inf for bin 0.
const minWeightingFreq = 1.0

func (c Curve) String() string {
	switch c {
	case CurveA:
		return "A"
	case CurveC:
		return "C"
	case CurveZ:
		return "Z"
	default:
		return fmt.Sprintf("Curve(%d)", int(c))
	}
}

// ParseCurve converts "A", "C" or "Z" (case-insensitive) to a Curve.
func ParseCurve(name string) (Curve, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "A":
		return CurveA, nil
	case "C":
		return CurveC, nil
	case "Z":
		return CurveZ, nil
	default:
		return CurveZ, fmt.Errorf("%w: unknown weighting %q", ErrInvalidParams, name)
	}
}

// Weight returns the correction in dB of curve c at frequency f.
func Weight(f float64, c Curve) float64 {
	if c == CurveZ {
		return 0
	}
	if f < minWeightingFreq || math.IsNaN(f) {
		f = minWeightingFreq
	}

	f2 := f * f
	low := f2 + poleLow*poleLow
	high := f2 + poleHigh*poleHigh

	switch c {
	case CurveA:
		midLow := f2 + poleMidLow*poleMidLow
		midHigh := f2 + poleMidHigh*poleMidHigh
		r := poleHigh * poleHigh * f2 * f2 / (low * math.Sqrt(midLow*midHigh) * high)
		return 20*math.Log10(r) + offsetA
	case CurveC:
		r := poleHigh * poleHigh * f2 / (low * high)
		return 20*math.Log10(r) + offsetC
	default:
		return 0
	}
}

// Weights evaluates curve c at every frequency. The result is additive in
// dB; CurveZ yields all zeros.
func Weights(frequencies []float64, c Curve) []float64 {
	out := make([]float64, len(frequencies))
	if c == CurveZ {
		return out
	}
	for i, f := range frequencies {
		out[i] = Weight(f, c)
	}
	return out
}

// DecibelsToGain converts an additive dB correction into the linear
// amplitude multiplier 10^(db/20).
func DecibelsToGain(db float64) float64 {
	return math.Pow(10, db/20)
}
