// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"barviz/pkg/bitint"

	"gonum.org/v1/gonum/floats"
)

// Automatic gain control constants. Smoothed band energy is steered
// towards agcCeiling; the global adjustment shrinks by agcShrink after any
// frame that overshoots and grows by agcGrow otherwise.
const (
	agcCeiling     = 300.0
	agcShrink      = 0.01
	agcGrow        = 0.001
	agcDecayFactor = 20.0
)

// Gain anchors of the three amplifier segments (bass, mid, treble).
var amplifierAnchors = [4]float64{2, 1, 0.6, 0.3}

// bandMean returns the mean of spectrum[lower..upper].
func bandMean(spectrum []float64, lower, upper int) float64 {
	return floats.Sum(spectrum[lower:upper+1]) / float64(upper-lower+1)
}

// OctaveAggregator reduces a dB spectrum into band levels: the mean of the
// band's bins plus the band's weighting. It keeps no state between calls.
type OctaveAggregator struct {
	edges   BandEdges
	weights []float64
}

// NewOctaveAggregator pairs band edges with per-band dB weights.
func NewOctaveAggregator(edges BandEdges, bandWeights []float64) (*OctaveAggregator, error) {
	if len(bandWeights) != edges.Len() {
		return nil, fmt.Errorf("%w: %d band weights for %d bands", ErrInvalidParams, len(bandWeights), edges.Len())
	}
	return &OctaveAggregator{edges: edges, weights: bandWeights}, nil
}

// Aggregate writes one level per band into dst.
func (a *OctaveAggregator) Aggregate(spectrum, dst []float64) {
	for i, w := range a.weights {
		dst[i] = bandMean(spectrum, a.edges.Lower[i], a.edges.Upper[i]) + w
	}
}

// AGCState is the persistent state of the logspace aggregator: the global
// gain and the retained (decayed) energy of every band from the previous
// frame.
type AGCState struct {
	Adjustment float64
	Prev       []float64
}

// NewAGCState returns the initial state: unit gain and zero history.
func NewAGCState(bands int) *AGCState {
	return &AGCState{Adjustment: 1.0, Prev: make([]float64, bands)}
}

// LogspaceAggregator reduces linear FFT magnitudes into normalized band
// energies with temporal smoothing and automatic gain control.
//
// The noise reduction coefficient is expected in (0, 1). It is not clamped:
// values >= 1 make the integrator unstable.
type LogspaceAggregator struct {
	edges          BandEdges
	amplifier      []float64
	gains          []float64
	noiseReduction float64
	state          *AGCState
}

// NewLogspaceAggregator builds an aggregator with fresh AGC state. gains are
// linear per-band weighting multipliers; nil means unity.
func NewLogspaceAggregator(edges BandEdges, amplifier, gains []float64, noiseReduction float64) (*LogspaceAggregator, error) {
	n := edges.Len()
	if len(amplifier) != n {
		return nil, fmt.Errorf("%w: %d amplifier values for %d bands", ErrInvalidParams, len(amplifier), n)
	}
	if gains == nil {
		gains = make([]float64, n)
		for i := range gains {
			gains[i] = 1
		}
	}
	if len(gains) != n {
		return nil, fmt.Errorf("%w: %d gains for %d bands", ErrInvalidParams, len(gains), n)
	}
	if noiseReduction <= 0 || math.IsNaN(noiseReduction) {
		return nil, fmt.Errorf("%w: noise reduction must be positive, got %g", ErrInvalidParams, noiseReduction)
	}
	return &LogspaceAggregator{
		edges:          edges,
		amplifier:      amplifier,
		gains:          gains,
		noiseReduction: noiseReduction,
		state:          NewAGCState(n),
	}, nil
}

// Aggregate writes one normalized energy per band into dst and advances
// the AGC state. The global adjustment is applied before smoothing, and
// overshoot is judged on the smoothed value before normalization. A band
// whose input energy is NaN or infinite counts as silent for that frame so
// the smoothing history stays finite.
func (a *LogspaceAggregator) Aggregate(spectrum, dst []float64) {
	st := a.state
	excess := false

	for n := range dst {
		energy := bandMean(spectrum, a.edges.Lower[n], a.edges.Upper[n]) * a.amplifier[n] * a.gains[n]
		if math.IsNaN(energy) || math.IsInf(energy, 0) {
			energy = 0
		}
		energy *= st.Adjustment

		energy = st.Prev[n]*a.noiseReduction + energy
		headroom := math.Max(agcCeiling-energy, 0)
		st.Prev[n] = energy * (1 - 1/(agcDecayFactor*(headroom+1)))

		if energy > agcCeiling {
			excess = true
		}
		dst[n] = energy / agcCeiling
	}

	if excess {
		st.Adjustment *= 1 - agcShrink
	} else {
		st.Adjustment *= 1 + agcGrow
	}
}

// Adjustment returns the current global AGC gain.
func (a *LogspaceAggregator) Adjustment() float64 {
	return a.state.Adjustment
}

// State exposes the AGC state. It is owned by the worker; read it only
// between iterations.
func (a *LogspaceAggregator) State() *AGCState {
	return a.state
}

// LogspaceAmplifier returns the static per-band gain table. A three-segment
// log-spaced curve (2 -> 1 over the bass third, 1 -> 0.6 over the mids,
// 0.6 -> 0.3 over the treble) is multiplied by each band's lower cutoff
// frequency and divided by log2(frameSize).
func LogspaceAmplifier(bands, frameSize int, lowerFreq, upperFreq float64) ([]float64, error) {
	if bands < MinLogspaceBands || bands > MaxLogspaceBands {
		return nil, fmt.Errorf("%w: band count %d outside %d..%d", ErrInvalidParams, bands, MinLogspaceBands, MaxLogspaceBands)
	}
	if !bitint.IsPowerOfTwo(frameSize) {
		return nil, fmt.Errorf("%w: frame size must be a power of 2, got %d", ErrInvalidParams, frameSize)
	}

	// The curve spans bands+1 points like the cutoffs; the last point only
	// shapes the treble segment.
	points := bands + 1
	curve := make([]float64, points)
	third := int(math.RoundToEven(float64(bands) / 3))
	logSegment(curve[:third], amplifierAnchors[0], amplifierAnchors[1])
	logSegment(curve[third:2*third], amplifierAnchors[1], amplifierAnchors[2])
	logSegment(curve[2*third:], amplifierAnchors[2], amplifierAnchors[3])

	cutoffs := LogspaceCutoffs(bands, lowerFreq, upperFreq)
	scale := 1 / float64(bitint.Log2(frameSize))
	amp := make([]float64, bands)
	for n := range amp {
		amp[n] = cutoffs[n] * curve[n] * scale
	}
	return amp, nil
}

// logSegment fills dst with len(dst) values geometrically spaced from 'from'
// to 'to', both inclusive. A single value is 'from'.
func logSegment(dst []float64, from, to float64) {
	switch len(dst) {
	case 0:
		return
	case 1:
		dst[0] = from
		return
	}
	start, stop := math.Log2(from), math.Log2(to)
	step := (stop - start) / float64(len(dst)-1)
	for i := range dst {
		dst[i] = math.Exp2(start + step*float64(i))
	}
}
