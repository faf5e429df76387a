// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Distribution selects how the spectrum is split into bands.
type Distribution int

const (
	// Octave produces fractional-octave bands in dB with additive weighting.
	Octave Distribution = iota
	// Logspace produces log-spaced bands of normalized energy with AGC.
	Logspace
)

func (d Distribution) String() string {
	switch d {
	case Octave:
		return "octave"
	case Logspace:
		return "logspace"
	default:
		return fmt.Sprintf("Distribution(%d)", int(d))
	}
}

// ParseDistribution converts "octave" or "logspace" to a Distribution.
func ParseDistribution(name string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "octave":
		return Octave, nil
	case "logspace", "log":
		return Logspace, nil
	default:
		return Octave, fmt.Errorf("%w: unknown band distribution %q", ErrInvalidParams, name)
	}
}

// BandFrequency describes the frequency span of one band in Hz.
type BandFrequency struct {
	Lower  float64
	Center float64
	Upper  float64
}

// Strategy is one of the two band layouts, bundling its edge calculation
// with its aggregation rule. The set is closed: only OctaveStrategy and
// LogspaceStrategy implement it.
type Strategy interface {
	// Bands returns the number of output bands.
	Bands() int
	// Edges returns the bin range of every band.
	Edges() BandEdges
	// Frequencies returns the frequency span of every band.
	Frequencies() []BandFrequency
	// Distribution identifies the layout.
	Distribution() Distribution
	String() string

	// process turns the analyzer's fresh linear magnitudes into dst.
	process(s *SpectrumAnalyzer, dst []float64)
}

// OctaveStrategy converts the spectrum to weighted power density in dB and
// averages it over fractional-octave bands. It is stateless per call.
type OctaveStrategy struct {
	fraction   int
	edges      BandEdges
	freqs      []BandFrequency
	binWeights []float64
	agg        *OctaveAggregator
}

// NewOctaveStrategy builds 1/fraction-octave bands over [lowerFreq,
// upperFreq]. binFreqs are the spectrum bin frequencies.
func NewOctaveStrategy(fraction int, lowerFreq, upperFreq float64, binFreqs []float64, curve Curve) (*OctaveStrategy, error) {
	centers, lower, upper, err := OctaveBands(fraction, lowerFreq, upperFreq)
	if err != nil {
		return nil, err
	}
	edges, err := OctaveEdges(lower, upper, len(binFreqs))
	if err != nil {
		return nil, err
	}

	freqs := make([]BandFrequency, len(centers))
	for i, c := range centers {
		freqs[i] = BandFrequency{Lower: lower[i], Center: c, Upper: upper[i]}
	}

	s, err := newOctaveStrategy(edges, freqs, binFreqs, curve)
	if err != nil {
		return nil, err
	}
	s.fraction = fraction
	return s, nil
}

// NewOctaveStrategyFromEdges builds an octave-style strategy over explicit
// bin ranges. Band frequencies are taken from the bin frequencies and the
// band weighting is evaluated at each range's midpoint.
func NewOctaveStrategyFromEdges(edges BandEdges, binFreqs []float64, curve Curve) (*OctaveStrategy, error) {
	if err := edges.Validate(len(binFreqs)); err != nil {
		return nil, err
	}
	freqs := make([]BandFrequency, edges.Len())
	for i := range freqs {
		l, u := binFreqs[edges.Lower[i]], binFreqs[edges.Upper[i]]
		freqs[i] = BandFrequency{Lower: l, Center: (l + u) / 2, Upper: u}
	}
	return newOctaveStrategy(edges, freqs, binFreqs, curve)
}

func newOctaveStrategy(edges BandEdges, freqs []BandFrequency, binFreqs []float64, curve Curve) (*OctaveStrategy, error) {
	centers := make([]float64, len(freqs))
	for i, f := range freqs {
		centers[i] = f.Center
	}
	agg, err := NewOctaveAggregator(edges, Weights(centers, curve))
	if err != nil {
		return nil, err
	}
	return &OctaveStrategy{
		edges:      edges,
		freqs:      freqs,
		binWeights: Weights(binFreqs, curve),
		agg:        agg,
	}, nil
}

func (o *OctaveStrategy) Bands() int                   { return o.edges.Len() }
func (o *OctaveStrategy) Edges() BandEdges             { return o.edges }
func (o *OctaveStrategy) Frequencies() []BandFrequency { return o.freqs }
func (o *OctaveStrategy) Distribution() Distribution   { return Octave }

func (o *OctaveStrategy) String() string {
	if o.fraction == 0 {
		return fmt.Sprintf("octave (custom, %d bands)", o.Bands())
	}
	return fmt.Sprintf("octave 1/%d (%d bands)", o.fraction, o.Bands())
}

func (o *OctaveStrategy) process(s *SpectrumAnalyzer, dst []float64) {
	s.PowerDensity()
	s.LogScale(o.binWeights)
	o.agg.Aggregate(s.Magnitudes(), dst)
}

// LogspaceStrategy averages linear magnitudes over log-spaced bands and
// normalizes them with automatic gain control.
type LogspaceStrategy struct {
	edges BandEdges
	freqs []BandFrequency
	agg   *LogspaceAggregator
}

// NewLogspaceStrategy builds bands log-spaced bands over [lowerFreq,
// upperFreq], with upperFreq capped at the Nyquist frequency. The weighting
// curve is applied as a linear gain per band, evaluated at the band's
// geometric center.
func NewLogspaceStrategy(sampleRate float64, bands, frameSize int, lowerFreq, upperFreq, noiseReduction float64, curve Curve) (*LogspaceStrategy, error) {
	edges, err := LogspaceEdges(sampleRate, bands, frameSize, lowerFreq, upperFreq)
	if err != nil {
		return nil, err
	}
	if top := LogspaceUpper(sampleRate, upperFreq); top < upperFreq {
		logger.Debugf("Logspace upper frequency %g Hz capped at Nyquist %g Hz", upperFreq, top)
		upperFreq = top
	}
	amplifier, err := LogspaceAmplifier(bands, frameSize, lowerFreq, upperFreq)
	if err != nil {
		return nil, err
	}

	cutoffs := LogspaceCutoffs(bands, lowerFreq, upperFreq)
	freqs := make([]BandFrequency, bands)
	gains := make([]float64, bands)
	for n := range freqs {
		l, u := cutoffs[n], cutoffs[n+1]
		c := math.Sqrt(l * u)
		freqs[n] = BandFrequency{Lower: l, Center: c, Upper: u}
		gains[n] = DecibelsToGain(Weight(c, curve))
	}

	agg, err := NewLogspaceAggregator(edges, amplifier, gains, noiseReduction)
	if err != nil {
		return nil, err
	}
	return &LogspaceStrategy{edges: edges, freqs: freqs, agg: agg}, nil
}

func (l *LogspaceStrategy) Bands() int                   { return l.edges.Len() }
func (l *LogspaceStrategy) Edges() BandEdges             { return l.edges }
func (l *LogspaceStrategy) Frequencies() []BandFrequency { return l.freqs }
func (l *LogspaceStrategy) Distribution() Distribution   { return Logspace }

func (l *LogspaceStrategy) String() string {
	return fmt.Sprintf("logspace (%d bands)", l.Bands())
}

// Aggregator exposes the AGC aggregator for inspection.
func (l *LogspaceStrategy) Aggregator() *LogspaceAggregator {
	return l.agg
}

func (l *LogspaceStrategy) process(s *SpectrumAnalyzer, dst []float64) {
	l.agg.Aggregate(s.Magnitudes(), dst)
}
