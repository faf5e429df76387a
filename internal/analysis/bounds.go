// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

// Octave band constants (ANSI S1.11 / IEC 61260): base-2 octave ratio and
// the 1 kHz reference band.
const (
	octaveRatio   = 2.0
	referenceFreq = 1000.0
)

// BandEdges holds the inclusive spectrum-bin range of every band:
// band i aggregates bins Lower[i]..Upper[i].
type BandEdges struct {
	Lower []int
	Upper []int
}

// Len returns the number of bands.
func (e BandEdges) Len() int {
	return len(e.Lower)
}

// Width returns the number of bins in band i.
func (e BandEdges) Width(i int) int {
	return e.Upper[i] - e.Lower[i] + 1
}

// Contains returns the band whose range holds bin, or -1.
func (e BandEdges) Contains(bin int) int {
	for i := range e.Lower {
		if bin >= e.Lower[i] && bin <= e.Upper[i] {
			return i
		}
	}
	return -1
}

// Validate checks that every band is a non-empty range inside a spectrum of
// bins values and that bands are increasing and disjoint.
func (e BandEdges) Validate(bins int) error {
	if len(e.Lower) != len(e.Upper) {
		return fmt.Errorf("%w: %d lower edges but %d upper edges", ErrInvalidParams, len(e.Lower), len(e.Upper))
	}
	if len(e.Lower) == 0 {
		return fmt.Errorf("%w: no bands", ErrInvalidParams)
	}
	for i := range e.Lower {
		l, u := e.Lower[i], e.Upper[i]
		if l < 0 || u >= bins {
			return fmt.Errorf("%w: band %d range [%d, %d] outside spectrum of %d bins", ErrTooManyBands, i, l, u, bins)
		}
		if u < l {
			return fmt.Errorf("%w: band %d range [%d, %d] is empty", ErrInvalidParams, i, l, u)
		}
		if i > 0 && l <= e.Upper[i-1] {
			return fmt.Errorf("%w: band %d starts at bin %d, overlapping band %d ending at %d", ErrInvalidParams, i, l, i-1, e.Upper[i-1])
		}
	}
	return nil
}

// octaveIndex returns the band index whose center is nearest freq. Odd and
// even fractions use the two ANSI index formulas; the reference band has
// index 30 (odd) or 29.5 (even).
func octaveIndex(fraction int, freq float64) float64 {
	lnG := math.Log(octaveRatio)
	b := float64(fraction)
	if fraction%2 == 1 {
		return math.RoundToEven((b*math.Log(freq/referenceFreq) + 30*lnG) / lnG)
	}
	return math.RoundToEven((2*b*math.Log(freq/referenceFreq) + 59*lnG) / (2 * lnG))
}

func octaveCenter(fraction int, index float64) float64 {
	b := float64(fraction)
	if fraction%2 == 1 {
		return math.Pow(octaveRatio, (index-30)/b) * referenceFreq
	}
	return math.Pow(octaveRatio, (2*index-59)/(2*b)) * referenceFreq
}

// OctaveBands returns the nominal center frequencies and the lower/upper
// edge frequencies of 1/fraction-octave bands. The first band is the one
// nearest lowerFreq; bands are added until a band's upper edge reaches
// upperFreq.
func OctaveBands(fraction int, lowerFreq, upperFreq float64) (centers, lower, upper []float64, err error) {
	if fraction < MinOctaveFraction || fraction > MaxOctaveFraction {
		return nil, nil, nil, fmt.Errorf("%w: octave fraction %d outside %d..%d", ErrInvalidParams, fraction, MinOctaveFraction, MaxOctaveFraction)
	}
	if lowerFreq <= 0 || lowerFreq >= upperFreq {
		return nil, nil, nil, fmt.Errorf("%w: frequency range [%g, %g] is empty", ErrInvalidParams, lowerFreq, upperFreq)
	}

	edge := math.Pow(octaveRatio, 1/(2*float64(fraction)))
	index := octaveIndex(fraction, lowerFreq)
	centers = append(centers, octaveCenter(fraction, index))
	for centers[len(centers)-1]*edge < upperFreq {
		index++
		centers = append(centers, octaveCenter(fraction, index))
	}

	lower = make([]float64, len(centers))
	upper = make([]float64, len(centers))
	for i, c := range centers {
		lower[i] = c / edge
		upper[i] = c * edge
	}
	return centers, lower, upper, nil
}

// OctaveEdges maps octave edge frequencies onto a spectrum of bins values.
// Frequencies scale linearly so that the highest upper edge lands on the
// last bin; results are clamped to the spectrum. Adjacent bands that share
// an edge bin are made disjoint by moving the later band's lower edge up by
// one, widening its upper edge if needed.
func OctaveEdges(lowerFreqs, upperFreqs []float64, bins int) (BandEdges, error) {
	n := len(lowerFreqs)
	if n == 0 || n != len(upperFreqs) {
		return BandEdges{}, fmt.Errorf("%w: mismatched octave edge frequencies (%d, %d)", ErrInvalidParams, n, len(upperFreqs))
	}

	maxUpper := upperFreqs[0]
	for _, f := range upperFreqs[1:] {
		maxUpper = math.Max(maxUpper, f)
	}
	ratio := float64(bins) / maxUpper
	last := bins - 1

	edges := BandEdges{Lower: make([]int, n), Upper: make([]int, n)}
	for i := range n {
		l := clampInt(int(math.RoundToEven(lowerFreqs[i]*ratio)), 0, last)
		u := clampInt(int(math.RoundToEven(upperFreqs[i]*ratio)), 0, last)
		if i > 0 && l <= edges.Upper[i-1] {
			l = edges.Upper[i-1] + 1
		}
		if u < l {
			u = l
		}
		edges.Lower[i], edges.Upper[i] = l, u
	}

	if err := edges.Validate(bins); err != nil {
		return BandEdges{}, err
	}
	return edges, nil
}

// LogspaceCutoffs returns bands+1 frequencies spaced uniformly in log
// between lowerFreq and upperFreq: cutoff n is the lower edge of band n and
// cutoff bands is upperFreq.
func LogspaceCutoffs(bands int, lowerFreq, upperFreq float64) []float64 {
	cutoffs := make([]float64, bands+1)
	n := float64(bands + 1)
	freqConst := math.Log10(lowerFreq/upperFreq) / (1/n - 1)
	for i := range cutoffs {
		cutoffs[i] = upperFreq * math.Pow(10, -freqConst+(float64(i+1)/n)*freqConst)
	}
	return cutoffs
}

// LogspaceUpper limits a logspace upper frequency to the Nyquist frequency
// of sampleRate. There are no bins above it to assign bands to.
func LogspaceUpper(sampleRate, upperFreq float64) float64 {
	return math.Min(upperFreq, sampleRate/2)
}

// LogspaceEdges assigns each of bands log-spaced bands a contiguous bin
// range of a frameSize-point spectrum. upperFreq is clamped with
// LogspaceUpper. A cutoff that does not advance past the previous one is
// forced to previous+1, so low bands narrower than a bin still get one bin
// each.
func LogspaceEdges(sampleRate float64, bands, frameSize int, lowerFreq, upperFreq float64) (BandEdges, error) {
	if bands < MinLogspaceBands || bands > MaxLogspaceBands {
		return BandEdges{}, fmt.Errorf("%w: band count %d outside %d..%d", ErrInvalidParams, bands, MinLogspaceBands, MaxLogspaceBands)
	}
	if lowerFreq <= 0 || lowerFreq >= upperFreq {
		return BandEdges{}, fmt.Errorf("%w: frequency range [%g, %g] is empty", ErrInvalidParams, lowerFreq, upperFreq)
	}
	nyquist := sampleRate / 2
	if lowerFreq >= nyquist {
		return BandEdges{}, fmt.Errorf("%w: lower frequency %g Hz is not below the Nyquist frequency %g Hz", ErrInvalidParams, lowerFreq, nyquist)
	}
	upperFreq = LogspaceUpper(sampleRate, upperFreq)

	bins := frameSize/2 + 1
	half := float64(frameSize / 2)

	cutoffs := LogspaceCutoffs(bands, lowerFreq, upperFreq)
	cuts := make([]int, len(cutoffs))
	for n, f := range cutoffs {
		cuts[n] = clampInt(int(f/nyquist*half), 0, bins)
		if n > 0 && cuts[n] <= cuts[n-1] {
			cuts[n] = cuts[n-1] + 1
		}
	}

	edges := BandEdges{Lower: make([]int, bands), Upper: make([]int, bands)}
	for n := range bands {
		edges.Lower[n] = cuts[n]
		edges.Upper[n] = cuts[n+1] - 1
	}

	if err := edges.Validate(bins); err != nil {
		return BandEdges{}, err
	}
	return edges, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
