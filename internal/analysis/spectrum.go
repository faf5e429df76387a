// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"barviz/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MagnitudeFloor is the smallest power value passed to log10. Silent or
// all-zero frames therefore bottom out at -120 dB (plus any weighting)
// instead of -Inf.
const MagnitudeFloor = 1e-12

// Pre-allocated buffers for one spectrum computation.
type spectrumWorkspace struct {
	tapered    []float64    // Windowed frame.
	fftOutput  []complex128 // FFT coefficients for non-negative frequencies.
	magnitudes []float64    // Per-bin values, rewritten every call.
	window     []float64    // Window coefficients, immutable.
}

// SpectrumAnalyzer turns a frame into per-bin magnitudes. Analyze produces
// linear FFT magnitudes; PowerDensity and LogScale then convert them in
// place for the octave strategy. All buffers are allocated up front so the
// worker never allocates per chunk.
type SpectrumAnalyzer struct {
	fft              *fourier.FFT
	frameSize        int
	windowType       WindowFunc
	squaredWindowSum float64
	workspace        spectrumWorkspace
}

// NewSpectrumAnalyzer builds an analyzer for frames of frameSize samples,
// which must be a power of two.
func NewSpectrumAnalyzer(frameSize int, windowType WindowFunc) (*SpectrumAnalyzer, error) {
	if !bitint.IsPowerOfTwo(frameSize) {
		return nil, fmt.Errorf("%w: frame size must be a power of 2, got %d", ErrInvalidParams, frameSize)
	}
	coeffs, err := NewWindow(frameSize, windowType)
	if err != nil {
		return nil, err
	}

	bins := frameSize/2 + 1
	return &SpectrumAnalyzer{
		fft:              fourier.NewFFT(frameSize),
		frameSize:        frameSize,
		windowType:       windowType,
		squaredWindowSum: SquaredSum(coeffs),
		workspace: spectrumWorkspace{
			tapered:    make([]float64, frameSize),
			fftOutput:  make([]complex128, bins),
			magnitudes: make([]float64, bins),
			window:     coeffs,
		},
	}, nil
}

// Analyze windows the frame, runs the real FFT and stores |X[k]| for the
// frameSize/2+1 non-negative frequencies. The returned slice is reused.
func (s *SpectrumAnalyzer) Analyze(frame []float64) ([]float64, error) {
	if len(frame) != s.frameSize {
		return nil, fmt.Errorf("%w: frame has %d samples, want %d", ErrChunkSize, len(frame), s.frameSize)
	}

	ws := &s.workspace
	for i, x := range frame {
		ws.tapered[i] = x * ws.window[i]
	}

	s.fft.Coefficients(ws.fftOutput, ws.tapered)
	for i, c := range ws.fftOutput {
		ws.magnitudes[i] = cmplx.Abs(c)
	}
	return ws.magnitudes, nil
}

// PowerDensity converts the current magnitudes to power spectral density.
func (s *SpectrumAnalyzer) PowerDensity() {
	PowerSpectralDensity(s.workspace.magnitudes, s.squaredWindowSum)
}

// LogScale converts the current magnitudes to decibels and adds the per-bin
// weighting.
func (s *SpectrumAnalyzer) LogScale(weights []float64) {
	LogScale(s.workspace.magnitudes, weights)
}

// Magnitudes returns the per-bin buffer as left by the last call.
func (s *SpectrumAnalyzer) Magnitudes() []float64 {
	return s.workspace.magnitudes
}

// Bins returns the spectrum length, frameSize/2+1.
func (s *SpectrumAnalyzer) Bins() int {
	return len(s.workspace.magnitudes)
}

// FrameSize returns the configured frame size.
func (s *SpectrumAnalyzer) FrameSize() int {
	return s.frameSize
}

// SquaredWindowSum returns the PSD normalization constant.
func (s *SpectrumAnalyzer) SquaredWindowSum() float64 {
	return s.squaredWindowSum
}

// BinFrequencies returns the center frequency in Hz of every spectrum bin.
func (s *SpectrumAnalyzer) BinFrequencies(sampleRate float64) []float64 {
	freqs := make([]float64, s.Bins())
	for i := range freqs {
		freqs[i] = s.fft.Freq(i) * sampleRate
	}
	return freqs
}

// PowerSpectralDensity replaces every magnitude m with (2m)^2 / squaredWindowSum.
func PowerSpectralDensity(mags []float64, squaredWindowSum float64) {
	scale := 1.0 / squaredWindowSum
	for i, m := range mags {
		d := 2 * m
		mags[i] = d * d * scale
	}
}

// LogScale replaces every value v with 10*log10(max(v, MagnitudeFloor)) + weights[i].
func LogScale(values, weights []float64) {
	for i, v := range values {
		if v < MagnitudeFloor || math.IsNaN(v) {
			v = MagnitudeFloor
		}
		values[i] = 10*math.Log10(v) + weights[i]
	}
}
