// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"barviz/pkg/bitint"
)

var (
	// ErrInvalidParams is wrapped by every setup-time parameter error.
	ErrInvalidParams = errors.New("invalid analysis parameters")
	// ErrChunkSize reports a chunk or frame whose length does not match the
	// configured size.
	ErrChunkSize = errors.New("chunk size mismatch")
	// ErrTooManyBands reports band edges that cannot be placed inside the
	// spectrum.
	ErrTooManyBands = errors.New("too many bands for spectrum")
)

// Parameter limits.
const (
	MinSampleRate = 8000
	MaxSampleRate = 22579200

	MinFrameSize = 8

	MinOctaveFraction = 1
	MaxOctaveFraction = 12

	MinLogspaceBands = 1
	MaxLogspaceBands = 128

	MaxUpperFreq = 20000.0

	// DefaultNoiseReduction is the logspace smoothing coefficient used when
	// none is given.
	DefaultNoiseReduction = 0.77
)

// Params is the setup-time bundle that fully determines a pipeline.
type Params struct {
	SampleRate float64
	FrameSize  int
	BufferSize int
	Channels   int

	Window    WindowFunc
	Weighting Curve

	Distribution Distribution
	Fraction     int // octave only
	Bands        int // logspace only

	LowerFreq float64
	UpperFreq float64

	NoiseReduction float64 // logspace only
}

// DefaultParams returns a 1/3-octave, A-weighted configuration for 44.1 kHz
// stereo input.
func DefaultParams() Params {
	return Params{
		SampleRate:     44100,
		FrameSize:      8192,
		BufferSize:     1024,
		Channels:       2,
		Window:         Hann,
		Weighting:      CurveA,
		Distribution:   Octave,
		Fraction:       3,
		Bands:          50,
		LowerFreq:      20,
		UpperFreq:      20000,
		NoiseReduction: DefaultNoiseReduction,
	}
}

// Validate reports the first parameter that is out of range. The returned
// error wraps ErrInvalidParams.
func (p Params) Validate() error {
	switch {
	case p.SampleRate < MinSampleRate || p.SampleRate > MaxSampleRate || math.IsNaN(p.SampleRate):
		return fmt.Errorf("%w: sample rate %g outside %d..%d", ErrInvalidParams, p.SampleRate, MinSampleRate, MaxSampleRate)
	case !bitint.IsPowerOfTwo(p.FrameSize) || p.FrameSize < MinFrameSize:
		return fmt.Errorf("%w: frame size must be a power of 2 >= %d, got %d", ErrInvalidParams, MinFrameSize, p.FrameSize)
	case p.BufferSize <= 0 || p.BufferSize > p.FrameSize:
		return fmt.Errorf("%w: buffer size %d must be in 1..%d", ErrInvalidParams, p.BufferSize, p.FrameSize)
	case p.Channels <= 0:
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidParams, p.Channels)
	case p.Window < Hann || p.Window > Rectangular:
		return fmt.Errorf("%w: unsupported window %s", ErrInvalidParams, p.Window)
	case p.Weighting < CurveA || p.Weighting > CurveZ:
		return fmt.Errorf("%w: unsupported weighting %s", ErrInvalidParams, p.Weighting)
	case !(p.LowerFreq > 0) || p.UpperFreq > MaxUpperFreq || p.LowerFreq >= p.UpperFreq:
		return fmt.Errorf("%w: frequency range [%g, %g] must satisfy 0 < lower < upper <= %g", ErrInvalidParams, p.LowerFreq, p.UpperFreq, MaxUpperFreq)
	}

	switch p.Distribution {
	case Octave:
		if p.Fraction < MinOctaveFraction || p.Fraction > MaxOctaveFraction {
			return fmt.Errorf("%w: octave fraction %d outside %d..%d", ErrInvalidParams, p.Fraction, MinOctaveFraction, MaxOctaveFraction)
		}
	case Logspace:
		if p.Bands < MinLogspaceBands || p.Bands > MaxLogspaceBands {
			return fmt.Errorf("%w: band count %d outside %d..%d", ErrInvalidParams, p.Bands, MinLogspaceBands, MaxLogspaceBands)
		}
		if p.LowerFreq >= p.SampleRate/2 {
			return fmt.Errorf("%w: lower frequency %g Hz is not below the Nyquist frequency %g Hz", ErrInvalidParams, p.LowerFreq, p.SampleRate/2)
		}
		if !(p.NoiseReduction > 0) {
			return fmt.Errorf("%w: noise reduction must be positive, got %g", ErrInvalidParams, p.NoiseReduction)
		}
	default:
		return fmt.Errorf("%w: unsupported band distribution %s", ErrInvalidParams, p.Distribution)
	}
	return nil
}

// ChunkSamples is the interleaved sample count of one input chunk.
func (p Params) ChunkSamples() int {
	return p.BufferSize * p.Channels
}
