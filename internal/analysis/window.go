// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// WindowFunc selects the tapering window applied to a frame before the FFT.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Rectangular
)

// String returns the canonical config name of the window.
func (w WindowFunc) String() string {
	switch w {
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Rectangular:
		return "rectangle"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// ParseWindowFunc converts a config name (case-insensitive) to a WindowFunc.
// Both the numpy-style names ("hanning", "rectangle") and the plain ones are
// accepted.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "rectangle", "rectangular", "boxcar", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("%w: unknown window function %q", ErrInvalidParams, name)
	}
}

// NewWindow returns size window coefficients. The Hann and Hamming windows
// are the symmetric forms (denominator size-1), matching numpy.hanning and
// numpy.hamming.
func NewWindow(size int, w WindowFunc) ([]float64, error) {
	if size < MinFrameSize {
		return nil, fmt.Errorf("%w: window size %d below minimum %d", ErrInvalidParams, size, MinFrameSize)
	}

	// gonum windows scale the slice in place, so start from ones.
	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}

	switch w {
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Rectangular:
	default:
		return nil, fmt.Errorf("%w: unsupported window %v", ErrInvalidParams, w)
	}
	return coeffs, nil
}

// SquaredSum returns (sum of coeffs)^2, the power-spectral-density
// normalization constant for a window.
func SquaredSum(coeffs []float64) float64 {
	s := floats.Sum(coeffs)
	return s * s
}
