// SPDX-License-Identifier: MIT
//
// Package effect reshapes band vectors for display.
package effect

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBase is returned for a spread base that is not positive.
var ErrInvalidBase = errors.New("monstercat base must be positive")

// Monstercat spreads every band's level to its neighbours with exponential
// decay: after Apply, values[j] >= values[i] / base^|i-j| for all i, j. A
// loud band therefore rises over a smooth envelope instead of standing
// alone. Base 1 flattens the vector to its maximum.
type Monstercat struct {
	base float64
}

// NewMonstercat returns the effect for base > 0.
func NewMonstercat(base float64) (*Monstercat, error) {
	if !(base > 0) || math.IsInf(base, 0) {
		return nil, fmt.Errorf("%w, got %g", ErrInvalidBase, base)
	}
	return &Monstercat{base: base}, nil
}

// Base returns the decay base.
func (m *Monstercat) Base() float64 {
	return m.base
}

// Apply spreads values in place.
func (m *Monstercat) Apply(values []float64) {
	Spread(values, m.base)
}

// Spread applies the monstercat envelope in place: every band's level,
// divided by base once per step of distance, is a lower bound for every
// other band. Bands are visited in order and each spreads its current
// (possibly already raised) level both ways.
func Spread(values []float64, base float64) {
	if !(base > 0) {
		return
	}
	n := len(values)
	for i := range n {
		decayed := values[i]
		for j := i - 1; j >= 0; j-- {
			decayed /= base
			values[j] = max(values[j], decayed)
		}

		decayed = values[i]
		for j := i + 1; j < n; j++ {
			decayed /= base
			values[j] = max(values[j], decayed)
		}
	}
}
