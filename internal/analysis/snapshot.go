// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot is an Observer that keeps a private copy of the latest band
// vector for readers on other goroutines. Each OnBands increments the
// sequence number, so a reader can tell a new frame from a repeated one.
type Snapshot struct {
	mu      sync.RWMutex
	bands   []float64
	seq     uint64
	updated time.Time
}

var (
	_ Observer      = (*Snapshot)(nil)
	_ BandsProvider = (*Snapshot)(nil)
)

// NewSnapshot returns a snapshot of n zeroed bands.
func NewSnapshot(n int) *Snapshot {
	return &Snapshot{bands: make([]float64, n)}
}

// OnBands copies bands. A vector of a different length is truncated or
// zero-extended to the snapshot's size.
func (s *Snapshot) OnBands(bands []float64) {
	s.mu.Lock()
	n := copy(s.bands, bands)
	clear(s.bands[n:])
	s.seq++
	s.updated = time.Now()
	s.mu.Unlock()
}

// CopyInto copies the latest vector into dst, which must have NumBands
// elements, without allocating.
func (s *Snapshot) CopyInto(dst []float64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(dst) != len(s.bands) {
		return 0, fmt.Errorf("destination slice length %d does not match required length %d", len(dst), len(s.bands))
	}
	copy(dst, s.bands)
	return s.seq, nil
}

// Bands returns a copy of the latest vector.
// NOTE: This allocates; use CopyInto on hot paths.
func (s *Snapshot) Bands() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.bands))
	copy(out, s.bands)
	return out
}

// Seq returns the number of vectors received so far.
func (s *Snapshot) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Updated returns when the latest vector arrived.
func (s *Snapshot) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

func (s *Snapshot) NumBands() int {
	return len(s.bands)
}
