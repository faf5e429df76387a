// SPDX-License-Identifier: MIT
package analysis

// ChunkProcessor turns one interleaved audio chunk into band magnitudes.
// Implementations run on the hot path: they should not allocate per call,
// and the returned slice is only valid until the next call.
type ChunkProcessor interface {
	Process(chunk []float32) ([]float64, error)
	NumBands() int
}

// Observer receives every band-magnitude vector in chunk order. OnBands runs
// on the worker goroutine; the slice is reused after it returns, so an
// observer that keeps the values must copy them.
type Observer interface {
	OnBands(bands []float64)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(bands []float64)

func (f ObserverFunc) OnBands(bands []float64) { f(bands) }

// BandsProvider serves the latest band vector to readers on other
// goroutines (renderers, network publishers).
type BandsProvider interface {
	// CopyInto copies the latest vector into dst and returns its sequence
	// number, 0 if nothing has been published yet.
	CopyInto(dst []float64) (uint64, error)
	NumBands() int
}
