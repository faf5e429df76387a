// SPDX-License-Identifier: MIT
//
// Package utils holds deterministic signal generators and helpers shared by
// tests and benchmarks.
package utils

import "math"

// RecordingObserver stores a copy of every band vector it receives.
type RecordingObserver struct {
	Frames [][]float64
}

// OnBands copies bands; the caller reuses the slice.
func (r *RecordingObserver) OnBands(bands []float64) {
	frame := make([]float64, len(bands))
	copy(frame, bands)
	r.Frames = append(r.Frames, frame)
}

// Last returns the most recent vector, or nil.
func (r *RecordingObserver) Last() []float64 {
	if len(r.Frames) == 0 {
		return nil
	}
	return r.Frames[len(r.Frames)-1]
}

// GenerateComplexWave returns a 440 Hz tone with its 2nd and 3rd harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns size mono samples of a 0.9 amplitude sine.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// GenerateConstant returns size samples of value v.
func GenerateConstant(size int, v float32) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = v
	}
	return buffer
}

// SineGenerator produces a phase-continuous sine split into chunks, so that
// consecutive chunks join without discontinuities. Every channel carries the
// same signal.
type SineGenerator struct {
	SampleRate float64
	Frequency  float64
	Amplitude  float64
	Channels   int

	n int // Sample frames produced so far.
}

// Fill writes len(dst)/Channels interleaved sample frames into dst.
func (g *SineGenerator) Fill(dst []float32) {
	ch := max(g.Channels, 1)
	for i := 0; i+ch <= len(dst); i += ch {
		t := float64(g.n) / g.SampleRate
		v := float32(g.Amplitude * math.Sin(2*math.Pi*g.Frequency*t))
		for c := range ch {
			dst[i+c] = v
		}
		g.n++
	}
}

// BinFrequency returns the exact center frequency of bin k of a frameSize
// FFT, for building signals that are periodic in the frame.
func BinFrequency(k, frameSize int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(frameSize)
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin..endBin], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
