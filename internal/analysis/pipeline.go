// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	applog "barviz/internal/log"
)

var logger = applog.For("Analysis")

// Pipeline runs one chunk through downmix, frame shift, spectrum analysis
// and band aggregation. It is not safe for concurrent use: exactly one
// worker calls Process, and every buffer it returns is reused by the next
// call.
type Pipeline struct {
	params   Params
	frame    *FrameBuffer
	analyzer *SpectrumAnalyzer
	strategy Strategy
	mono     []float64 // Downmixed chunk.
	bands    []float64 // Output vector, overwritten per call.
}

// Compile-time check.
var _ ChunkProcessor = (*Pipeline)(nil)

// NewPipeline validates p and builds the pipeline with the strategy p
// selects.
func NewPipeline(p Params) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var (
		s   Strategy
		err error
	)
	switch p.Distribution {
	case Octave:
		s, err = NewOctaveStrategy(p.Fraction, p.LowerFreq, p.UpperFreq, BinFrequencies(p.SampleRate, p.FrameSize), p.Weighting)
	case Logspace:
		s, err = NewLogspaceStrategy(p.SampleRate, p.Bands, p.FrameSize, p.LowerFreq, p.UpperFreq, p.NoiseReduction, p.Weighting)
	}
	if err != nil {
		return nil, err
	}
	return newPipeline(p, s)
}

// NewPipelineWithStrategy builds a pipeline around a pre-built strategy.
// The strategy's edges must fit the spectrum of p.FrameSize; p.Distribution
// and the band fields of p are ignored.
func NewPipelineWithStrategy(p Params, s Strategy) (*Pipeline, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil strategy", ErrInvalidParams)
	}
	p.Distribution = s.Distribution()
	switch p.Distribution {
	case Octave:
		if p.Fraction == 0 {
			p.Fraction = MinOctaveFraction
		}
	case Logspace:
		p.Bands = s.Bands()
		if p.NoiseReduction == 0 {
			p.NoiseReduction = DefaultNoiseReduction
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return newPipeline(p, s)
}

func newPipeline(p Params, s Strategy) (*Pipeline, error) {
	frame, err := NewFrameBuffer(p.FrameSize, p.BufferSize)
	if err != nil {
		return nil, err
	}
	analyzer, err := NewSpectrumAnalyzer(p.FrameSize, p.Window)
	if err != nil {
		return nil, err
	}
	if err := s.Edges().Validate(analyzer.Bins()); err != nil {
		return nil, err
	}

	logger.Infof("Initializing pipeline (rate %.0f Hz, frame %d, buffer %d, window %s, weighting %s, %s)",
		p.SampleRate, p.FrameSize, p.BufferSize, p.Window, p.Weighting, s)

	return &Pipeline{
		params:   p,
		frame:    frame,
		analyzer: analyzer,
		strategy: s,
		mono:     make([]float64, p.BufferSize),
		bands:    make([]float64, s.Bands()),
	}, nil
}

// Process consumes one interleaved chunk of BufferSize*Channels samples and
// returns the band magnitudes. On error the frame and AGC state are left as
// they were.
func (p *Pipeline) Process(chunk []float32) ([]float64, error) {
	if err := Downmix(p.mono, chunk, p.params.Channels); err != nil {
		return nil, err
	}
	return p.ProcessMono(p.mono)
}

// ProcessMono consumes BufferSize mono samples.
func (p *Pipeline) ProcessMono(chunk []float64) ([]float64, error) {
	if err := p.frame.Shift(chunk); err != nil {
		return nil, err
	}
	if _, err := p.analyzer.Analyze(p.frame.Samples()); err != nil {
		return nil, err
	}
	p.strategy.process(p.analyzer, p.bands)
	return p.bands, nil
}

// Bands returns the output vector of the last Process call.
func (p *Pipeline) Bands() []float64 { return p.bands }

// NumBands returns the length of the output vector.
func (p *Pipeline) NumBands() int { return len(p.bands) }

// Spectrum returns the per-bin values left by the last call: dB for the
// octave strategy, linear magnitudes for logspace.
func (p *Pipeline) Spectrum() []float64 { return p.analyzer.Magnitudes() }

// Frame returns the current analysis frame.
func (p *Pipeline) Frame() []float64 { return p.frame.Samples() }

func (p *Pipeline) Strategy() Strategy { return p.strategy }
func (p *Pipeline) Params() Params     { return p.params }

// BinFrequencies returns the center frequency of every bin of a frameSize
// real FFT.
func BinFrequencies(sampleRate float64, frameSize int) []float64 {
	freqs := make([]float64, frameSize/2+1)
	res := sampleRate / float64(frameSize)
	for i := range freqs {
		freqs[i] = float64(i) * res
	}
	return freqs
}
