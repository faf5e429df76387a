// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"barviz/pkg/utils"
)

// singleBandParams is an 8-point, 4-sample-hop mono configuration.
func singleBandParams() Params {
	p := DefaultParams()
	p.SampleRate = 8000
	p.FrameSize = 8
	p.BufferSize = 4
	p.Channels = 1
	p.Window = Rectangular
	p.Weighting = CurveZ
	p.LowerFreq = 20
	p.UpperFreq = 4000
	return p
}

func newDCPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p := singleBandParams()
	s, err := NewOctaveStrategyFromEdges(BandEdges{Lower: []int{0}, Upper: []int{0}}, BinFrequencies(p.SampleRate, p.FrameSize), p.Weighting)
	if err != nil {
		t.Fatalf("NewOctaveStrategyFromEdges() error = %v", err)
	}
	pl, err := NewPipelineWithStrategy(p, s)
	if err != nil {
		t.Fatalf("NewPipelineWithStrategy() error = %v", err)
	}
	return pl
}

func TestPipelineDCConverges(t *testing.T) {
	pl := newDCPipeline(t)
	chunk := utils.GenerateConstant(4, 1)

	// Half-filled frame: DC magnitude 4, PSD (2*4)^2/64 = 1, 0 dB.
	bands, err := pl.Process(chunk)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if math.Abs(bands[0]) > 1e-9 {
		t.Errorf("first band = %v dB, want 0", bands[0])
	}

	// Full frame: DC magnitude 8, PSD 4, 10*log10(4) dB from then on.
	want := 10 * math.Log10(4)
	for i := range 10 {
		bands, err = pl.Process(chunk)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if math.Abs(bands[0]-want) > 1e-9 {
			t.Errorf("iteration %d band = %v dB, want %v", i, bands[0], want)
		}
		spectrum := pl.Spectrum()
		for k, v := range spectrum[1:] {
			if math.Abs(v+120) > 1e-9 {
				t.Errorf("iteration %d bin %d = %v dB, want the -120 dB floor", i, k+1, v)
			}
		}
	}
}

func TestPipelineThirdOctaveBandCount(t *testing.T) {
	p := DefaultParams()
	pl, err := NewPipeline(p)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if pl.NumBands() != 31 {
		t.Errorf("NumBands() = %d, want 31", pl.NumBands())
	}
	if got := len(pl.Strategy().Frequencies()); got != 31 {
		t.Errorf("Frequencies() length = %d, want 31", got)
	}
	if s := pl.Strategy().String(); !strings.Contains(s, "1/3") {
		t.Errorf("Strategy().String() = %q, want the fraction", s)
	}

	// Silence bottoms out at the floor plus the per-bin and per-band
	// weighting.
	bands, err := pl.Process(make([]float32, p.ChunkSamples()))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	binWeights := Weights(BinFrequencies(p.SampleRate, p.FrameSize), p.Weighting)
	edges := pl.Strategy().Edges()
	freqs := pl.Strategy().Frequencies()
	for i, v := range bands {
		var sum float64
		for k := edges.Lower[i]; k <= edges.Upper[i]; k++ {
			sum += binWeights[k]
		}
		want := -120 + sum/float64(edges.Width(i)) + Weight(freqs[i].Center, p.Weighting)
		if math.Abs(v-want) > 1e-6 {
			t.Errorf("silent band %d = %v, want %v", i, v, want)
		}
	}
}

func TestPipelineLogspaceSinglePeak(t *testing.T) {
	const bin = 100

	p := DefaultParams()
	p.FrameSize = 1024
	p.BufferSize = 256
	p.Channels = 1
	p.Window = Rectangular
	p.Weighting = CurveZ
	p.Distribution = Logspace
	p.Bands = 50
	p.LowerFreq = 50
	p.UpperFreq = 10000

	pl, err := NewPipeline(p)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if pl.NumBands() != 50 {
		t.Fatalf("NumBands() = %d, want 50", pl.NumBands())
	}

	gen := &utils.SineGenerator{
		SampleRate: p.SampleRate,
		Frequency:  utils.BinFrequency(bin, p.FrameSize, p.SampleRate),
		Amplitude:  1,
		Channels:   1,
	}
	chunk := make([]float32, p.ChunkSamples())

	var bands []float64
	for range 300 {
		gen.Fill(chunk)
		if bands, err = pl.Process(chunk); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	want := pl.Strategy().Edges().Contains(bin)
	if want < 0 {
		t.Fatalf("no band contains bin %d", bin)
	}
	if got := utils.FindPeakBin(bands, 0, len(bands)-1); got != want {
		t.Fatalf("peak band = %d, want %d (%v)", got, want, bands)
	}
	peak := bands[want]
	for i, v := range bands {
		if i != want && v > 1e-3*peak {
			t.Errorf("band %d = %v, want near zero (peak %v)", i, v, peak)
		}
	}
}

func TestPipelineLogspaceLowSampleRate(t *testing.T) {
	for _, sampleRate := range []float64{8000, 22050} {
		t.Run(fmt.Sprintf("%.0f", sampleRate), func(t *testing.T) {
			p := DefaultParams()
			p.SampleRate = sampleRate
			p.FrameSize = 1024
			p.BufferSize = 256
			p.Distribution = Logspace
			p.Bands = 50
			p.UpperFreq = MaxUpperFreq

			pl, err := NewPipeline(p)
			if err != nil {
				t.Fatalf("NewPipeline() error = %v", err)
			}
			if pl.NumBands() != 50 {
				t.Fatalf("NumBands() = %d, want 50", pl.NumBands())
			}
			freqs := pl.Strategy().Frequencies()
			if top := freqs[len(freqs)-1].Upper; math.Abs(top-sampleRate/2) > 1e-6 {
				t.Errorf("top band upper edge = %v Hz, want Nyquist %v", top, sampleRate/2)
			}

			gen := &utils.SineGenerator{SampleRate: sampleRate, Frequency: 1000, Amplitude: 0.5, Channels: p.Channels}
			chunk := make([]float32, p.ChunkSamples())
			for range 20 {
				gen.Fill(chunk)
				bands, err := pl.Process(chunk)
				if err != nil {
					t.Fatalf("Process() error = %v", err)
				}
				for i, v := range bands {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						t.Fatalf("band %d = %v", i, v)
					}
				}
			}
		})
	}
}

func TestPipelineRecoversFromNaNChunk(t *testing.T) {
	for _, d := range []Distribution{Octave, Logspace} {
		t.Run(d.String(), func(t *testing.T) {
			p := DefaultParams()
			p.Distribution = d
			p.Bands = 20
			pl, err := NewPipeline(p)
			if err != nil {
				t.Fatalf("NewPipeline() error = %v", err)
			}

			gen := &utils.SineGenerator{SampleRate: p.SampleRate, Frequency: 1000, Amplitude: 0.5, Channels: p.Channels}
			chunk := make([]float32, p.ChunkSamples())
			gen.Fill(chunk)
			chunk[0] = float32(math.NaN())
			if _, err := pl.Process(chunk); err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			var bands []float64
			for range 200 {
				gen.Fill(chunk)
				if bands, err = pl.Process(chunk); err != nil {
					t.Fatalf("Process() error = %v", err)
				}
			}
			for i, v := range bands {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("band %d = %v after recovery", i, v)
				}
			}

			if s, ok := pl.Strategy().(*LogspaceStrategy); ok {
				st := s.Aggregator().State()
				if a := st.Adjustment; math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
					t.Errorf("adjustment = %v", a)
				}
				for n, v := range st.Prev {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						t.Errorf("history %d = %v", n, v)
					}
				}
				if slices.Max(bands) <= 0 {
					t.Errorf("bands = %v, want the tone back", bands)
				}
			}
		})
	}
}

func TestPipelineDownmix(t *testing.T) {
	p := singleBandParams()
	p.Channels = 2
	s, _ := NewOctaveStrategyFromEdges(BandEdges{Lower: []int{0}, Upper: []int{0}}, BinFrequencies(p.SampleRate, p.FrameSize), CurveZ)
	pl, err := NewPipelineWithStrategy(p, s)
	if err != nil {
		t.Fatalf("NewPipelineWithStrategy() error = %v", err)
	}

	// Opposite channels cancel.
	chunk := []float32{1, -1, 1, -1, 1, -1, 1, -1}
	for range 3 {
		if _, err := pl.Process(chunk); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	if !slices.Equal(pl.Frame(), make([]float64, 8)) {
		t.Errorf("Frame() = %v, want silence", pl.Frame())
	}
}

func TestPipelineChunkSize(t *testing.T) {
	pl := newDCPipeline(t)
	_, _ = pl.Process([]float32{1, 2, 3, 4})
	before := slices.Clone(pl.Frame())

	for _, n := range []int{0, 3, 5, 8} {
		if _, err := pl.Process(make([]float32, n)); !errors.Is(err, ErrChunkSize) {
			t.Errorf("Process(%d samples) error = %v, want ErrChunkSize", n, err)
		}
	}
	if !slices.Equal(pl.Frame(), before) {
		t.Errorf("failed Process modified the frame")
	}
}

func TestNewPipelineErrors(t *testing.T) {
	p := DefaultParams()
	p.UpperFreq = 30000
	if _, err := NewPipeline(p); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("NewPipeline(bad range) error = %v, want ErrInvalidParams", err)
	}

	if _, err := NewPipelineWithStrategy(DefaultParams(), nil); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("NewPipelineWithStrategy(nil) error = %v, want ErrInvalidParams", err)
	}

	// Edges built for a larger spectrum do not fit.
	big, _ := NewLogspaceStrategy(44100, 64, 8192, 20, 20000, DefaultNoiseReduction, CurveZ)
	small := DefaultParams()
	small.FrameSize = 256
	small.BufferSize = 256
	if _, err := NewPipelineWithStrategy(small, big); !errors.Is(err, ErrTooManyBands) {
		t.Errorf("NewPipelineWithStrategy(oversized edges) error = %v, want ErrTooManyBands", err)
	}
}

func TestLogspaceStrategyWeighting(t *testing.T) {
	z, _ := NewLogspaceStrategy(44100, 16, 4096, 50, 10000, DefaultNoiseReduction, CurveZ)
	a, _ := NewLogspaceStrategy(44100, 16, 4096, 50, 10000, DefaultNoiseReduction, CurveA)

	if z.Distribution() != Logspace || z.Bands() != 16 {
		t.Fatalf("strategy = %v with %d bands", z.Distribution(), z.Bands())
	}
	if !slices.Equal(z.Edges().Lower, a.Edges().Lower) {
		t.Errorf("weighting changed the band edges")
	}
	for i, g := range z.Aggregator().gains {
		if g != 1 {
			t.Errorf("Z gain %d = %v, want 1", i, g)
		}
	}
	// A-weighting attenuates the lowest band.
	if a.Aggregator().gains[0] >= 1 {
		t.Errorf("A gain for %v Hz = %v, want < 1", a.Frequencies()[0].Center, a.Aggregator().gains[0])
	}
}

func TestPipelineProcessAllocs(t *testing.T) {
	for _, d := range []Distribution{Octave, Logspace} {
		t.Run(d.String(), func(t *testing.T) {
			p := DefaultParams()
			p.Distribution = d
			pl, err := NewPipeline(p)
			if err != nil {
				t.Fatalf("NewPipeline() error = %v", err)
			}
			chunk := utils.GenerateComplexWave(p.ChunkSamples(), p.SampleRate)

			allocs := testing.AllocsPerRun(100, func() {
				_, _ = pl.Process(chunk)
			})
			if allocs > 0 {
				t.Errorf("Process allocated memory: got %.1f allocs, want 0", allocs)
			}
		})
	}
}

func BenchmarkPipelineProcess(b *testing.B) {
	for _, d := range []Distribution{Octave, Logspace} {
		b.Run(d.String(), func(b *testing.B) {
			p := DefaultParams()
			p.Distribution = d
			pl, _ := NewPipeline(p)
			chunk := utils.GenerateComplexWave(p.ChunkSamples(), p.SampleRate)

			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				_, _ = pl.Process(chunk)
			}
		})
	}
}
