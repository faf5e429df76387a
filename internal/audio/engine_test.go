// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"barviz/internal/analysis"
	"barviz/pkg/utils"
)

const (
	testSampleRate = 8000.0
	testFrameSize  = 64
	testChannels   = 2
)

func testConfig() Config {
	return Config{SampleRate: testSampleRate, Channels: testChannels, FramesPerBuffer: testFrameSize}
}

// counterSource fills every chunk with its sequence number and ends with
// io.EOF after limit chunks (never when limit is 0).
type counterSource struct {
	n     atomic.Int64
	limit int64
	err   error
	delay time.Duration
}

func (s *counterSource) Read(dst []float32) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	n := s.n.Add(1)
	if s.limit > 0 && n > s.limit {
		if s.err != nil {
			return s.err
		}
		return io.EOF
	}
	for i := range dst {
		dst[i] = float32(n)
	}
	return nil
}

// firstSampleProcessor reports the first sample of each chunk as its single
// band.
type firstSampleProcessor struct {
	bands []float64
	delay time.Duration
	err   error
}

func (p *firstSampleProcessor) Process(chunk []float32) ([]float64, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.bands[0] = float64(chunk[0])
	return p.bands, nil
}

func (p *firstSampleProcessor) NumBands() int { return 1 }

func newTestEngine(t *testing.T, src Source, proc analysis.ChunkProcessor) *Engine {
	t.Helper()
	e, err := NewEngine(src, proc, testConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestEngineRunOrderedUntilEOF(t *testing.T) {
	e := newTestEngine(t, &counterSource{limit: 50}, &firstSampleProcessor{bands: make([]float64, 1)})

	first, second := &utils.RecordingObserver{}, &utils.RecordingObserver{}
	var order []string
	e.AddObserver(analysis.ObserverFunc(func([]float64) { order = append(order, "a") }))
	e.AddObserver(first)
	e.AddObserver(analysis.ObserverFunc(func([]float64) { order = append(order, "b") }))
	e.AddObserver(second)

	if err := e.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() error = %v, want io.EOF", err)
	}

	if e.Frames() != 50 || len(first.Frames) != 50 || len(second.Frames) != 50 {
		t.Fatalf("frames = %d, observed %d and %d; want 50", e.Frames(), len(first.Frames), len(second.Frames))
	}
	for i, f := range first.Frames {
		if f[0] != float64(i+1) {
			t.Errorf("frame %d = %v, want %d", i, f[0], i+1)
		}
	}
	if !slices.Equal(order[:4], []string{"a", "b", "a", "b"}) {
		t.Errorf("observer order = %v", order[:4])
	}
}

func TestEnginePauseResume(t *testing.T) {
	e := newTestEngine(t, &counterSource{delay: time.Millisecond}, &firstSampleProcessor{bands: make([]float64, 1)})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	waitFor(t, func() bool { return e.Frames() >= 5 })

	e.Pause()
	if !e.IsPaused() {
		t.Fatal("IsPaused() = false after Pause()")
	}
	time.Sleep(10 * time.Millisecond) // Let the in-flight iteration finish.
	paused := e.Frames()
	time.Sleep(30 * time.Millisecond)
	if got := e.Frames(); got != paused {
		t.Errorf("worker advanced while paused: %d -> %d", paused, got)
	}

	e.Resume()
	waitFor(t, func() bool { return e.Frames() >= paused+5 })

	e.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after Stop", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Stop")
	}
}

func TestEngineStopReleasesPausedWorker(t *testing.T) {
	e := newTestEngine(t, &counterSource{}, &firstSampleProcessor{bands: make([]float64, 1)})
	e.Pause()

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	if e.Frames() != 0 {
		t.Fatalf("paused worker processed %d chunks", e.Frames())
	}

	e.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not release the paused worker")
	}
	if e.Frames() != 0 {
		t.Errorf("stopped worker processed %d chunks", e.Frames())
	}

	e.Pause()
	if e.IsPaused() {
		t.Errorf("Pause after Stop closed the gate")
	}
}

func TestEngineContextCancel(t *testing.T) {
	e := newTestEngine(t, &counterSource{delay: time.Millisecond}, &firstSampleProcessor{bands: make([]float64, 1)})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	waitFor(t, func() bool { return e.Frames() >= 3 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestEngineSourceError(t *testing.T) {
	boom := errors.New("device unplugged")
	e := newTestEngine(t, &counterSource{limit: 3, err: boom}, &firstSampleProcessor{bands: make([]float64, 1)})

	err := e.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if e.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", e.Frames())
	}
}

func TestEngineProcessError(t *testing.T) {
	e := newTestEngine(t, &counterSource{}, &firstSampleProcessor{bands: make([]float64, 1), err: analysis.ErrChunkSize})
	if err := e.Run(context.Background()); !errors.Is(err, analysis.ErrChunkSize) {
		t.Fatalf("Run() error = %v, want ErrChunkSize", err)
	}
}

func TestEngineAlreadyRunning(t *testing.T) {
	e := newTestEngine(t, &counterSource{delay: time.Millisecond}, &firstSampleProcessor{bands: make([]float64, 1)})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	waitFor(t, func() bool { return e.Frames() >= 1 })

	if err := e.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
	e.Stop()
	<-done
}

func TestEngineOverruns(t *testing.T) {
	// 64 frames at 8 kHz is an 8 ms period.
	e := newTestEngine(t, &counterSource{limit: 3}, &firstSampleProcessor{bands: make([]float64, 1), delay: 15 * time.Millisecond})
	if d := e.ChunkPeriod() - 8*time.Millisecond; d < -time.Microsecond || d > time.Microsecond {
		t.Fatalf("ChunkPeriod() = %v, want 8ms", e.ChunkPeriod())
	}
	_ = e.Run(context.Background())
	if e.Overruns() != 3 {
		t.Errorf("Overruns() = %d, want 3", e.Overruns())
	}
}

func TestEngineWithPipeline(t *testing.T) {
	p := analysis.DefaultParams()
	p.SampleRate = testSampleRate
	p.FrameSize = 256
	p.BufferSize = testFrameSize
	p.Channels = testChannels
	p.UpperFreq = 4000
	pl, err := analysis.NewPipeline(p)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	e := newTestEngine(t, &counterSource{limit: 20}, pl)
	snap := analysis.NewSnapshot(pl.NumBands())
	e.AddObserver(snap)

	if err := e.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() error = %v, want io.EOF", err)
	}
	if snap.Seq() != 20 {
		t.Errorf("snapshot seq = %d, want 20", snap.Seq())
	}
}

func TestNewEngineErrors(t *testing.T) {
	proc := &firstSampleProcessor{bands: make([]float64, 1)}
	if _, err := NewEngine(nil, proc, testConfig()); err == nil {
		t.Error("NewEngine(nil source) error = nil")
	}
	if _, err := NewEngine(&counterSource{}, nil, testConfig()); err == nil {
		t.Error("NewEngine(nil pipeline) error = nil")
	}
	bad := testConfig()
	bad.Channels = 0
	if _, err := NewEngine(&counterSource{}, proc, bad); err == nil {
		t.Error("NewEngine(0 channels) error = nil")
	}
}

func TestEngineTogglePause(t *testing.T) {
	e := newTestEngine(t, &counterSource{}, &firstSampleProcessor{bands: make([]float64, 1)})
	if !e.TogglePause() || !e.IsPaused() {
		t.Error("first TogglePause should pause")
	}
	if e.TogglePause() || e.IsPaused() {
		t.Error("second TogglePause should resume")
	}
}

func TestEngineIterationNoAllocs(t *testing.T) {
	e := newTestEngine(t, &counterSource{}, &firstSampleProcessor{bands: make([]float64, 1)})
	snap := analysis.NewSnapshot(1)
	e.AddObserver(snap)

	allocs := testing.AllocsPerRun(100, func() {
		_ = e.iterate()
	})
	if allocs > 0 {
		t.Errorf("iteration allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func BenchmarkEngineIteration(b *testing.B) {
	p := analysis.DefaultParams()
	p.BufferSize = 1024
	pl, _ := analysis.NewPipeline(p)
	e, _ := NewEngine(&counterSource{}, pl, Config{SampleRate: p.SampleRate, Channels: p.Channels, FramesPerBuffer: p.BufferSize})
	e.AddObserver(analysis.NewSnapshot(pl.NumBands()))

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		_ = e.iterate()
	}
}
