// SPDX-License-Identifier: MIT
/*
Package audio runs the analysis worker and provides its capture sources:
- One worker goroutine pulls fixed-size chunks from a Source
- Each chunk runs through the analysis pipeline under a single lock
- Band vectors go to observers in registration order, in chunk order
- A pause gate suspends the worker between iterations
- Captured chunks can be teed to a WAV file

Thread Safety:
- Pause, Resume, Stop, AddObserver and recording control are safe from any
  goroutine
- Frame, spectrum and AGC state are touched only by the worker
- Buffers are pre-allocated so the loop does not allocate per chunk
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"barviz/internal/analysis"
	applog "barviz/internal/log"
)

var logger = applog.For("Engine")

// ErrAlreadyRunning is returned by Run when the worker is already active.
var ErrAlreadyRunning = errors.New("engine already running")

// Config is the capture format the engine expects from its source.
type Config struct {
	SampleRate      float64
	Channels        int
	FramesPerBuffer int
	RecordBitDepth  int // Bit depth of WAV recordings; 0 means 16.
}

// Engine owns the worker loop.
type Engine struct {
	config   Config
	source   Source
	pipeline analysis.ChunkProcessor

	chunk       []float32 // Interleaved input, reused every iteration.
	chunkPeriod time.Duration

	gate    *Gate
	stopped atomic.Bool
	running atomic.Bool
	mu      sync.Mutex // Brackets one full iteration.

	obsMu     sync.RWMutex
	observers []analysis.Observer

	recMu    sync.Mutex
	recorder *Recorder

	frames   atomic.Uint64
	overruns atomic.Uint64
}

// NewEngine pairs a source with a pipeline.
func NewEngine(source Source, pipeline analysis.ChunkProcessor, cfg Config) (*Engine, error) {
	if source == nil || pipeline == nil {
		return nil, errors.New("engine needs a source and a pipeline")
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("invalid engine config: %.0f Hz, %d channels, %d frames", cfg.SampleRate, cfg.Channels, cfg.FramesPerBuffer)
	}
	if cfg.RecordBitDepth == 0 {
		cfg.RecordBitDepth = 16
	}

	return &Engine{
		config:      cfg,
		source:      source,
		pipeline:    pipeline,
		chunk:       make([]float32, cfg.FramesPerBuffer*cfg.Channels),
		chunkPeriod: time.Duration(float64(cfg.FramesPerBuffer) / cfg.SampleRate * float64(time.Second)),
		gate:        NewGate(),
	}, nil
}

// AddObserver registers o. Observers run on the worker goroutine after
// every chunk, in the order they were added.
func (e *Engine) AddObserver(o analysis.Observer) {
	e.obsMu.Lock()
	e.observers = append(e.observers, o)
	e.obsMu.Unlock()
}

// Run executes the worker loop on the calling goroutine until Stop, ctx
// cancellation or a failure. It returns nil after Stop or cancellation,
// io.EOF when a finite source ends, and the wrapped error otherwise.
// The current iteration always finishes before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger.Infof("Worker started (%d frames x %d ch at %.0f Hz, %d bands)",
		e.config.FramesPerBuffer, e.config.Channels, e.config.SampleRate, e.pipeline.NumBands())
	defer func() {
		logger.Infof("Worker stopped after %d chunks (%d overruns)", e.frames.Load(), e.overruns.Load())
	}()

	for {
		if err := e.gate.Wait(ctx); err != nil {
			return nil
		}
		if e.stopped.Load() || ctx.Err() != nil {
			return nil
		}
		if err := e.iterate(); err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}
	}
}

// iterate reads one chunk and runs it through the pipeline and observers.
func (e *Engine) iterate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.source.Read(e.chunk); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("read chunk: %w", err)
	}
	start := time.Now()

	e.record(e.chunk)

	bands, err := e.pipeline.Process(e.chunk)
	if err != nil {
		return fmt.Errorf("process chunk: %w", err)
	}

	e.obsMu.RLock()
	for _, o := range e.observers {
		o.OnBands(bands)
	}
	e.obsMu.RUnlock()

	n := e.frames.Add(1)
	if elapsed := time.Since(start); elapsed > e.chunkPeriod {
		over := e.overruns.Add(1)
		if applog.Enabled(applog.LevelDebug) {
			logger.Debugf("Chunk %d took %v, period %v (%d overruns)", n, elapsed, e.chunkPeriod, over)
		}
	}
	return nil
}

// Pause suspends the worker before its next iteration. Frame and AGC
// state are kept.
func (e *Engine) Pause() {
	if e.stopped.Load() {
		return
	}
	e.gate.Close()
	logger.Debugf("Paused")
}

// Resume releases a paused worker.
func (e *Engine) Resume() {
	e.gate.Open()
	logger.Debugf("Resumed")
}

// TogglePause pauses a running worker or resumes a paused one and reports
// whether it is now paused.
func (e *Engine) TogglePause() bool {
	if e.IsPaused() {
		e.Resume()
		return false
	}
	e.Pause()
	return true
}

// IsPaused reports whether the pause gate is closed.
func (e *Engine) IsPaused() bool {
	return !e.gate.IsOpen()
}

// Stop asks the worker to exit after the current iteration. A paused
// worker is released so that it can observe the request.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.gate.Open()
}

// Frames returns the number of chunks processed.
func (e *Engine) Frames() uint64 {
	return e.frames.Load()
}

// Overruns returns the number of iterations that took longer than one
// chunk period.
func (e *Engine) Overruns() uint64 {
	return e.overruns.Load()
}

// ChunkPeriod returns the audio duration of one chunk.
func (e *Engine) ChunkPeriod() time.Duration {
	return e.chunkPeriod
}

// Close stops the worker and finalizes any recording.
func (e *Engine) Close() error {
	e.Stop()
	return e.StopRecording()
}
