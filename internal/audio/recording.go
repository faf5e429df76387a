// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("already recording")

// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
const wavFormatPCM = 1

// Recorder writes float32 chunks to a PCM WAV file.
type Recorder struct {
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
	maxValue  float64
	samples   int
}

// NewRecorder creates filename and writes a WAV header for the given format.
// bitDepth is 16, 24 or 32.
func NewRecorder(filename string, sampleRate, channels, bitDepth, chunkSamples int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}
	if channels <= 0 || sampleRate <= 0 || chunkSamples <= 0 {
		return nil, fmt.Errorf("invalid recording format: %d channels, %d Hz, %d samples", channels, sampleRate, chunkSamples)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, channels, wavFormatPCM),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, chunkSamples),
			SourceBitDepth: bitDepth,
		},
		maxValue: float64(int64(1)<<(bitDepth-1) - 1),
	}, nil
}

// Write appends one interleaved chunk, clipping samples to [-1, 1].
func (r *Recorder) Write(chunk []float32) error {
	if len(chunk) > cap(r.sampleBuf.Data) {
		return fmt.Errorf("chunk of %d samples exceeds recording buffer of %d", len(chunk), cap(r.sampleBuf.Data))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(chunk)]
	for i, s := range chunk {
		v := math.Max(-1, math.Min(1, float64(s)))
		r.sampleBuf.Data[i] = int(math.Round(v * r.maxValue))
	}
	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return err
	}
	r.samples += len(chunk)
	return nil
}

// Samples returns the number of interleaved samples written.
func (r *Recorder) Samples() int {
	return r.samples
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	return errors.Join(encErr, fileErr)
}

// StartRecording tees every captured chunk to a WAV file until
// StopRecording.
func (e *Engine) StartRecording(filename string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.recorder != nil {
		return ErrAlreadyRecording
	}

	rec, err := NewRecorder(filename, int(e.config.SampleRate), e.config.Channels, e.config.RecordBitDepth, len(e.chunk))
	if err != nil {
		return err
	}
	e.recorder = rec
	logger.Infof("Recording to %s", filename)
	return nil
}

// StopRecording finalizes the current recording. It is a no-op when not
// recording.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.closeRecorder()
}

// IsRecording reports whether chunks are being written to a file.
func (e *Engine) IsRecording() bool {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.recorder != nil
}

// record writes chunk if recording. A write error ends the recording.
func (e *Engine) record(chunk []float32) {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.recorder == nil {
		return
	}
	if err := e.recorder.Write(chunk); err != nil {
		logger.Errorf("Error writing to WAV file, recording stopped: %v", err)
		if err := e.closeRecorder(); err != nil {
			logger.Errorf("Error closing WAV file: %v", err)
		}
	}
}

// closeRecorder requires recMu.
func (e *Engine) closeRecorder() error {
	if e.recorder == nil {
		return nil
	}
	rec := e.recorder
	e.recorder = nil
	if err := rec.Close(); err != nil {
		return err
	}
	logger.Infof("Recording stopped (%d samples)", rec.Samples())
	return nil
}
