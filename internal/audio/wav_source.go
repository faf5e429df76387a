// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files the decoder does not accept.
var ErrInvalidWAV = errors.New("not a valid PCM WAV file")

// WAVOptions controls playback of a WAV source.
type WAVOptions struct {
	FramesPerBuffer int
	Loop            bool // Restart from the beginning at the end of the file.
	Realtime        bool // Pace Read to the file's sample rate.
}

// WAVSource reads a PCM WAV file as a capture source. The final partial
// chunk is zero-padded; the next Read returns io.EOF unless looping.
type WAVSource struct {
	file    *os.File
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	opts    WAVOptions

	sampleRate int
	channels   int
	bitDepth   int
	scale      float64 // Converts PCM ints to [-1, 1).
	offset     int     // Bias of unsigned 8-bit PCM.

	period time.Duration
	next   time.Time
	eof    bool
}

var _ Source = (*WAVSource)(nil)

// OpenWAV opens path and reads its header.
func OpenWAV(path string, opts WAVOptions) (*WAVSource, error) {
	if opts.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", opts.FramesPerBuffer)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	w := &WAVSource{
		file:       f,
		decoder:    dec,
		opts:       opts,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
	}
	if w.channels <= 0 || w.sampleRate <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidWAV, w.channels, w.sampleRate)
	}

	switch w.bitDepth {
	case 8:
		w.scale, w.offset = 1.0/128, 128
	case 16, 24, 32:
		w.scale = 1.0 / float64(int64(1)<<(w.bitDepth-1))
	default:
		f.Close()
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, w.bitDepth)
	}

	w.buf = &audio.IntBuffer{
		Format: &audio.Format{NumChannels: w.channels, SampleRate: w.sampleRate},
		Data:   make([]int, opts.FramesPerBuffer*w.channels),
	}
	w.period = time.Duration(float64(opts.FramesPerBuffer) / float64(w.sampleRate) * float64(time.Second))

	logger.Infof("Opened WAV source %s (%d ch, %d Hz, %d-bit, loop=%v)", path, w.channels, w.sampleRate, w.bitDepth, opts.Loop)
	return w, nil
}

// SampleRate returns the file's sample rate in Hz.
func (w *WAVSource) SampleRate() int { return w.sampleRate }

// Channels returns the file's channel count.
func (w *WAVSource) Channels() int { return w.channels }

// BitDepth returns the file's PCM bit depth.
func (w *WAVSource) BitDepth() int { return w.bitDepth }

// ChunkSamples returns the interleaved sample count Read expects.
func (w *WAVSource) ChunkSamples() int { return cap(w.buf.Data) }

// Read fills dst with the next chunk.
func (w *WAVSource) Read(dst []float32) error {
	if len(dst) != cap(w.buf.Data) {
		return fmt.Errorf("read buffer has %d samples, want %d", len(dst), cap(w.buf.Data))
	}
	if w.eof {
		return io.EOF
	}

	filled := 0
	for filled < len(dst) {
		w.buf.Data = w.buf.Data[:len(dst)-filled]
		n, err := w.decoder.PCMBuffer(w.buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode wav: %w", err)
		}
		for i, v := range w.buf.Data[:n] {
			dst[filled+i] = float32(float64(v-w.offset) * w.scale)
		}
		filled += n

		if n > 0 {
			continue
		}
		if !w.opts.Loop {
			clear(dst[filled:])
			w.eof = true
			if filled == 0 {
				return io.EOF
			}
			break
		}
		if err := w.rewind(); err != nil {
			return err
		}
	}
	w.buf.Data = w.buf.Data[:cap(w.buf.Data)]

	if w.opts.Realtime {
		w.pace()
	}
	return nil
}

// rewind restarts decoding at the first sample.
func (w *WAVSource) rewind() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind wav: %w", err)
	}
	w.decoder = wav.NewDecoder(w.file)
	if !w.decoder.IsValidFile() {
		return fmt.Errorf("%w: rewind failed", ErrInvalidWAV)
	}
	// An empty file would loop forever.
	if w.decoder.PCMLen() == 0 {
		return io.EOF
	}
	return nil
}

// pace sleeps until the chunk's real-time deadline.
func (w *WAVSource) pace() {
	now := time.Now()
	if w.next.IsZero() || now.Sub(w.next) > w.period {
		w.next = now
	}
	w.next = w.next.Add(w.period)
	if d := time.Until(w.next); d > 0 {
		time.Sleep(d)
	}
}

// Close releases the file.
func (w *WAVSource) Close() error {
	return w.file.Close()
}
