// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// FrameBuffer is the sliding analysis window. Every Shift discards the
// oldest BufferSize samples and appends a new chunk, so consecutive frames
// overlap by FrameSize-BufferSize samples.
type FrameBuffer struct {
	samples    []float64
	bufferSize int
}

// NewFrameBuffer allocates a zeroed frame of frameSize samples that advances
// by bufferSize samples per Shift.
func NewFrameBuffer(frameSize, bufferSize int) (*FrameBuffer, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: frame size must be positive, got %d", ErrInvalidParams, frameSize)
	}
	if bufferSize <= 0 || bufferSize > frameSize {
		return nil, fmt.Errorf("%w: buffer size %d must be in 1..%d", ErrInvalidParams, bufferSize, frameSize)
	}
	return &FrameBuffer{
		samples:    make([]float64, frameSize),
		bufferSize: bufferSize,
	}, nil
}

// Shift moves the frame forward by one chunk. The chunk must hold exactly
// BufferSize samples; the frame is left untouched otherwise.
func (f *FrameBuffer) Shift(chunk []float64) error {
	if len(chunk) != f.bufferSize {
		return fmt.Errorf("%w: got %d samples, want %d", ErrChunkSize, len(chunk), f.bufferSize)
	}
	overlap := len(f.samples) - f.bufferSize
	copy(f.samples, f.samples[f.bufferSize:])
	copy(f.samples[overlap:], chunk)
	return nil
}

// Samples returns the frame in chronological order. The slice is owned by
// the buffer and changes on the next Shift.
func (f *FrameBuffer) Samples() []float64 {
	return f.samples
}

// FrameSize returns the frame length.
func (f *FrameBuffer) FrameSize() int {
	return len(f.samples)
}

// BufferSize returns the number of samples consumed per Shift.
func (f *FrameBuffer) BufferSize() int {
	return f.bufferSize
}

// Downmix averages interleaved multi-channel samples into dst, one value
// per sample frame. len(interleaved) must equal len(dst)*channels.
func Downmix(dst []float64, interleaved []float32, channels int) error {
	if channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidParams, channels)
	}
	if len(interleaved) != len(dst)*channels {
		return fmt.Errorf("%w: got %d interleaved samples, want %d", ErrChunkSize, len(interleaved), len(dst)*channels)
	}

	if channels == 1 {
		for i, s := range interleaved {
			dst[i] = float64(s)
		}
		return nil
	}

	scale := 1.0 / float64(channels)
	for i := range dst {
		var sum float64
		for _, s := range interleaved[i*channels : (i+1)*channels] {
			sum += float64(s)
		}
		dst[i] = sum * scale
	}
	return nil
}
