// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Source delivers fixed-size chunks of interleaved float32 samples. Read
// blocks until dst is filled or fails; io.EOF marks the end of a finite
// source.
type Source interface {
	Read(dst []float32) error
}

// StreamConfig describes a capture stream.
type StreamConfig struct {
	DeviceID        int
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
}

// InputStream captures from a PortAudio input device in blocking mode.
// PortAudio must be initialized for the stream's lifetime.
type InputStream struct {
	config  StreamConfig
	device  *portaudio.DeviceInfo
	latency time.Duration
	stream  *portaudio.Stream
	buffer  []float32 // PortAudio reads into this buffer.

	overflows uint64
}

var _ Source = (*InputStream)(nil)

// OpenInputStream opens, but does not start, a stream on the configured
// device.
func OpenInputStream(cfg StreamConfig) (*InputStream, error) {
	if cfg.Channels <= 0 || cfg.FramesPerBuffer <= 0 || cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid stream config: %d channels, %d frames, %.0f Hz", cfg.Channels, cfg.FramesPerBuffer, cfg.SampleRate)
	}

	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < cfg.Channels {
		return nil, fmt.Errorf("device %q has %d input channels, need %d", device.Name, device.MaxInputChannels, cfg.Channels)
	}

	s := &InputStream{
		config: cfg,
		device: device,
		buffer: make([]float32, cfg.FramesPerBuffer*cfg.Channels),
	}
	if cfg.LowLatency {
		s.latency = device.DefaultLowInputLatency
	} else {
		s.latency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: cfg.Channels,
			Device:   device,
			Latency:  s.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.buffer)
	if err != nil {
		return nil, fmt.Errorf("open input stream on %q: %w", device.Name, err)
	}
	s.stream = stream

	logger.Infof("Opened input stream (device %q, %d ch, %.0f Hz, %d frames, latency %v)",
		device.Name, cfg.Channels, cfg.SampleRate, cfg.FramesPerBuffer, s.latency)
	return s, nil
}

// Start begins capture.
func (s *InputStream) Start() error {
	return s.stream.Start()
}

// Read blocks for the next chunk. An input overflow means samples were lost
// upstream; it is logged and the chunk is delivered anyway.
func (s *InputStream) Read(dst []float32) error {
	if len(dst) != len(s.buffer) {
		return fmt.Errorf("read buffer has %d samples, want %d", len(dst), len(s.buffer))
	}
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return err
		}
		s.overflows++
		logger.Warnf("Input overflowed (%d so far)", s.overflows)
	}
	copy(dst, s.buffer)
	return nil
}

// Device returns the capture device.
func (s *InputStream) Device() *portaudio.DeviceInfo {
	return s.device
}

// Latency returns the requested input latency.
func (s *InputStream) Latency() time.Duration {
	return s.latency
}

// Stop halts capture; a blocked Read returns.
func (s *InputStream) Stop() error {
	return s.stream.Stop()
}

// Close stops and releases the stream.
func (s *InputStream) Close() error {
	if s.stream == nil {
		return nil
	}
	_ = s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	return err
}
