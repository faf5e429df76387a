// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"net"

	"barviz/internal/analysis"
	applog "barviz/internal/log"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the settings that are not covered by the analysis
// parameters and then the analysis parameters themselves.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.Audio.InputChannels <= 0 {
		return fmt.Errorf("%w: audio.input_channels must be positive, got %d", ErrInvalidConfig, c.Audio.InputChannels)
	}
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("%w: audio.frames_per_buffer must be positive, got %d", ErrInvalidConfig, c.Audio.FramesPerBuffer)
	}
	if c.Audio.InputDevice < -1 {
		return fmt.Errorf("%w: audio.input_device must be -1 or a device index, got %d", ErrInvalidConfig, c.Audio.InputDevice)
	}

	if c.Effect.Monstercat < 0 || math.IsNaN(c.Effect.Monstercat) || math.IsInf(c.Effect.Monstercat, 0) {
		return fmt.Errorf("%w: effect.monstercat must be 0 (off) or positive, got %g", ErrInvalidConfig, c.Effect.Monstercat)
	}

	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: recording.bit_depth must be 16, 24 or 32, got %d", ErrInvalidConfig, c.Recording.BitDepth)
	}

	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %v", ErrInvalidConfig, c.Transport.UDPTargetAddress, err)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalidConfig)
		}
	}
	if c.Transport.WSEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.WSAddress); err != nil {
			return fmt.Errorf("%w: transport.ws_address %q: %v", ErrInvalidConfig, c.Transport.WSAddress, err)
		}
		if c.Transport.WSMinInterval < 0 {
			return fmt.Errorf("%w: transport.ws_min_interval must not be negative", ErrInvalidConfig)
		}
	}

	d := c.Display
	if d.FPS < MinFPS || d.FPS > MaxFPS {
		return fmt.Errorf("%w: display.fps %d outside %d..%d", ErrInvalidConfig, d.FPS, MinFPS, MaxFPS)
	}
	if d.BarWidth < 1 || d.BarGap < 0 {
		return fmt.Errorf("%w: display.bar_width must be >= 1 and display.bar_gap >= 0", ErrInvalidConfig)
	}
	if d.FloorDB >= d.CeilDB {
		return fmt.Errorf("%w: display.floor_db %g must be below display.ceil_db %g", ErrInvalidConfig, d.FloorDB, d.CeilDB)
	}

	if _, err := c.Params(); err != nil {
		return err
	}
	return nil
}

// Level returns the effective log level; Debug forces LevelDebug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// Params converts the audio and spectrum sections into validated analysis
// parameters.
func (c *Config) Params() (analysis.Params, error) {
	window, err := analysis.ParseWindowFunc(c.Spectrum.Window)
	if err != nil {
		return analysis.Params{}, fmt.Errorf("%w: spectrum.window: %w", ErrInvalidConfig, err)
	}
	weighting, err := analysis.ParseCurve(c.Spectrum.Weighting)
	if err != nil {
		return analysis.Params{}, fmt.Errorf("%w: spectrum.weighting: %w", ErrInvalidConfig, err)
	}
	dist, err := analysis.ParseDistribution(c.Spectrum.Distribution)
	if err != nil {
		return analysis.Params{}, fmt.Errorf("%w: spectrum.distribution: %w", ErrInvalidConfig, err)
	}

	p := analysis.Params{
		SampleRate:     c.Audio.SampleRate,
		FrameSize:      c.Spectrum.FrameSize,
		BufferSize:     c.Audio.FramesPerBuffer,
		Channels:       c.Audio.InputChannels,
		Window:         window,
		Weighting:      weighting,
		Distribution:   dist,
		Fraction:       c.Spectrum.OctaveFraction,
		Bands:          c.Spectrum.Bands,
		LowerFreq:      c.Spectrum.LowerFreq,
		UpperFreq:      c.Spectrum.UpperFreq,
		NoiseReduction: c.Spectrum.NoiseReduction,
	}
	if err := p.Validate(); err != nil {
		return analysis.Params{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}
