// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Defaults for every setting. They describe a 1/3-octave, A-weighted
// analyzer on the default input device at 44.1 kHz.
const (
	DefaultLogLevel        = "info"
	DefaultInputDevice     = -1 // PortAudio default input device.
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
	DefaultInputChannels   = 2

	DefaultFrameSize      = 8192
	DefaultWindow         = "hann"
	DefaultWeighting      = "A"
	DefaultDistribution   = "octave"
	DefaultOctaveFraction = 3
	DefaultBands          = 50
	DefaultLowerFreq      = 20.0
	DefaultUpperFreq      = 20000.0
	DefaultNoiseReduction = 0.77

	DefaultMonstercat = 0.0 // Disabled.

	DefaultRecordingDir      = "./recordings"
	DefaultRecordingBitDepth = 16

	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30 Hz.
	DefaultWSAddress        = "127.0.0.1:8080"
	DefaultWSMinInterval    = 16 * time.Millisecond // ~60 Hz.

	DefaultFPS      = 60
	DefaultBarWidth = 2
	DefaultBarGap   = 1
	DefaultColor    = "#25A065"
	DefaultFloorDB  = -90.0
	DefaultCeilDB   = 0.0
)

// Bounds checked by Validate.
const (
	MinFPS = 1
	MaxFPS = 150
)

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Force debug logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error.
	Audio     AudioConfig     `yaml:"audio"`
	Spectrum  SpectrumConfig  `yaml:"spectrum"`
	Effect    EffectConfig    `yaml:"effect"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Display   DisplayConfig   `yaml:"display"`
}

// AudioConfig selects the capture source and its format.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per chunk (the analysis buffer size).
	InputChannels   int     `yaml:"input_channels"`
	LowLatency      bool    `yaml:"low_latency"`
	File            string  `yaml:"file,omitempty"` // Read a WAV file instead of a device.
	Loop            bool    `yaml:"loop"`           // Restart the file at its end.
}

// SpectrumConfig holds the analysis parameters.
type SpectrumConfig struct {
	FrameSize      int     `yaml:"frame_size"`      // FFT length, a power of two.
	Window         string  `yaml:"window"`          // hann, hamming, rectangular.
	Weighting      string  `yaml:"weighting"`       // A, C or Z.
	Distribution   string  `yaml:"distribution"`    // octave or logspace.
	OctaveFraction int     `yaml:"octave_fraction"` // 1/N octave bands.
	Bands          int     `yaml:"bands"`           // Logspace band count.
	LowerFreq      float64 `yaml:"lower_freq"`
	UpperFreq      float64 `yaml:"upper_freq"`
	NoiseReduction float64 `yaml:"noise_reduction"` // Logspace smoothing coefficient.
}

// EffectConfig holds post-processing applied by renderers.
type EffectConfig struct {
	Monstercat float64 `yaml:"monstercat"` // Spread base; 0 disables.
}

// RecordingConfig holds settings for teeing captured audio to WAV.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	File      string `yaml:"file,omitempty"` // Explicit file name; generated when empty.
	BitDepth  int    `yaml:"bit_depth"`      // 16, 24 or 32.
}

// TransportConfig holds settings for publishing band frames over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddress        string        `yaml:"ws_address"`
	WSMinInterval    time.Duration `yaml:"ws_min_interval"` // Broadcast at most this often; 0 sends every frame.
	LogFrames        bool          `yaml:"log_frames"` // Log every band frame at debug level.
}

// DisplayConfig controls the terminal renderer.
type DisplayConfig struct {
	FPS      int     `yaml:"fps"`
	BarWidth int     `yaml:"bar_width"`
	BarGap   int     `yaml:"bar_gap"`
	Color    string  `yaml:"color"`
	FloorDB  float64 `yaml:"floor_db"` // Octave levels at or below render empty.
	CeilDB   float64 `yaml:"ceil_db"`  // Octave levels at or above render full.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultInputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
		},
		Spectrum: SpectrumConfig{
			FrameSize:      DefaultFrameSize,
			Window:         DefaultWindow,
			Weighting:      DefaultWeighting,
			Distribution:   DefaultDistribution,
			OctaveFraction: DefaultOctaveFraction,
			Bands:          DefaultBands,
			LowerFreq:      DefaultLowerFreq,
			UpperFreq:      DefaultUpperFreq,
			NoiseReduction: DefaultNoiseReduction,
		},
		Effect: EffectConfig{
			Monstercat: DefaultMonstercat,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultRecordingBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WSAddress:        DefaultWSAddress,
			WSMinInterval:    DefaultWSMinInterval,
		},
		Display: DisplayConfig{
			FPS:      DefaultFPS,
			BarWidth: DefaultBarWidth,
			BarGap:   DefaultBarGap,
			Color:    DefaultColor,
			FloorDB:  DefaultFloorDB,
			CeilDB:   DefaultCeilDB,
		},
	}
}

// fillSelectors replaces blank spectrum selectors, as left by an empty
// YAML value, with the defaults.
func (c *Config) fillSelectors() {
	for _, f := range []struct {
		val *string
		def string
	}{
		{&c.Spectrum.Window, DefaultWindow},
		{&c.Spectrum.Weighting, DefaultWeighting},
		{&c.Spectrum.Distribution, DefaultDistribution},
	} {
		if strings.TrimSpace(*f.val) == "" {
			*f.val = f.def
		}
	}
}

// RecordingPath returns the configured recording file, or a timestamped
// name in the output directory.
func (c *Config) RecordingPath(now time.Time) string {
	if c.Recording.File != "" {
		return c.Recording.File
	}
	name := fmt.Sprintf("recording-%s.wav", now.UTC().Format("20060102-150405"))
	return filepath.Join(c.Recording.OutputDir, name)
}
