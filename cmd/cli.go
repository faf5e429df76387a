// SPDX-License-Identifier: MIT

// Package cmd parses the command line into a command and a configuration.
package cmd

import (
	"fmt"
	"io"

	"barviz/internal/config"
	"barviz/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands selected on the command line.
const (
	CommandRun   = "run"
	CommandList  = "list"
	CommandBands = "bands"
)

// Options is the parsed command line.
type Options struct {
	Command     string
	ConfigPath  string
	Interactive bool // list: choose a device in the terminal UI.
	Headless    bool // run: log only, no bar display.
	Config      *config.Config
}

// flagValues receives flag values before they are merged into the
// configuration. Only flags the user set override the file.
type flagValues struct {
	configPath string
	verbose    bool

	device     int
	channels   int
	sampleRate float64
	frames     int
	lowLatency bool
	file       string
	loop       bool

	frameSize    int
	window       string
	weighting    string
	distribution string
	fraction     int
	bands        int
	lowerFreq    float64
	upperFreq    float64

	monstercat float64
	fps        int

	record bool
	output string

	udp       bool
	udpTarget string
	ws        bool
	wsAddress string
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildInfo()
	opts := &Options{}
	var fv flagValues

	setCommand := func(name string) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			opts.Command = name
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: setCommand(CommandRun),
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze the input and draw the bands (default)",
		Args:  cobra.NoArgs,
		RunE:  setCommand(CommandRun),
	}
	runCmd.Flags().BoolVar(&opts.Headless, "headless", false, "Do not draw bars; publish and log only")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE:  setCommand(CommandList),
	}
	listCmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Choose a device and sample rate interactively")

	bandsCmd := &cobra.Command{
		Use:   "bands",
		Short: "Print the band layout for the current settings",
		Args:  cobra.NoArgs,
		RunE:  setCommand(CommandBands),
	}

	rootCmd.AddCommand(runCmd, listCmd, bandsCmd)
	registerFlags(rootCmd.PersistentFlags(), &fv)

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if opts.Command == "" {
		// --help or --version was handled by cobra.
		return opts, nil
	}

	cfg, err := config.LoadConfig(fv.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(rootCmd.PersistentFlags(), &fv, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts.ConfigPath = fv.configPath
	opts.Config = cfg
	return opts, nil
}

func registerFlags(f *pflag.FlagSet, fv *flagValues) {
	f.StringVarP(&fv.configPath, "config", "C", "", "Path to the YAML configuration (default ./config.yaml if present)")
	f.BoolVarP(&fv.verbose, "verbose", "v", false, "Show verbose output")

	// Audio input
	f.IntVarP(&fv.device, "device", "d", config.DefaultInputDevice,
		"Input device ID. Use the 'list' command to see available devices.")
	f.IntVarP(&fv.channels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	f.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&fv.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per chunk (affects latency)")
	f.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use the device's low input latency")
	f.StringVarP(&fv.file, "file", "f", "", "Analyze a WAV file instead of a device")
	f.BoolVar(&fv.loop, "loop", false, "Restart the WAV file at its end")

	// Analysis
	f.IntVar(&fv.frameSize, "frame-size", config.DefaultFrameSize, "FFT frame size (power of 2)")
	f.StringVar(&fv.window, "window", config.DefaultWindow, "Window function: hann, hamming, rectangular")
	f.StringVarP(&fv.weighting, "weighting", "w", config.DefaultWeighting, "Frequency weighting: A, C or Z")
	f.StringVar(&fv.distribution, "distribution", config.DefaultDistribution, "Band distribution: octave or logspace")
	f.IntVar(&fv.fraction, "fraction", config.DefaultOctaveFraction, "Octave fraction N for 1/N-octave bands")
	f.IntVarP(&fv.bands, "bands", "n", config.DefaultBands, "Number of logspace bands")
	f.Float64Var(&fv.lowerFreq, "lower-freq", config.DefaultLowerFreq, "Lowest analyzed frequency (Hz)")
	f.Float64Var(&fv.upperFreq, "upper-freq", config.DefaultUpperFreq, "Highest analyzed frequency (Hz)")

	// Display
	f.Float64Var(&fv.monstercat, "monstercat", config.DefaultMonstercat, "Monstercat spread base (0 disables)")
	f.IntVar(&fv.fps, "fps", config.DefaultFPS, "Display frames per second")

	// Recording
	f.BoolVarP(&fv.record, "record", "r", false, "Record the captured audio to WAV")
	f.StringVarP(&fv.output, "output", "o", "",
		"Recording file name. Default is recording-YYYYMMDD-HHMMSS.wav in the output directory")

	// Transport
	f.BoolVar(&fv.udp, "udp", false, "Publish bands over UDP")
	f.StringVar(&fv.udpTarget, "udp-target", config.DefaultUDPTargetAddress, "UDP target host:port")
	f.BoolVar(&fv.ws, "ws", false, "Serve bands over WebSocket")
	f.StringVar(&fv.wsAddress, "ws-address", config.DefaultWSAddress, "WebSocket listen address")
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(f *pflag.FlagSet, fv *flagValues, cfg *config.Config) {
	overrides := map[string]func(){
		"verbose":           func() { cfg.Debug = fv.verbose },
		"device":            func() { cfg.Audio.InputDevice = fv.device },
		"channels":          func() { cfg.Audio.InputChannels = fv.channels },
		"sample-rate":       func() { cfg.Audio.SampleRate = fv.sampleRate },
		"frames-per-buffer": func() { cfg.Audio.FramesPerBuffer = fv.frames },
		"low-latency":       func() { cfg.Audio.LowLatency = fv.lowLatency },
		"file":              func() { cfg.Audio.File = fv.file },
		"loop":              func() { cfg.Audio.Loop = fv.loop },
		"frame-size":        func() { cfg.Spectrum.FrameSize = fv.frameSize },
		"window":            func() { cfg.Spectrum.Window = fv.window },
		"weighting":         func() { cfg.Spectrum.Weighting = fv.weighting },
		"distribution":      func() { cfg.Spectrum.Distribution = fv.distribution },
		"fraction":          func() { cfg.Spectrum.OctaveFraction = fv.fraction },
		"bands":             func() { cfg.Spectrum.Bands = fv.bands },
		"lower-freq":        func() { cfg.Spectrum.LowerFreq = fv.lowerFreq },
		"upper-freq":        func() { cfg.Spectrum.UpperFreq = fv.upperFreq },
		"monstercat":        func() { cfg.Effect.Monstercat = fv.monstercat },
		"fps":               func() { cfg.Display.FPS = fv.fps },
		"record":            func() { cfg.Recording.Enabled = fv.record },
		"output":            func() { cfg.Recording.File = fv.output },
		"udp":               func() { cfg.Transport.UDPEnabled = fv.udp },
		"udp-target":        func() { cfg.Transport.UDPTargetAddress = fv.udpTarget },
		"ws":                func() { cfg.Transport.WSEnabled = fv.ws },
		"ws-address":        func() { cfg.Transport.WSAddress = fv.wsAddress },
	}

	// Persistent flags are parsed by the subcommand's flag set, so Visit on
	// this set would see nothing; Changed is shared.
	f.VisitAll(func(fl *pflag.Flag) {
		if apply, ok := overrides[fl.Name]; ok && fl.Changed {
			apply()
		}
	})
}

// Describe summarizes the effective settings in one line.
func Describe(cfg *config.Config) string {
	src := fmt.Sprintf("device %d", cfg.Audio.InputDevice)
	if cfg.Audio.File != "" {
		src = cfg.Audio.File
	}
	return fmt.Sprintf("%s, %.0f Hz, %d ch, %d/%d frames, %s %s-weighted",
		src, cfg.Audio.SampleRate, cfg.Audio.InputChannels, cfg.Audio.FramesPerBuffer,
		cfg.Spectrum.FrameSize, cfg.Spectrum.Distribution, cfg.Spectrum.Weighting)
}
