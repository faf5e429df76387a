// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"barviz/cmd"
	"barviz/internal/analysis"
	"barviz/internal/audio"
	"barviz/internal/config"
	applog "barviz/internal/log"
	"barviz/internal/transport"
	"barviz/internal/transport/udp"
	"barviz/internal/tui"
	"barviz/pkg/build"
)

var logger = applog.For("Main")

// broadcastDepth is the number of band frames the network transports may
// have in flight before new frames are dropped.
const broadcastDepth = 8

// main is the entry point. The program flow has three phases:
//
// 1. Startup (cold path): build info, command line and configuration,
// one-off commands, capture source, pipeline and sinks.
//
// 2. Concurrent (hot path): the analysis worker runs on its own locked
// thread while the renderer and publishers read snapshots.
//
// 3. Shutdown (cold path): stop the worker, finalize any recording, close
// sinks and the source.
func main() {
	if err := build.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// One thread for the analysis worker, one for UI and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if opts.Command == "" {
		return
	}
	applog.SetLevel(opts.Config.Level())

	switch opts.Command {
	case cmd.CommandBands:
		err = printBands(opts.Config)
	case cmd.CommandList:
		err = listDevices(opts.Interactive)
	case cmd.CommandRun:
		err = run(opts.Config, opts.Headless)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printBands(cfg *config.Config) error {
	p, err := cfg.Params()
	if err != nil {
		return err
	}
	return cmd.WriteBands(os.Stdout, p)
}

func listDevices(interactive bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if interactive {
		sel, err := tui.StartDeviceListUI()
		if err != nil {
			return err
		}
		if sel.Chosen {
			fmt.Printf("%s run --device %d --sample-rate %.0f\n", build.GetBuildInfo().Name, sel.DeviceID, sel.SampleRate)
		}
		return nil
	}

	devices, err := audio.HostDevices()
	if err != nil {
		return err
	}
	audio.WriteDevices(os.Stdout, devices)
	return nil
}

// session holds everything run opens, so it can be closed in reverse.
type session struct {
	closers []func() error
}

func (s *session) onClose(name string, f func() error) {
	s.closers = append(s.closers, func() error {
		if err := f(); err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
		return nil
	})
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Errorf("%v", err)
		}
	}
}

func run(cfg *config.Config, headless bool) error {
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	var sess session
	defer sess.close()

	source, err := openSource(cfg, &params, &sess)
	if err != nil {
		return err
	}

	pipeline, err := analysis.NewPipeline(params)
	if err != nil {
		return err
	}
	logger.Infof("%s: %s", cmd.Describe(cfg), pipeline.Strategy())

	engine, err := audio.NewEngine(source, pipeline, audio.Config{
		SampleRate:      params.SampleRate,
		Channels:        params.Channels,
		FramesPerBuffer: params.BufferSize,
		RecordBitDepth:  cfg.Recording.BitDepth,
	})
	if err != nil {
		return err
	}
	sess.onClose("engine", engine.Close)

	snap := analysis.NewSnapshot(pipeline.NumBands())
	engine.AddObserver(snap)

	if err := startTransports(cfg, engine, snap, &sess); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		path := cfg.RecordingPath(time.Now())
		if cfg.Recording.File == "" {
			if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
				return err
			}
		}
		if err := engine.StartRecording(path); err != nil {
			return err
		}
		defer fmt.Printf("Recording saved to: %s\n", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	if !headless {
		if err := runBars(cfg, engine, snap, pipeline.Strategy()); err != nil {
			engine.Stop()
			<-done
			return err
		}
		engine.Stop()
	}

	err = <-done
	logger.Infof("Processed %d chunks, %d overruns", engine.Frames(), engine.Overruns())
	if errors.Is(err, io.EOF) {
		logger.Infof("End of input")
		return nil
	}
	return err
}

// openSource opens the WAV file or the capture device. A file's own
// format replaces the configured sample rate and channel count.
func openSource(cfg *config.Config, params *analysis.Params, sess *session) (audio.Source, error) {
	if cfg.Audio.File != "" {
		wav, err := audio.OpenWAV(cfg.Audio.File, audio.WAVOptions{
			FramesPerBuffer: params.BufferSize,
			Loop:            cfg.Audio.Loop,
			Realtime:        true,
		})
		if err != nil {
			return nil, err
		}
		sess.onClose("wav", wav.Close)
		params.SampleRate = float64(wav.SampleRate())
		params.Channels = wav.Channels()
		return wav, nil
	}

	if err := audio.Initialize(); err != nil {
		return nil, err
	}
	sess.onClose("portaudio", audio.Terminate)

	stream, err := audio.OpenInputStream(audio.StreamConfig{
		DeviceID:        cfg.Audio.InputDevice,
		Channels:        params.Channels,
		SampleRate:      params.SampleRate,
		FramesPerBuffer: params.BufferSize,
		LowLatency:      cfg.Audio.LowLatency,
	})
	if err != nil {
		return nil, err
	}
	sess.onClose("input stream", stream.Close)
	if err := stream.Start(); err != nil {
		return nil, err
	}
	sess.onClose("input stream", stream.Stop)
	return stream, nil
}

func startTransports(cfg *config.Config, engine *audio.Engine, snap *analysis.Snapshot, sess *session) error {
	tc := cfg.Transport

	var sinks []transport.Transport
	if tc.WSEnabled {
		hub := transport.NewWebSocketHub(tc.WSAddress, tc.WSMinInterval)
		if err := hub.Start(); err != nil {
			return err
		}
		sinks = append(sinks, hub)
	}
	if tc.LogFrames {
		sinks = append(sinks, transport.NewLoggingTransport())
	}
	if len(sinks) > 0 {
		b := transport.NewBroadcaster(snap.NumBands(), broadcastDepth, sinks...)
		engine.AddObserver(b)
		sess.onClose("broadcaster", b.Close)
	}

	if tc.UDPEnabled {
		sender, err := udp.NewSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewPublisher(tc.UDPSendInterval, sender, snap)
		if err != nil {
			sender.Close()
			return err
		}
		pub.Start()
		sess.onClose("udp publisher", pub.Close)
	}
	return nil
}

// runBars draws the bars until the user quits. Log output would corrupt
// the full-screen display, so it goes to debug.log in debug mode and is
// discarded otherwise.
func runBars(cfg *config.Config, engine *audio.Engine, snap *analysis.Snapshot, s analysis.Strategy) error {
	var logOut io.Writer = io.Discard
	if cfg.Debug {
		f, err := os.OpenFile("debug.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	applog.SetOutput(logOut)
	defer applog.SetOutput(os.Stderr)

	model, err := tui.NewBarsModel(snap, engine, tui.BarsOptions{
		FPS:          cfg.Display.FPS,
		BarWidth:     cfg.Display.BarWidth,
		BarGap:       cfg.Display.BarGap,
		Color:        cfg.Display.Color,
		Monstercat:   cfg.Effect.Monstercat,
		Distribution: s.Distribution(),
		FloorDB:      cfg.Display.FloorDB,
		CeilDB:       cfg.Display.CeilDB,
		Title:        s.String(),
	})
	if err != nil {
		return err
	}
	return tui.RunBars(model)
}
