// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// writeRamp records frames stereo frames whose left channel counts up in
// steps of 1/1024 and whose right channel is its negation.
func writeRamp(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ramp.wav")
	rec, err := NewRecorder(path, 8000, 2, 16, frames*2)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	chunk := make([]float32, frames*2)
	for i := range frames {
		v := float32(i+1) / 1024
		chunk[2*i], chunk[2*i+1] = v, -v
	}
	if err := rec.Write(chunk); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return path
}

func TestWAVSourceChunks(t *testing.T) {
	path := writeRamp(t, 10)
	src, err := OpenWAV(path, WAVOptions{FramesPerBuffer: 4})
	if err != nil {
		t.Fatalf("OpenWAV() error = %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 8000 || src.Channels() != 2 || src.BitDepth() != 16 {
		t.Fatalf("format = %d Hz, %d ch, %d-bit", src.SampleRate(), src.Channels(), src.BitDepth())
	}
	if src.ChunkSamples() != 8 {
		t.Fatalf("ChunkSamples() = %d, want 8", src.ChunkSamples())
	}

	// 10 frames in chunks of 4: two full chunks and one padded with zeros.
	var got []float32
	dst := make([]float32, 8)
	for range 3 {
		if err := src.Read(dst); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, dst...)
	}
	if err := src.Read(dst); !errors.Is(err, io.EOF) {
		t.Fatalf("Read() after end error = %v, want io.EOF", err)
	}

	const tolerance = 1.0 / 32768
	for i := range 10 {
		want := float32(i+1) / 1024
		if d := got[2*i] - want; d > tolerance || d < -tolerance {
			t.Errorf("frame %d left = %v, want %v", i, got[2*i], want)
		}
		if d := got[2*i+1] + want; d > tolerance || d < -tolerance {
			t.Errorf("frame %d right = %v, want %v", i, got[2*i+1], -want)
		}
	}
	for i := 20; i < len(got); i++ {
		if got[i] != 0 {
			t.Errorf("padding sample %d = %v, want 0", i, got[i])
		}
	}
}

func TestWAVSourceExactMultipleEndsWithEOF(t *testing.T) {
	path := writeRamp(t, 8)
	src, err := OpenWAV(path, WAVOptions{FramesPerBuffer: 4})
	if err != nil {
		t.Fatalf("OpenWAV() error = %v", err)
	}
	defer src.Close()

	dst := make([]float32, 8)
	for i := range 2 {
		if err := src.Read(dst); err != nil {
			t.Fatalf("Read() %d error = %v", i, err)
		}
	}
	if err := src.Read(dst); !errors.Is(err, io.EOF) {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
}

func TestWAVSourceLoop(t *testing.T) {
	path := writeRamp(t, 6)
	src, err := OpenWAV(path, WAVOptions{FramesPerBuffer: 4, Loop: true})
	if err != nil {
		t.Fatalf("OpenWAV() error = %v", err)
	}
	defer src.Close()

	// Frames 1..6 then 1..6 again without padding.
	dst := make([]float32, 8)
	var left []float32
	for range 3 {
		if err := src.Read(dst); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		for i := 0; i < len(dst); i += 2 {
			left = append(left, dst[i]*1024)
		}
	}

	want := []float32{1, 2, 3, 4, 5, 6, 1, 2, 3, 4, 5, 6}
	for i, w := range want {
		if d := left[i] - w; d > 0.05 || d < -0.05 {
			t.Errorf("looped frame %d = %v, want %v", i, left[i], w)
		}
	}
}

func TestWAVSourceErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := OpenWAV(filepath.Join(dir, "missing.wav"), WAVOptions{FramesPerBuffer: 4}); err == nil {
		t.Error("missing file: expected error")
	}

	bogus := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(bogus, []byte("definitely not a RIFF file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWAV(bogus, WAVOptions{FramesPerBuffer: 4}); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("bogus file error = %v, want ErrInvalidWAV", err)
	}

	path := writeRamp(t, 4)
	if _, err := OpenWAV(path, WAVOptions{}); err == nil {
		t.Error("zero frames per buffer: expected error")
	}

	src, err := OpenWAV(path, WAVOptions{FramesPerBuffer: 4})
	if err != nil {
		t.Fatalf("OpenWAV() error = %v", err)
	}
	defer src.Close()
	if err := src.Read(make([]float32, 3)); err == nil {
		t.Error("short read buffer: expected error")
	}
}
