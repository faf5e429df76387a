// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := GetLevel()
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
		ok    bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	l := For("Engine")
	l.Debugf("hidden %d", 1)
	l.Infof("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered messages: %q", out)
	}
	if !strings.Contains(out, "[WARN]  Engine: shown 3") {
		t.Errorf("missing warning line in %q", out)
	}
	if !strings.Contains(out, "[ERROR] Engine: shown 4") {
		t.Errorf("missing error line in %q", out)
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelDebug)

	Debugf("a=%d", 1)
	Infof("b=%d", 2)

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] a=1") || !strings.Contains(out, "[INFO]  b=2") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestFatalfExits(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelError)

	code := -1
	origExit := exit
	exit = func(c int) { code = c }
	defer func() { exit = origExit }()

	For("Main").Fatalf("boom")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "[FATAL] Main: boom") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestEnabled(t *testing.T) {
	captureOutput(t)
	SetLevel(LevelInfo)
	if Enabled(LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
	if !Enabled(LevelError) {
		t.Error("error should be enabled at info level")
	}
}
