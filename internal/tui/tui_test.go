// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"math"
	"strings"
	"testing"

	"barviz/internal/analysis"
	"barviz/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
)

type toggle struct{ paused bool }

func (c *toggle) TogglePause() bool {
	c.paused = !c.paused
	return c.paused
}

func defaultOpts() BarsOptions {
	return BarsOptions{FPS: 60, BarWidth: 1, Distribution: analysis.Logspace, FloorDB: -90, CeilDB: 0, Color: "#25A065"}
}

func press(m tea.Model, keys string) (tea.Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch keys {
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	return m.Update(msg)
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestScale(t *testing.T) {
	tests := []struct {
		name string
		dist analysis.Distribution
		in   []float64
		want []float64
	}{
		{"logspace clamps", analysis.Logspace, []float64{-0.5, 0, 0.25, 1, 3}, []float64{0, 0, 0.25, 1, 1}},
		{"octave dB window", analysis.Octave, []float64{-120, -90, -45, 0, 6}, []float64{0, 0, 0.5, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]float64, len(tt.in))
			Scale(got, tt.in, tt.dist, -90, 0)
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("Scale()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBarsModelRefresh(t *testing.T) {
	snap := analysis.NewSnapshot(4)
	m, err := NewBarsModel(snap, nil, defaultOpts())
	if err != nil {
		t.Fatalf("NewBarsModel() error = %v", err)
	}

	snap.OnBands([]float64{0.1, 0.5, 2, -1})
	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Error("tick did not schedule the next tick")
	}
	got := next.(BarsModel).Heights()
	want := []float64{0.1, 0.5, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("height %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBarsModelMonstercat(t *testing.T) {
	snap := analysis.NewSnapshot(5)
	opts := defaultOpts()
	opts.Monstercat = 2
	m, err := NewBarsModel(snap, nil, opts)
	if err != nil {
		t.Fatalf("NewBarsModel() error = %v", err)
	}

	snap.OnBands([]float64{0, 0, 0.8, 0, 0})
	next, _ := m.Update(tickMsg{})
	got := next.(BarsModel).Heights()
	want := []float64{0.2, 0.4, 0.8, 0.4, 0.2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("height %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBarsModelPause(t *testing.T) {
	snap := analysis.NewSnapshot(3)
	ctrl := &toggle{}
	m, err := NewBarsModel(snap, ctrl, defaultOpts())
	if err != nil {
		t.Fatalf("NewBarsModel() error = %v", err)
	}
	snap.OnBands([]float64{1, 1, 1})

	next, _ := press(m, "space")
	bm := next.(BarsModel)
	if !ctrl.paused || !bm.Paused() {
		t.Fatal("space did not pause the engine")
	}
	for i, h := range bm.Heights() {
		if h != PausedLevel {
			t.Errorf("paused height %d = %v, want %v", i, h, PausedLevel)
		}
	}

	// Ticks while paused keep the minimum height.
	next, _ = bm.Update(tickMsg{})
	if h := next.(BarsModel).Heights()[0]; h != PausedLevel {
		t.Errorf("height after paused tick = %v", h)
	}

	next, _ = press(next, "space")
	bm = next.(BarsModel)
	if ctrl.paused || bm.Paused() {
		t.Fatal("second space did not resume")
	}
	if h := bm.Heights()[0]; h != 1 {
		t.Errorf("height after resume = %v, want 1", h)
	}
}

func TestBarsModelQuitKeys(t *testing.T) {
	m, _ := NewBarsModel(analysis.NewSnapshot(1), nil, defaultOpts())
	for _, k := range []string{"q", "esc"} {
		if _, cmd := press(m, k); !isQuit(cmd) {
			t.Errorf("%q did not quit", k)
		}
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); !isQuit(cmd) {
		t.Error("ctrl+c did not quit")
	}
}

func TestBarsModelView(t *testing.T) {
	snap := analysis.NewSnapshot(3)
	m, _ := NewBarsModel(snap, nil, defaultOpts())
	if v := m.View(); v != "Initializing..." {
		t.Errorf("View() before size = %q", v)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 6})
	snap.OnBands([]float64{1, 0, 0.5})
	next, _ = next.Update(tickMsg{})
	view := next.View()

	if !strings.Contains(view, "3 bands") || !strings.Contains(view, "running") {
		t.Errorf("status line missing from view:\n%s", view)
	}
	if !strings.Contains(view, "█") {
		t.Errorf("full bar not drawn:\n%s", view)
	}
}

func TestRenderBarsFitsWidth(t *testing.T) {
	snap := analysis.NewSnapshot(10)
	opts := defaultOpts()
	opts.BarWidth, opts.BarGap = 2, 1
	m, _ := NewBarsModel(snap, nil, opts)
	m.width, m.height = 8, 5
	for i := range m.heights {
		m.heights[i] = 1
	}

	// Width 8 holds bars at 0-1, 3-4 and 6-7.
	lines := strings.Split(m.renderBars(2), "\n")
	for _, l := range lines {
		if n := strings.Count(l, "█"); n != 6 {
			t.Errorf("line %q has %d full cells, want 6", l, n)
		}
	}
}

func TestNewBarsModelErrors(t *testing.T) {
	snap := analysis.NewSnapshot(1)
	if _, err := NewBarsModel(nil, nil, defaultOpts()); err == nil {
		t.Error("nil source: expected error")
	}
	bad := defaultOpts()
	bad.FPS = 0
	if _, err := NewBarsModel(snap, nil, bad); err == nil {
		t.Error("zero fps: expected error")
	}
	bad = defaultOpts()
	bad.FloorDB = 10
	if _, err := NewBarsModel(snap, nil, bad); err == nil {
		t.Error("inverted dB window: expected error")
	}
}

var testDevices = []audio.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
	{ID: 2, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 22050, IsDefaultInput: true},
}

func loadedPicker(t *testing.T) tea.Model {
	t.Helper()
	m := newDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })
	msg := m.Init()()
	dm, ok := msg.(devicesMsg)
	if !ok {
		t.Fatalf("Init() produced %T", msg)
	}
	if len(dm.devices) != 2 {
		t.Fatalf("picker lists %d devices, want 2 inputs", len(dm.devices))
	}

	var next tea.Model = m
	next, _ = next.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	next, _ = next.Update(dm)
	return next
}

func TestDeviceListSelect(t *testing.T) {
	m := loadedPicker(t)
	if !strings.Contains(m.View(), "USB Interface") {
		t.Fatalf("device list view:\n%s", m.View())
	}

	// The default input is preselected; move to the mic.
	m, _ = press(m, "up")
	m, _ = press(m, "enter")
	if m.(DeviceListModel).activeScreen != ConfigScreen {
		t.Fatal("enter did not open the configuration screen")
	}
	m, _ = press(m, "down")
	m, cmd := press(m, "enter")
	if !isQuit(cmd) {
		t.Fatal("enter on the configuration screen did not quit")
	}

	sel := m.(DeviceListModel).Selection()
	want := Selection{DeviceID: 1, SampleRate: 48000, Chosen: true}
	if sel != want {
		t.Errorf("Selection() = %+v, want %+v", sel, want)
	}
}

func TestDeviceListUnusualRate(t *testing.T) {
	m := loadedPicker(t)
	m, _ = press(m, "enter")
	m, _ = press(m, "enter")

	sel := m.(DeviceListModel).Selection()
	if sel.DeviceID != 2 || sel.SampleRate != 22050 {
		t.Errorf("Selection() = %+v, want device 2 at its default 22050 Hz", sel)
	}
}

func TestDeviceListBackAndQuit(t *testing.T) {
	m := loadedPicker(t)
	m, _ = press(m, "enter")
	m, _ = press(m, "esc")
	if m.(DeviceListModel).activeScreen != ListScreen {
		t.Error("esc did not return to the list")
	}
	m, cmd := press(m, "q")
	if !isQuit(cmd) {
		t.Error("q did not quit")
	}
	if m.(DeviceListModel).Selection().Chosen {
		t.Error("quitting reported a selection")
	}
}

func TestDeviceListError(t *testing.T) {
	m := newDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") })
	next, _ := m.Update(m.Init()())
	if v := next.View(); !strings.Contains(v, "no host") {
		t.Errorf("View() = %q, want the error", v)
	}
}
