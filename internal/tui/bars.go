// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"barviz/internal/analysis"
	"barviz/internal/effect"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PausedLevel is the height every bar drops to while the engine is paused.
const PausedLevel = 0.01

// Partial block glyphs, from one eighth to a full cell.
var blocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Controller is the part of the engine the renderer drives.
type Controller interface {
	TogglePause() bool
}

// BarsOptions configures the bar renderer.
type BarsOptions struct {
	FPS          int
	BarWidth     int
	BarGap       int
	Color        string
	Monstercat   float64 // Spread base; 0 disables.
	Distribution analysis.Distribution
	FloorDB      float64 // Octave levels at or below render empty.
	CeilDB       float64 // Octave levels at or above render full.
	Title        string
}

type barsKeyMap struct {
	Pause key.Binding
	Quit  key.Binding
}

var barsKeys = barsKeyMap{
	Pause: key.NewBinding(key.WithKeys(" ", "space", "p"), key.WithHelp("space", "pause/resume")),
	Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// BarsModel is the Bubble Tea model that draws the latest band vector as
// vertical bars. It polls its source at the configured frame rate.
type BarsModel struct {
	source analysis.BandsProvider
	ctrl   Controller
	opts   BarsOptions
	spread *effect.Monstercat

	raw     []float64 // Latest vector as delivered.
	heights []float64 // Scaled to [0, 1] after the effect.
	seq     uint64
	paused  bool

	width, height int
	barStyle      lipgloss.Style
	err           error
}

// NewBarsModel creates a renderer reading from source. ctrl may be nil,
// in which case the pause key is ignored.
func NewBarsModel(source analysis.BandsProvider, ctrl Controller, opts BarsOptions) (BarsModel, error) {
	if source == nil {
		return BarsModel{}, errors.New("bars: band source cannot be nil")
	}
	if opts.FPS <= 0 {
		return BarsModel{}, fmt.Errorf("bars: fps must be positive, got %d", opts.FPS)
	}
	if opts.BarWidth < 1 {
		opts.BarWidth = 1
	}
	if opts.FloorDB >= opts.CeilDB {
		return BarsModel{}, fmt.Errorf("bars: floor %g dB must be below ceiling %g dB", opts.FloorDB, opts.CeilDB)
	}

	m := BarsModel{
		source:   source,
		ctrl:     ctrl,
		opts:     opts,
		raw:      make([]float64, source.NumBands()),
		heights:  make([]float64, source.NumBands()),
		barStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(opts.Color)),
	}
	if opts.Monstercat > 0 {
		spread, err := effect.NewMonstercat(opts.Monstercat)
		if err != nil {
			return BarsModel{}, err
		}
		m.spread = spread
	}
	return m, nil
}

func (m BarsModel) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FPS), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts polling.
func (m BarsModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes and keys.
func (m BarsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, barsKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, barsKeys.Pause):
			if m.ctrl != nil {
				m.paused = m.ctrl.TogglePause()
				m.refresh()
			}
		}
	}
	return m, nil
}

// refresh pulls the latest vector and recomputes the bar heights.
func (m *BarsModel) refresh() {
	if m.paused {
		for i := range m.heights {
			m.heights[i] = PausedLevel
		}
		return
	}

	seq, err := m.source.CopyInto(m.raw)
	if err != nil {
		m.err = err
		return
	}
	m.seq = seq
	Scale(m.heights, m.raw, m.opts.Distribution, m.opts.FloorDB, m.opts.CeilDB)
	if m.spread != nil {
		m.spread.Apply(m.heights)
	}
}

// Heights returns the current bar heights in [0, 1].
func (m BarsModel) Heights() []float64 {
	return m.heights
}

// Paused reports whether the renderer shows the paused state.
func (m BarsModel) Paused() bool {
	return m.paused
}

// Scale maps band values to bar heights in [0, 1]. Logspace values are
// already normalized and are clamped; octave levels in dB are mapped
// linearly from [floorDB, ceilDB].
func Scale(dst, src []float64, dist analysis.Distribution, floorDB, ceilDB float64) {
	for i, v := range src {
		if dist == analysis.Octave {
			v = (v - floorDB) / (ceilDB - floorDB)
		}
		dst[i] = min(max(v, 0), 1)
	}
}

// View renders the bars bottom-aligned with a status line.
func (m BarsModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	status := m.status()
	rows := m.height - lipgloss.Height(status) - 1
	if rows < 1 {
		return status
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderBars(rows), "", status)
}

func (m BarsModel) status() string {
	state := "running"
	if m.paused {
		state = "paused"
	}
	title := m.opts.Title
	if title == "" {
		title = "barviz"
	}
	help := fmt.Sprintf("%s: %s • %s: %s",
		barsKeys.Pause.Help().Key, barsKeys.Pause.Help().Desc,
		barsKeys.Quit.Help().Key, barsKeys.Quit.Help().Desc)
	return titleStyle.Render(title) + " " + infoStyle.Render(fmt.Sprintf("%d bands • frame %d • %s • %s", len(m.heights), m.seq, state, help))
}

// renderBars draws as many bars as fit the width over rows lines.
func (m BarsModel) renderBars(rows int) string {
	stride := m.opts.BarWidth + m.opts.BarGap
	n := len(m.heights)
	if stride > 0 && (m.width+m.opts.BarGap)/stride < n {
		n = (m.width + m.opts.BarGap) / stride
	}

	full := strings.Repeat(string(blocks[len(blocks)-1]), m.opts.BarWidth)
	gap := strings.Repeat(" ", m.opts.BarGap)
	blank := strings.Repeat(" ", m.opts.BarWidth)

	// Height of every bar in eighths of a cell.
	eighths := make([]int, n)
	for i := range n {
		eighths[i] = int(m.heights[i]*float64(rows*8) + 0.5)
	}

	lines := make([]string, rows)
	var sb strings.Builder
	for r := range rows {
		sb.Reset()
		floor := (rows - 1 - r) * 8 // Eighths below this row.
		for i, e := range eighths {
			if i > 0 {
				sb.WriteString(gap)
			}
			switch fill := e - floor; {
			case fill >= 8:
				sb.WriteString(full)
			case fill <= 0:
				sb.WriteString(blank)
			default:
				sb.WriteString(strings.Repeat(string(blocks[fill-1]), m.opts.BarWidth))
			}
		}
		lines[r] = m.barStyle.Render(sb.String())
	}
	return strings.Join(lines, "\n")
}

// RunBars runs the renderer full-screen until the user quits.
func RunBars(m BarsModel) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
