// SPDX-License-Identifier: MIT

// Package tui holds the Bubble Tea terminal interfaces: the bar renderer
// and the interactive device picker.
package tui

import (
	"fmt"
	"strings"

	"barviz/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Sample rates offered on the configuration screen.
var commonSampleRates = []float64{44100, 48000, 88200, 96000}

type deviceKeyMap struct {
	Up, Down, Enter, Back, Quit key.Binding
}

var deviceKeys = deviceKeyMap{
	Up:    key.NewBinding(key.WithKeys("up", "k")),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Enter: key.NewBinding(key.WithKeys("enter")),
	Back:  key.NewBinding(key.WithKeys("esc")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	SampleRate float64
	Chosen     bool // False when the user quit without choosing.
}

// DeviceListModel is the Bubble Tea model for choosing an input device and
// sample rate.
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	sampleRates     []float64
	sampleRateIndex int
	selection       Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a picker over the host's input devices.
func NewDeviceListModel() DeviceListModel {
	return newDeviceListModel(audio.HostDevices)
}

func newDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
	}
}

// Init loads the device list.
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		inputs := devices[:0:0]
		for _, d := range devices {
			if d.MaxInputChannels > 0 {
				inputs = append(inputs, d)
			}
		}
		return devicesMsg{inputs}
	}
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.render()

	case devicesMsg:
		m.devices = msg.devices
		for i, d := range m.devices {
			if d.IsDefaultInput {
				m.selectedIndex = i
			}
		}
		m.render()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, deviceKeys.Quit) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, deviceKeys.Up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, deviceKeys.Down):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, deviceKeys.Enter):
				if len(m.devices) > 0 {
					m.openConfig()
				}
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, deviceKeys.Back):
				m.activeScreen = ListScreen
			case key.Matches(msg, deviceKeys.Up):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, deviceKeys.Down):
				if m.sampleRateIndex < len(m.sampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, deviceKeys.Enter):
				m.selection = Selection{
					DeviceID:   m.devices[m.selectedIndex].ID,
					SampleRate: m.sampleRates[m.sampleRateIndex],
					Chosen:     true,
				}
				return m, tea.Quit
			}
		}
		m.render()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// openConfig switches to the sample rate screen with the device's default
// rate preselected.
func (m *DeviceListModel) openConfig() {
	m.activeScreen = ConfigScreen
	def := m.devices[m.selectedIndex].DefaultSampleRate

	m.sampleRates = commonSampleRates
	m.sampleRateIndex = -1
	for i, rate := range m.sampleRates {
		if rate == def {
			m.sampleRateIndex = i
			break
		}
	}
	if m.sampleRateIndex < 0 {
		m.sampleRates = append([]float64{def}, commonSampleRates...)
		m.sampleRateIndex = 0
	}
}

func (m *DeviceListModel) render() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// Selection returns what the user picked.
func (m DeviceListModel) Selection() Selection {
	return m.selection
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Use • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := ""
		if device.IsDefaultInput {
			marker = " [default]"
		}
		info := fmt.Sprintf("[%d] %s (%s, %s)%s\n", device.ID, device.Name, device.Type(), device.HostAPI, marker)
		info += fmt.Sprintf("    Input channels: %d, default sample rate: %.0f Hz\n",
			device.MaxInputChannels, device.DefaultSampleRate)
		info += fmt.Sprintf("    Input latency: %v (low) / %v (high)\n",
			device.LowInputLatency, device.HighInputLatency)

		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Sample Rate:\n")
	for i, rate := range m.sampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// StartDeviceListUI runs the picker full-screen and returns the choice.
func StartDeviceListUI() (Selection, error) {
	final, err := tea.NewProgram(NewDeviceListModel(), tea.WithAltScreen()).Run()
	if err != nil {
		return Selection{}, err
	}
	return final.(DeviceListModel).Selection(), nil
}
