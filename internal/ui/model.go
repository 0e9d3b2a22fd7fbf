// ABOUTME: Bubbletea model for the cable dashboard
// ABOUTME: Shows per-cable timing, mute state and attached clients
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/vac-go/internal/host"
	"github.com/Resonate-Protocol/vac-go/internal/version"
	"github.com/Resonate-Protocol/vac-go/pkg/cable"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 250 * time.Millisecond

// Device is what the dashboard watches and controls
type Device interface {
	Status() []host.Status
	CycleRate(name string) error
}

// TapStatus describes the network tap, if one runs
type TapStatus struct {
	Cable   string
	Addr    string
	Codec   string
	Clients int
	Frames  uint64
	Dropped uint64
}

// Model represents the TUI state
type Model struct {
	device Device
	tap    func() *TapStatus

	cables     []host.Status
	tapStatus  *TapStatus
	selected   int
	lastAction string
	startTime  time.Time
	quitting   bool

	width  int
	height int
}

type tickMsg time.Time

type statusMsg struct {
	cables []host.Status
	tap    *TapStatus
}

type rateMsg struct {
	cable string
	err   error
}

// NewModel creates a dashboard for device. tap may be nil.
func NewModel(device Device, tap func() *TapStatus) Model {
	return Model{
		device:    device,
		tap:       tap,
		startTime: time.Now(),
	}
}

// Init starts the refresh loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tickEvery())
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		msg := statusMsg{cables: m.device.Status()}
		if m.tap != nil {
			msg.tap = m.tap()
		}
		return msg
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.refresh(), tickEvery())

	case statusMsg:
		m.cables = msg.cables
		m.tapStatus = msg.tap
		if m.selected >= len(m.cables) {
			m.selected = 0
		}

	case rateMsg:
		if msg.err != nil {
			m.lastAction = fmt.Sprintf("%s: %v", msg.cable, msg.err)
		} else {
			m.lastAction = fmt.Sprintf("%s: rate changed", msg.cable)
		}
		return m, m.refresh()
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab", "down", "j":
		if n := len(m.cables); n > 0 {
			m.selected = (m.selected + 1) % n
		}
	case "shift+tab", "up", "k":
		if n := len(m.cables); n > 0 {
			m.selected = (m.selected + n - 1) % n
		}
	case "r":
		if m.selected < len(m.cables) {
			name := m.cables[m.selected].Name
			device := m.device
			return m, func() tea.Msg {
				return rateMsg{cable: name, err: device.CycleRate(name)}
			}
		}
	}
	return m, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down device...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", version.Product, version.Version)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")
	if m.tapStatus != nil {
		b.WriteString(headerStyle.Render("Tap: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s on %s (%s), %d listeners, %d frames, %d dropped",
			m.tapStatus.Cable, m.tapStatus.Addr, m.tapStatus.Codec,
			m.tapStatus.Clients, m.tapStatus.Frames, m.tapStatus.Dropped)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.cables) == 0 {
		b.WriteString(valueStyle.Render("  No cables"))
		b.WriteString("\n")
	}
	for i, c := range m.cables {
		b.WriteString(m.renderCable(c, i == m.selected))
		b.WriteString("\n")
	}

	if m.lastAction != "" {
		b.WriteString(faintStyle.Render(m.lastAction))
		b.WriteString("\n")
	}
	b.WriteString(faintStyle.Render("tab: select cable  r: next sample rate  q: quit"))

	return b.String()
}

func (m Model) renderCable(c host.Status, selected bool) string {
	var b strings.Builder

	marker := "  "
	name := headerStyle.Render(c.Name)
	if selected {
		marker = selectedStyle.Render("> ")
		name = selectedStyle.Render(c.Name)
	}

	state := mutedStyle.Render(c.Mute.String())
	if c.Mute == cable.Active {
		state = activeStyle.Render(c.Mute.String())
	}
	running := "stopped"
	if c.Scheduler.Running {
		running = "running"
	}

	b.WriteString(marker + name + valueStyle.Render(fmt.Sprintf("  %d Hz  %s  ", c.SampleRate, running)) + state)
	b.WriteString("\n")

	s := c.Scheduler
	b.WriteString(valueStyle.Render(fmt.Sprintf("    chunk %d  frame %d  ticks %d  wraps %d  interval %s",
		s.Counter, c.FramePosition, s.Ticks, s.Wraps, s.Interval)))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("    drift %s  worst late %s  zeroings %d",
		formatDrift(s.LastDrift), s.WorstLateness, c.Zeroings)))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("    producers %d %s  consumers %d %s  io %d cycles %d errors",
		c.Producers, listNames(c.ProducerNames), c.Consumers, listNames(c.ConsumerNames), c.IOCycles, c.IOErrors)))
	b.WriteString("\n")

	return b.String()
}

func formatDrift(d time.Duration) string {
	if d >= 0 {
		return "+" + d.String()
	}
	return d.String()
}

func listNames(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "(" + truncate(strings.Join(names, ", "), 40) + ")"
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
