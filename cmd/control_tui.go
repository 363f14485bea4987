// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"github.com/Thermoquad/chargeport/pkg/dispatch"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	refreshInterval = 250 * time.Millisecond
	maxLogEntries   = 100
	channelCount    = charger.MaxChannel + 1
)

// Focus states
const (
	focusInput = iota
	focusChannels
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// channelItem is one charger channel as last commanded
type channelItem struct {
	index uint8
	state string
}

// Implement list.Item interface
func (c channelItem) Title() string       { return fmt.Sprintf("Channel %d", c.index) }
func (c channelItem) Description() string { return c.state }
func (c channelItem) FilterValue() string { return fmt.Sprintf("%d", c.index) }

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	pool     *dispatch.Pool
	connInfo string

	// Channel tracking, from transmitted commands
	channelOn [channelCount]*bool
	channels  list.Model
	params    *charger.SetParams

	// Pool monitoring
	occupancy progress.Model
	active    int
	stats     dispatch.Snapshot
	sent      uint64
	failed    uint64

	// Control
	input        textinput.Model
	focusedField int

	// Event log
	eventLog []logEntry

	// UI state
	width         int
	height        int
	quitting      bool
	senderStopped bool
}

type controlTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(pool *dispatch.Pool, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "setparams 20 80 60"
	ti.CharLimit = 40
	ti.Width = 30
	ti.Focus()

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	channels := list.New(nil, delegate, 24, 12)
	channels.Title = "Channels"
	channels.SetShowStatusBar(false)
	channels.SetShowHelp(false)
	channels.SetFilteringEnabled(false)

	m := controlModel{
		pool:         pool,
		connInfo:     connInfo,
		channels:     channels,
		occupancy:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		input:        ti,
		focusedField: focusInput,
		eventLog:     make([]logEntry, 0),
		width:        80,
		height:       24,
	}
	m.updateChannelList()
	m.refresh()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, controlTickCmd())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.occupancy.Width = max(10, m.width-48)

	case controlTickMsg:
		m.refresh()
		return m, controlTickCmd()

	case commandSentMsg:
		m.sent++
		m.applySent(msg.cmd)
		m.addLogEntry("Sent "+charger.FormatCommand(msg.cmd), false)
		m.refresh()

	case commandFailedMsg:
		m.failed++
		m.addLogEntry(fmt.Sprintf("Failed to send %s: %v", charger.FormatCommand(msg.cmd), msg.err), true)

	case senderStoppedMsg:
		m.senderStopped = true
		m.addLogEntry(fmt.Sprintf("Sender stopped: %v", msg.err), true)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+e":
		m.queue(charger.NewEmergency())
		return m, nil

	case "tab", "shift+tab":
		if m.focusedField == focusInput {
			m.focusedField = focusChannels
			m.input.Blur()
			return m, nil
		}
		m.focusedField = focusInput
		return m, m.input.Focus()

	case "enter":
		if m.focusedField == focusInput {
			m.submitInput()
			return m, nil
		}
		m.toggleSelectedChannel()
		return m, nil

	case " ":
		if m.focusedField == focusChannels {
			m.toggleSelectedChannel()
			return m, nil
		}
	}

	// Pass through to focused component
	var cmd tea.Cmd
	if m.focusedField == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.channels, cmd = m.channels.Update(msg)
	}
	return m, cmd
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("CHARGEPORT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.senderStopped {
		connStatus = errorStyle.Render("SENDER STOPPED")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | esc=quit Tab=switch ctrl+e=EMERGENCY", connStatus)))
	s.WriteString("\n\n")

	// Channel list panel
	leftWidth := 26
	rightWidth := max(30, m.width-leftWidth-6)
	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusChannels {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	channelPanel := listStyle.Render(m.channels.View())

	// Command panel
	commandStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusInput {
		commandStyle = focusedBoxStyle.Width(rightWidth)
	}
	commandPanel := commandStyle.Render(m.renderCommandPanel(labelStyle, valueStyle, headerStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, channelPanel, " ", commandPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderCommandPanel(labelStyle, valueStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(labelStyle.Render("Command: "))
	s.WriteString(m.input.View())
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("emergency | onoff <on|off> <ch> | setparams <min> <max> <minutes>"))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Charge window: "))
	if m.params == nil {
		s.WriteString(headerStyle.Render("not set"))
	} else {
		s.WriteString(valueStyle.Render(fmt.Sprintf("%d%% - %d%%, %d min",
			m.params.MinLevel, m.params.MaxLevel, m.params.MaxTime)))
	}
	s.WriteString("\n\n")

	capacity := m.pool.Capacity()
	s.WriteString(labelStyle.Render("Pool: "))
	s.WriteString(m.occupancy.ViewAs(float64(m.active) / float64(capacity)))
	s.WriteString(fmt.Sprintf(" %s", valueStyle.Render(fmt.Sprintf("%d/%d", m.active, capacity))))

	return s.String()
}

func (m controlModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	rejected := valueStyle.Render("0")
	if n := m.stats.Rejected(); n > 0 {
		rejected = errorStyle.Render(fmt.Sprintf("%d", n))
	}

	failed := valueStyle.Render("0")
	if m.failed > 0 {
		failed = errorStyle.Render(fmt.Sprintf("%d", m.failed))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Admitted:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Admitted)),
		labelStyle.Render("Retrieved:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Retrieved)),
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", m.sent)),
		labelStyle.Render("Failed:"), failed,
		labelStyle.Render("Rejected:"), rejected,
		labelStyle.Render("Full:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.RejectedFull)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f cmd/s", m.stats.AdmitRate)),
	)

	return boxStyle.Width(max(20, m.width-4)).Render(content)
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	startIdx := max(0, len(m.eventLog)-logHeight)

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(max(20, m.width-4)).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// queue admits cmd to the pool and logs the outcome
func (m *controlModel) queue(cmd charger.Command) bool {
	if err := m.pool.Admit(&cmd); err != nil {
		m.addLogEntry(fmt.Sprintf("Rejected %s: %v", charger.FormatCommand(cmd), err), true)
		return false
	}
	m.addLogEntry("Queued "+charger.FormatCommand(cmd), false)
	m.refresh()
	return true
}

func (m *controlModel) submitInput() {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return
	}

	cmd, err := charger.ParseCommandLine(line)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid input %q: %v", line, err), true)
		return
	}
	if m.queue(cmd) {
		m.input.SetValue("")
	}
}

func (m *controlModel) toggleSelectedChannel() {
	item, ok := m.channels.SelectedItem().(channelItem)
	if !ok {
		return
	}

	state := uint8(charger.SwitchOn)
	if on := m.channelOn[item.index]; on != nil && *on {
		state = charger.SwitchOff
	}
	m.queue(charger.NewOnOff(state, item.index))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

// applySent records the effect of a transmitted command
func (m *controlModel) applySent(cmd charger.Command) {
	switch cmd.Type {
	case charger.CmdOnOff:
		if cmd.OnOff.Channel < channelCount {
			on := cmd.OnOff.OnOff == charger.SwitchOn
			m.channelOn[cmd.OnOff.Channel] = &on
		}
	case charger.CmdEmergency:
		for i := range m.channelOn {
			off := false
			m.channelOn[i] = &off
		}
	case charger.CmdSetParams:
		params := cmd.SetParams
		m.params = &params
	}
	m.updateChannelList()
}

func (m *controlModel) updateChannelList() {
	items := make([]list.Item, 0, channelCount)
	for i := uint8(0); i < channelCount; i++ {
		state := "unknown"
		if on := m.channelOn[i]; on != nil {
			state = "OFF"
			if *on {
				state = "ON"
			}
		}
		items = append(items, channelItem{index: i, state: state})
	}
	m.channels.SetItems(items)
}

func (m *controlModel) refresh() {
	m.active = m.pool.ActiveCount()
	m.stats = m.pool.Stats()
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}
