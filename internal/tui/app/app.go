package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smart-dag/txevent/internal/tui/theme"
	"github.com/smart-dag/txevent/internal/tui/views/eventlog"
	"github.com/smart-dag/txevent/internal/tui/views/status"
	"github.com/smart-dag/txevent/internal/tui/views/transfers"
	"github.com/smart-dag/txevent/pkg/protocol"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLog
)

// Model is the root Bubble Tea model. It only reacts to messages; the hub
// client feeding it is driven from outside through Attach.
type Model struct {
	keys   KeyMap
	width  int
	height int

	overlay Overlay

	statusBar status.Model
	list      transfers.Model
	log       eventlog.Model

	connected bool
}

// New creates the root model for a client watching watched addresses.
func New(address string, watched int) Model {
	m := Model{
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		list:      transfers.New(),
		log:       eventlog.New(),
	}
	m.statusBar.Address = address
	m.statusBar.Watched = watched
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.list.SetSize(msg.Width, msg.Height-6)
		m.log.SetSize(msg.Width, msg.Height-3)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		if msg.Address != "" {
			m.statusBar.Address = msg.Address
		}
		m.statusBar.Watched = msg.Watched
		m.log.Add(eventlog.KindHub, "connected to "+m.statusBar.Address)
		return m, nil

	case LostMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.log.Add(eventlog.KindHub, "connection lost")
		return m, nil

	case ErrorMsg:
		m.statusBar.Errors++
		m.log.Add(eventlog.KindError, msg.Err.Error())
		return m, nil

	case JointMsg:
		m.statusBar.Joints++
		if unit := jointUnit(msg.Body); unit != "" {
			m.log.Add(eventlog.KindJoint, "unit "+unit)
		} else {
			m.log.Add(eventlog.KindJoint, fmt.Sprintf("joint (%d bytes)", len(msg.Body)))
		}
		return m, nil

	case TransferMsg:
		switch msg.Transfer.Direction {
		case protocol.DirectionIn:
			m.statusBar.In++
		case protocol.DirectionOut:
			m.statusBar.Out++
		}
		m.list.Add(msg.Transfer)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.overlay == OverlayLog {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Log):
			m.overlay = OverlayNone
			return m, nil
		case key.Matches(msg, m.keys.Filter):
			m.log.CycleFilter()
			return m, nil
		}
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Log):
		m.overlay = OverlayLog
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.list.Clear()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the full dashboard.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayLog {
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.log.View())
	}

	sections := []string{m.statusBar.View()}
	if !m.connected {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorDanger).
			Bold(true).
			Render("  DISCONNECTED · Reconnecting to the hub..."))
	}
	sections = append(sections,
		theme.StyleHeader.Render("=== TRANSFERS ==="),
		m.list.View(),
		theme.StyleDimmed.Render("  j/k:scroll  l:event log  c:clear  q:quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
