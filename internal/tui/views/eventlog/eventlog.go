// Package eventlog renders hub lifecycle, joint and error events as a
// filterable overlay.
package eventlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/smart-dag/txevent/internal/tui/theme"
)

const maxEntries = 200

// Kind classifies an entry.
type Kind string

const (
	KindHub   Kind = "hub"
	KindJoint Kind = "jnt"
	KindError Kind = "err"
)

// kinds is the filter cycle after "all".
var kinds = []Kind{KindHub, KindJoint, KindError}

// Entry is one logged event.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Model keeps the last entries, oldest first, and shows the ones matching
// the current filter in a viewport that follows the tail.
type Model struct {
	Entries []Entry

	filter Kind // empty shows every kind
	counts map[Kind]int
	width  int
	vp     viewport.Model
}

// New creates an empty log sized for a small terminal.
func New() Model {
	m := Model{counts: make(map[Kind]int)}
	m.SetSize(80, 20)
	return m
}

// Add appends an entry. A view scrolled to the bottom stays there.
func (m *Model) Add(kind Kind, message string) {
	follow := m.vp.AtBottom()
	m.Entries = append(m.Entries, Entry{Time: time.Now(), Kind: kind, Message: message})
	m.counts[kind]++
	if len(m.Entries) > maxEntries {
		m.counts[m.Entries[0].Kind]--
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.refresh()
	if follow {
		m.vp.GotoBottom()
	}
}

// Count returns how many kept entries have kind.
func (m Model) Count(kind Kind) int {
	return m.counts[kind]
}

// Filter returns the kind being shown, or "" for all.
func (m Model) Filter() Kind {
	return m.filter
}

// CycleFilter steps through all, hub, jnt, err.
func (m *Model) CycleFilter() {
	next := Kind("")
	if m.filter == "" {
		next = kinds[0]
	} else {
		for i, k := range kinds {
			if k == m.filter && i+1 < len(kinds) {
				next = kinds[i+1]
			}
		}
	}
	m.filter = next
	m.refresh()
	m.vp.GotoBottom()
}

// SetSize fits the panel into width by height cells.
func (m *Model) SetSize(width, height int) {
	// Double border plus horizontal padding of two.
	m.width = max(width-6, 20)
	// Border, vertical padding, title, tabs and help.
	m.vp.Width = m.width
	m.vp.Height = max(height-7, 3)
	m.refresh()
	m.vp.GotoBottom()
}

// Update forwards scrolling keys to the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  f:filter  esc:close  %d entries", len(m.Entries)))
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.tabs(), m.vp.View(), help)
	return lipgloss.NewStyle().
		Width(m.width+4).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) tabs() string {
	tab := func(label string, k Kind, n int) string {
		text := fmt.Sprintf("%s %d", label, n)
		if k == m.filter {
			return lipgloss.NewStyle().Bold(true).Underline(true).Foreground(kindColor(k)).Render(text)
		}
		return theme.StyleDimmed.Render(text)
	}
	parts := []string{tab("all", "", len(m.Entries))}
	for _, k := range kinds {
		parts = append(parts, tab(string(k), k, m.counts[k]))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) refresh() {
	var lines []string
	for _, e := range m.Entries {
		if m.filter != "" && e.Kind != m.filter {
			continue
		}
		lines = append(lines, Line(e, m.width))
	}
	if len(lines) == 0 {
		msg := "No events recorded yet."
		if m.filter != "" {
			msg = fmt.Sprintf("No %s events.", m.filter)
		}
		m.vp.SetContent(theme.StyleDimmed.Render("  " + msg))
		return
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
}

// Line renders e in at most width cells.
func Line(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(string(e.Kind))

	// Timestamp, kind column and two separators.
	room := max(width-18, 1)
	msg := strings.ReplaceAll(e.Message, "\n", " ")
	msg = ansi.Truncate(msg, room, "…")
	return ts + " " + kind + " " + msg
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindHub:
		return theme.ColorHub
	case KindJoint:
		return theme.ColorJoint
	case KindError:
		return theme.ColorError
	default:
		return theme.ColorDimmed
	}
}
