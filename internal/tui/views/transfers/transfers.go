// Package transfers renders the scrolling list of classified transfers.
package transfers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smart-dag/txevent/internal/tui/theme"
	"github.com/smart-dag/txevent/pkg/protocol"
)

const maxTransfers = 500

// Model keeps the most recent transfers, newest first.
type Model struct {
	Transfers []protocol.Transfer

	vp viewport.Model
}

// New creates an empty list sized for a small terminal.
func New() Model {
	m := Model{vp: viewport.New(80, 10)}
	m.refresh()
	return m
}

// Add prepends tr and caps the list.
func (m *Model) Add(tr protocol.Transfer) {
	m.Transfers = append([]protocol.Transfer{tr}, m.Transfers...)
	if len(m.Transfers) > maxTransfers {
		m.Transfers = m.Transfers[:maxTransfers]
	}
	m.refresh()
}

func (m *Model) Clear() {
	m.Transfers = nil
	m.refresh()
	m.vp.GotoTop()
}

// SetSize resizes the visible area.
func (m *Model) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	m.vp.Width = width
	m.vp.Height = height
	m.refresh()
}

// Update forwards scrolling keys to the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.vp.View()
}

func (m *Model) refresh() {
	if len(m.Transfers) == 0 {
		m.vp.SetContent(theme.StyleDimmed.Render("  No transfers yet. Waiting for notifications on watched addresses."))
		return
	}
	lines := make([]string, len(m.Transfers))
	for i, tr := range m.Transfers {
		lines[i] = Line(tr)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
}

// Line renders one transfer.
func Line(tr protocol.Transfer) string {
	color := theme.DirectionColor(tr.Direction)
	dir := lipgloss.NewStyle().Foreground(color).Bold(true).Width(4).Render(string(tr.Direction))
	glyph := lipgloss.NewStyle().Foreground(color).Render(theme.DirectionGlyph(tr.Direction))

	ts := "--:--:--"
	if tr.Timestamp > 0 {
		ts = time.Unix(tr.Timestamp, 0).Format("15:04:05")
	}

	to := tr.To
	if to == "" {
		to = "?"
	}
	amount := tr.Amount.String()
	if amount == "" {
		amount = "-"
	}

	line := fmt.Sprintf("%s %s %s %s %s %s  %s",
		theme.StyleDimmed.Render(ts), dir, short(tr.From), glyph, short(to), amount,
		theme.StyleDimmed.Render(short(tr.Unit)))
	if tr.Text != "" {
		line += "  " + tr.Text
	}
	return line
}

func short(s string) string {
	if len(s) > 12 {
		return s[:11] + "…"
	}
	return s
}
