package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/smart-dag/txevent/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Address   string
	Watched   int
	In        int
	Out       int
	Joints    int
	Errors    int
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}
	if m.Address != "" {
		connStr += " " + theme.StyleDimmed.Render(m.Address)
	}

	in := lipgloss.NewStyle().Foreground(theme.ColorIn).Render(fmt.Sprintf("%d in", m.In))
	out := lipgloss.NewStyle().Foreground(theme.ColorOut).Render(fmt.Sprintf("%d out", m.Out))
	counts := fmt.Sprintf("%s  %s  %d joints  %d watched", in, out, m.Joints, m.Watched)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts
	if m.Errors > 0 {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(fmt.Sprintf("%d errors", m.Errors))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
