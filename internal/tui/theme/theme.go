// Package theme holds the Lip Gloss palette and shared styles for the
// txevent dashboard. It imports nothing from the rest of the dashboard.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/smart-dag/txevent/pkg/protocol"
)

// Direction colors.
var (
	ColorIn  = lipgloss.Color("#22c55e")
	ColorOut = lipgloss.Color("#f59e0b")
)

// Event log colors.
var (
	ColorHub   = lipgloss.Color("#2563eb")
	ColorJoint = lipgloss.Color("#7c3aed")
	ColorError = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// DirectionColor returns the color used for a transfer direction.
func DirectionColor(d protocol.Direction) lipgloss.Color {
	switch d {
	case protocol.DirectionIn:
		return ColorIn
	case protocol.DirectionOut:
		return ColorOut
	default:
		return ColorDimmed
	}
}

// DirectionGlyph returns an arrow for a transfer direction.
func DirectionGlyph(d protocol.Direction) string {
	switch d {
	case protocol.DirectionIn:
		return "<-"
	case protocol.DirectionOut:
		return "->"
	default:
		return "··"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)
)
