package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("#E4572E") // burnt orange
	ColorOK      = lipgloss.Color("#29BF12")
	ColorFail    = lipgloss.Color("#FF5F87")
	ColorWarning = lipgloss.Color("#FFAF00")
	ColorSubtle  = lipgloss.Color("#767676")
	ColorBorder  = lipgloss.Color("#3C3C3C")
	ColorBg      = lipgloss.Color("#1A1A1A")
)

var (
	Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(ColorSubtle)

	Subtle = lipgloss.NewStyle().Foreground(ColorSubtle)
	Label  = lipgloss.NewStyle().Foreground(ColorSubtle).Width(16)
	Value  = lipgloss.NewStyle().Bold(true)

	OK     = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	Fail   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	Warn   = lipgloss.NewStyle().Foreground(ColorWarning)
	Accent = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1).
		Margin(0, 1)
)

// Row renders a fixed-width label followed by a value.
func Row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, Label.Render(label), Value.Render(value))
}

// Rate picks a style for a success-rate percentage.
func Rate(pct float64) lipgloss.Style {
	switch {
	case pct >= 99:
		return OK
	case pct >= 90:
		return Warn
	}
	return Fail
}
