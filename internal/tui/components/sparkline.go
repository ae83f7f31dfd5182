package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune(" ▁▂▃▄▅▆▇█")

// Sparkline is a one-row scrolling bar chart.
type Sparkline struct {
	Data  []float64
	Width int
	Label string
	Style lipgloss.Style
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]float64, 0, width),
	}
}

func (s *Sparkline) Add(v float64) {
	s.Data = append(s.Data, v)
	if s.Width > 0 && len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
}

// max of the visible window
func (s Sparkline) max() float64 {
	m := 0.0
	for _, v := range s.Data {
		if v > m {
			m = v
		}
	}
	return m
}

// Graph renders only the bars, padded to Width.
func (s Sparkline) Graph() string {
	if s.Width <= 0 {
		return ""
	}
	m := s.max()
	var b strings.Builder
	for _, v := range s.Data {
		idx := 0
		if m > 0 {
			idx = int(v / m * float64(len(levels)-1))
		}
		if idx < 0 {
			idx = 0
		}
		if idx >= len(levels) {
			idx = len(levels) - 1
		}
		b.WriteRune(levels[idx])
	}
	if pad := s.Width - len(s.Data); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	return b.String()
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	return s.Style.Render(s.Label) + "\n" + s.Style.Render(s.Graph())
}
