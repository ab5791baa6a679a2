package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	canvasStyle lipgloss.Style
	statsStyle  lipgloss.Style
	headerStyle lipgloss.Style
	labelStyle  lipgloss.Style
	valueStyle  lipgloss.Style
	graphStyle  lipgloss.Style
	helpStyle   lipgloss.Style
	pausedStyle lipgloss.Style
	errorStyle  lipgloss.Style
)

func init() { applyTheme(CurrentTheme) }

func applyTheme(t Theme) {
	canvasStyle = lipgloss.NewStyle().Foreground(t.Bodies).Padding(1, 2)
	statsStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(t.Muted).Padding(1, 2).Width(statsWidth)
	headerStyle = lipgloss.NewStyle().Foreground(t.Header).Bold(true).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(t.Label).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(t.Value)
	graphStyle = lipgloss.NewStyle().Foreground(t.Graph).Padding(1, 0)
	helpStyle = lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1)
	pausedStyle = lipgloss.NewStyle().Foreground(t.Paused).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

// Sparkline renders values as a row of block characters, newest last.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / rng * float64(len(chars)-1))
		b.WriteRune(chars[min(max(idx, 0), len(chars)-1)])
	}
	return b.String()
}
