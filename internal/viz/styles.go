package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	panel   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	running lipgloss.Style
	idle    lipgloss.Style
	errText lipgloss.Style
	graph   lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(t.Muted),
		panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Muted).Padding(0, 1),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(18),
		value:   lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		running: lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		idle:    lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		errText: lipgloss.NewStyle().Foreground(t.Error),
		graph:   lipgloss.NewStyle().Foreground(t.Accent),
	}
}

// ProgressBar renders done/total as a bar of width cells.
func ProgressBar(fraction float64, width int, t Theme) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	color := t.Error
	switch {
	case fraction > 0.8:
		color = t.Success
	case fraction > 0.4:
		color = t.Warning
	}
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}

// Sparkline renders one rune per value, scaled between the min and max.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	if len(values) > width {
		values = values[len(values)-width:]
	}
	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(chars)-1))
		b.WriteRune(chars[max(0, min(idx, len(chars)-1))])
	}
	return b.String()
}
