package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/kgraph/internal/progress"
	"github.com/abhisek/kgraph/internal/ui/theme"
)

// ProgressBar displays a topic's banded progress bar.
type ProgressBar struct {
	Label       string
	Detail      progress.Detail
	ShowPercent bool
	Width       int
}

// NewProgressBar creates a progress bar for d.
func NewProgressBar(label string, d progress.Detail, showPercent bool, width int) ProgressBar {
	return ProgressBar{
		Label:       label,
		Detail:      d,
		ShowPercent: showPercent,
		Width:       width,
	}
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var result string

	if p.Label != "" {
		result += lipgloss.NewStyle().Foreground(theme.Text).Render(p.Label) + "  "
	}

	labelWidth := lipgloss.Width(result)
	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6 // "  100%"
	}

	barWidth := max(4, p.Width-labelWidth-percentWidth)
	filled := FilledCells(p.Detail.Fraction, barWidth)

	result += lipgloss.NewStyle().
		Background(theme.Band(p.Detail.Color)).
		Render(strings.Repeat(" ", filled))
	result += theme.ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled))

	if p.ShowPercent {
		result += lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Render(fmt.Sprintf("  %d%%", p.Detail.Percent))
	}

	return result
}

// FilledCells returns how many of width cells a fraction fills.
func FilledCells(fraction float64, width int) int {
	filled := int(float64(width) * fraction)
	return min(width, max(0, filled))
}
