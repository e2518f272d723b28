package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/aqdash/internal/history"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// LevelColor returns the colour for a value given its warn and crit levels.
// A zero level is treated as unset.
func LevelColor(v, warn, crit float64) lipgloss.Color {
	switch {
	case crit > 0 && v >= crit:
		return lipgloss.Color("196") // red
	case warn > 0 && v >= warn:
		return lipgloss.Color("208") // orange
	case warn > 0 && v >= warn*0.85:
		return lipgloss.Color("220") // yellow
	default:
		return lipgloss.Color("78") // soft green
	}
}

// isMinuteTick reports whether points[i] is the first point of a new minute.
func isMinuteTick(points history.Series, i int) bool {
	p := points[i]
	if p.X.IsZero() {
		return false
	}
	if p.X.Second() == 0 {
		return true
	}
	if i > 0 && !points[i-1].X.IsZero() {
		return p.X.Minute() != points[i-1].X.Minute()
	}
	return false
}

// RenderSparkline renders a sparkline with minute tick marks on the
// timeline. A subtle '│' is drawn at each minute boundary.
func RenderSparkline(points history.Series, width int, rangeMin, rangeMax, warn, crit float64) string {
	if width <= 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	if len(points) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < padLen; i++ {
		sb.WriteString(dim.Render("╌"))
	}

	tickStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i, p := range points {
		if isMinuteTick(points, i) {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}

		norm := (p.Y - rangeMin) / span
		norm = math.Max(0, math.Min(1, norm))
		idx := int(norm * 7)
		if idx > 7 {
			idx = 7
		}

		style := lipgloss.NewStyle().Foreground(LevelColor(p.Y, warn, crit))
		if crit > 0 && p.Y >= crit {
			style = style.Bold(true)
		}
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}

	return sb.String()
}

// RenderTimeline renders HH:MM labels under a sparkline at each minute tick.
func RenderTimeline(points history.Series, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)

	line := make([]rune, width)
	for i := range line {
		line[i] = ' '
	}

	lastEnd := -1
	for i, p := range points {
		if !isMinuteTick(points, i) {
			continue
		}
		label := p.X.Format("15:04")
		start := padLen + i - 2 // center the 5-char label
		if start < 0 {
			start = 0
		}
		end := start + len(label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		for j, ch := range label {
			line[start+j] = ch
		}
		lastEnd = end
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render(string(line))
}

// RenderValue renders a value with its level colour and unit.
func RenderValue(v, warn, crit float64, unit string) string {
	s := fmt.Sprintf("%7.1f", v)
	if unit != "" {
		s += " " + unit
	}
	style := lipgloss.NewStyle().Foreground(LevelColor(v, warn, crit))
	if crit > 0 && v >= crit {
		style = style.Bold(true)
	}
	return style.Render(s)
}

// ValueRange returns a display range covering points and the level bands.
func ValueRange(points history.Series, warn, crit float64) (float64, float64) {
	if len(points) == 0 {
		return 0, 1
	}
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for _, p := range points {
		lo = math.Min(lo, p.Y)
		hi = math.Max(hi, p.Y)
	}
	pad := math.Max((hi-lo)*0.1, 1)
	rangeMin := math.Max(0, lo-pad)
	rangeMax := hi + pad
	if warn > 0 && warn > rangeMax && warn < hi*2 {
		rangeMax = warn + pad
	}
	if crit > 0 && crit > rangeMax && crit < hi*2 {
		rangeMax = crit + pad
	}
	return rangeMin, rangeMax
}
