package chart

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/aqdash/internal/sensor"
)

// TermRenderer draws charts as lipgloss sparkline panels. It keeps the
// charts by mount point in creation order.
type TermRenderer struct {
	charts map[string]*TermChart
	order  []string
}

// NewTermRenderer creates an empty terminal renderer.
func NewTermRenderer() *TermRenderer {
	return &TermRenderer{charts: make(map[string]*TermChart)}
}

// CreateChart implements Renderer.
func (r *TermRenderer) CreateChart(mount string, cfg *Config) Handle {
	if old, ok := r.charts[mount]; ok {
		old.alive = false
	} else {
		r.order = append(r.order, mount)
	}
	c := &TermChart{renderer: r, mount: mount, cfg: cfg, alive: true}
	r.charts[mount] = c
	return c
}

// Chart returns the live chart bound to mount.
func (r *TermRenderer) Chart(mount string) (*TermChart, bool) {
	c, ok := r.charts[mount]
	return c, ok
}

// Charts returns the live charts in creation order.
func (r *TermRenderer) Charts() []*TermChart {
	out := make([]*TermChart, 0, len(r.order))
	for _, m := range r.order {
		if c, ok := r.charts[m]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *TermRenderer) remove(mount string) {
	delete(r.charts, mount)
	for i, m := range r.order {
		if m == mount {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// TermChart is a terminal chart handle.
type TermChart struct {
	renderer *TermRenderer
	mount    string
	cfg      *Config
	alive    bool
	frames   int
}

// Config implements Handle.
func (c *TermChart) Config() *Config { return c.cfg }

// Update implements Handle. Drawing happens lazily in Render; Update only
// counts redraw requests.
func (c *TermChart) Update() { c.frames++ }

// Destroy implements Handle.
func (c *TermChart) Destroy() {
	if !c.alive {
		return
	}
	c.alive = false
	c.renderer.remove(c.mount)
}

// Alive implements Handle.
func (c *TermChart) Alive() bool { return c.alive }

// Mount returns the mount point the chart is bound to.
func (c *TermChart) Mount() string { return c.mount }

// Frames returns how many redraws were requested since construction.
func (c *TermChart) Frames() int { return c.frames }

var (
	colorBorder = lipgloss.Color("62")
	colorDim    = lipgloss.Color("240")
)

// Render draws the chart as one sparkline row per dataset, followed by a
// timeline, in a panel of the given total width.
func (c *TermChart) Render(title string, width int) string {
	innerWidth := width - 4
	if innerWidth < 30 {
		innerWidth = 30
	}
	chartWidth := innerWidth - 70
	if chartWidth < 15 {
		chartWidth = 15
	}
	if chartWidth > 140 {
		chartWidth = 140
	}
	labelW := 20
	valueW := 14

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	rows := []string{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147")).Render(title) +
			"  " + dimS.Render("#"+c.mount),
	}

	longest := -1
	for i, ds := range c.cfg.Data.Datasets {
		label := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ds.BorderColor)).
			Width(labelW).
			Render(truncate(ds.Label, labelW))

		if len(ds.Data) == 0 {
			rows = append(rows, label+" "+dimS.Width(valueW).Render("no data"))
			continue
		}
		if longest < 0 || len(ds.Data) > len(c.cfg.Data.Datasets[longest].Data) {
			longest = i
		}

		last := ds.Data[len(ds.Data)-1].Y
		value := lipgloss.NewStyle().
			Width(valueW).
			Align(lipgloss.Right).
			Render(RenderValue(last, ds.Warn, ds.Crit, sensor.Unit(ds.Key)))

		lo, hi := ValueRange(ds.Data, ds.Warn, ds.Crit)
		spark := RenderSparkline(ds.Data, chartWidth, lo, hi, ds.Warn, ds.Crit)

		minV, maxV, sum := ds.Data[0].Y, ds.Data[0].Y, 0.0
		for _, p := range ds.Data {
			minV = min(minV, p.Y)
			maxV = max(maxV, p.Y)
			sum += p.Y
		}
		stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%7.1f", sum/float64(len(ds.Data)))) +
			dimS.Render(" lo") + valS.Render(fmt.Sprintf("%7.1f", minV)) +
			dimS.Render(" pk") + valS.Render(fmt.Sprintf("%7.1f", maxV))

		rows = append(rows, label+" "+value+" "+frameL+spark+frameR+stats)
	}

	if longest >= 0 {
		timeline := RenderTimeline(c.cfg.Data.Datasets[longest].Data, chartWidth)
		if strings.TrimSpace(timeline) != "" {
			pad := strings.Repeat(" ", labelW+valueW+2)
			rows = append(rows, pad+timeline)
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func truncate(s string, w int) string {
	if len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-1] + "…"
}

// Viewport returns the lines of content visible at the given scroll offset
// in a screen of height rows. The offset is clamped so the last page stays
// full.
func Viewport(content string, scroll, height int) string {
	lines := strings.Split(content, "\n")
	height = max(height, 5)
	scroll = min(max(scroll, 0), max(len(lines)-height, 0))
	end := min(scroll+height, len(lines))
	return strings.Join(lines[scroll:end], "\n")
}
