// Package viewer implements the historical air-quality browser TUI with
// time scrubbing, day navigation, and per-group sparkline windows.
package viewer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/history"
	"github.com/luki/aqdash/internal/store"
)

// windowSize is how many records a sparkline window holds.
const windowSize = 140

// ErrNoData is returned by Run when the data directory holds no logs.
var ErrNoData = errors.New("viewer: no history data")

// Run launches the historical data viewer TUI over the CSV logs in dir.
func Run(dir string) error {
	days, err := store.ListDays(dir)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		return fmt.Errorf("%w in %s", ErrNoData, dir)
	}

	p := tea.NewProgram(
		newModel(dir, days),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = p.Run()
	return err
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorCursor   = lipgloss.Color("214")
	colorCrit     = lipgloss.Color("196")
)

// ── Model ────────────────────────────────────────────────────────────

type model struct {
	dir     string
	days    []string                  // available dates, newest first
	dayIdx  int                       // currently selected day
	records []store.Record            // all rows for the current day
	series  map[string]history.Series // metric key -> the day's points

	adapter  *chart.Adapter
	renderer *chart.TermRenderer
	titles   map[string]string // mount -> title

	cursor int // index into records
	scroll int // vertical scroll offset
	width  int
	height int
	err    error
}

func newModel(dir string, days []string) model {
	groups := chart.DefaultGroups()
	renderer := chart.NewTermRenderer()
	m := model{
		dir:      dir,
		days:     days,
		adapter:  chart.NewAdapter(renderer, groups...),
		renderer: renderer,
		titles:   make(map[string]string, len(groups)),
	}
	for _, g := range groups {
		m.titles[g.Mount] = g.Title
	}
	m.loadDay()
	return m
}

func (m *model) loadDay() {
	records, err := store.LoadDay(m.dir, m.days[m.dayIdx])
	if err != nil {
		m.err = err
		m.records = nil
		m.series = nil
		m.adapter.Close()
		return
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Time.Before(records[j].Time) })

	series := make(map[string]history.Series)
	for _, r := range records {
		for k, v := range r.Values {
			series[k] = append(series[k], history.Point{X: r.Time, Y: v})
		}
	}

	m.records = records
	m.series = series
	m.err = nil
	m.cursor = len(records) - 1
	m.scroll = 0
	if err := m.adapter.ShowAll(m.window()); err != nil {
		m.err = err
	}
}

// window returns, per metric, the last windowSize points at or before the
// cursor. The slices share the day's series storage, which is never
// modified after loading.
func (m *model) window() chart.Data {
	data := make(chart.Data, len(m.series))
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return data
	}
	at := m.records[m.cursor].Time
	for k, s := range m.series {
		end := sort.Search(len(s), func(i int) bool { return s[i].X.After(at) })
		start := max(0, end-windowSize)
		data[k] = s[start:end]
	}
	return data
}

func (m *model) seek(cursor int) {
	if len(m.records) == 0 {
		return
	}
	m.cursor = min(max(cursor, 0), len(m.records)-1)
	m.adapter.UpdateCharts(m.window())
}

// ── Init / Update ────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.adapter.Close()
			return m, tea.Quit

		case "left", "h":
			m.seek(m.cursor - 1)
		case "right", "l":
			m.seek(m.cursor + 1)
		case "shift+left", "H":
			m.seek(m.cursor - 60)
		case "shift+right", "L":
			m.seek(m.cursor + 60)
		case "home":
			m.seek(0)
		case "end":
			m.seek(len(m.records) - 1)

		case "[":
			if m.dayIdx < len(m.days)-1 {
				m.dayIdx++
				m.loadDay()
			}
		case "]":
			if m.dayIdx > 0 {
				m.dayIdx--
				m.loadDay()
			}

		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		}

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			break
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			if m.scroll > 0 {
				m.scroll--
			}
		case tea.MouseButtonWheelDown:
			m.scroll++
		case tea.MouseButtonWheelLeft:
			m.seek(m.cursor - 1)
		case tea.MouseButtonWheelRight:
			m.seek(m.cursor + 1)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// ── View ─────────────────────────────────────────────────────────────

func (m model) View() string {
	if m.width == 0 {
		return "  Loading..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderTitle(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if len(m.records) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(2, 0).
			Align(lipgloss.Center).
			Width(contentWidth).
			Render("No data for this day.")
		sections = append(sections, empty)
	} else {
		sections = append(sections, m.renderCursorInfo(contentWidth))
		for _, c := range m.renderer.Charts() {
			sections = append(sections, c.Render(m.titles[c.Mount()], contentWidth))
		}
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return chart.Viewport(content, m.scroll, m.height)
}

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("AIR QUALITY HISTORY")

	dayText := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(m.days[m.dayIdx])

	nav := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  [ %d/%d ]", m.dayIdx+1, len(m.days)))

	dataInfo := ""
	if len(m.records) > 0 {
		first := m.records[0].Time.Format("15:04:05")
		last := m.records[len(m.records)-1].Time.Format("15:04:05")
		dataInfo = lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("  %s - %s  (%d rows, %d metrics)",
				first, last, len(m.records), len(m.series)))
	}

	right := dayText + nav + dataInfo

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m model) renderCursorInfo(width int) string {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return ""
	}

	ts := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(m.records[m.cursor].Time.Format("15:04:05"))

	pos := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.records)))

	barWidth := width - 30
	if barWidth < 10 {
		barWidth = 10
	}

	return lipgloss.NewStyle().
		Padding(0, 1).
		Render("  " + ts + pos + "  " + m.renderScrubber(barWidth))
}

func (m model) renderScrubber(width int) string {
	if len(m.records) == 0 || width <= 0 {
		return ""
	}

	pos := 0
	if len(m.records) > 1 {
		pos = m.cursor * (width - 1) / (len(m.records) - 1)
	}
	if pos >= width {
		pos = width - 1
	}

	var sb strings.Builder
	dimS := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	curS := lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i := 0; i < width; i++ {
		if i == pos {
			sb.WriteString(curS.Render("◆"))
			continue
		}
		idx := 0
		if len(m.records) > 1 {
			idx = i * (len(m.records) - 1) / (width - 1)
		}
		if idx > 0 && m.records[idx].Time.Hour() != m.records[idx-1].Time.Hour() {
			sb.WriteString(tickS.Render("│"))
			continue
		}
		sb.WriteString(dimS.Render("─"))
	}

	return sb.String()
}

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  h/l") + keyS.Render(":scrub") +
		dimS.Render("  H/L") + keyS.Render(":skip 60") +
		dimS.Render("  home/end") + keyS.Render(":jump") +
		dimS.Render("  [/]") + keyS.Render(":day") +
		dimS.Render("  j/k") + keyS.Render(":scroll")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}

