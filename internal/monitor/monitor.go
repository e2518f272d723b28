// Package monitor implements the live air-quality TUI using BubbleTea.
// The model owns a chart adapter over a terminal renderer; the bubbletea
// update loop is its only writer.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/history"
	"github.com/luki/aqdash/internal/sensor"
	"github.com/luki/aqdash/internal/store"
)

const retryDelay = 2 * time.Second

// Options configures the monitor.
type Options struct {
	Window         time.Duration
	UpdateInterval time.Duration // chart refresh cadence
	HistorySize    int
	Store          *store.DiskStore // optional CSV log
	CSVInterval    time.Duration    // how often the latest snapshot is logged
	Log            *zap.Logger      // must not write to the terminal
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type csvTickMsg time.Time

type snapshotMsg sensor.Snapshot

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type retryMsg struct{}

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	ctx      context.Context
	src      sensor.Source
	opts     Options
	adapter  *chart.Adapter
	renderer *chart.TermRenderer
	history  *history.Store
	titles   map[string]string // mount -> title

	latest     sensor.Snapshot
	err        error
	width      int
	height     int
	scroll     int
	lastUpdate time.Time
	startTime  time.Time
	paused     bool
}

// New creates the monitor model and shows every chart.
func New(ctx context.Context, src sensor.Source, opts Options) Model {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = time.Second
	}
	if opts.Window <= 0 {
		opts.Window = 10 * time.Minute
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 600
	}
	if opts.CSVInterval <= 0 {
		opts.CSVInterval = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	groups := chart.DefaultGroups()
	renderer := chart.NewTermRenderer()
	m := Model{
		ctx:       ctx,
		src:       src,
		opts:      opts,
		adapter:   chart.NewAdapter(renderer, groups...),
		renderer:  renderer,
		history:   history.NewStore(opts.HistorySize),
		titles:    make(map[string]string, len(groups)),
		startTime: time.Now(),
	}
	for _, g := range groups {
		m.titles[g.Mount] = g.Title
	}
	m.err = m.adapter.ShowAll(nil)
	opts.Log.Info("monitor started",
		zap.Duration("window", opts.Window),
		zap.Duration("update_interval", opts.UpdateInterval),
		zap.Bool("csv", opts.Store != nil))
	return m
}

// ── Commands ─────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.UpdateInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) csvTickCmd() tea.Cmd {
	return tea.Tick(m.opts.CSVInterval, func(t time.Time) tea.Msg {
		return csvTickMsg(t)
	})
}

func (m Model) readCmd() tea.Cmd {
	ctx, src := m.ctx, m.src
	return func() tea.Msg {
		snap, err := src.Read(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg(snap)
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.readCmd(), m.tickCmd()}
	if m.opts.Store != nil {
		cmds = append(cmds, m.csvTickCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.adapter.Close()
			if m.opts.Store != nil {
				m.opts.Store.Close()
			}
			m.opts.Log.Info("monitor stopped")
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case " ", "p":
			m.paused = !m.paused
		case "r":
			if err := m.adapter.ShowAll(m.history.Series()); err != nil {
				m.err = err
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if !m.paused {
			m.history.TrimAll(m.opts.Window, time.Time(msg))
			m.adapter.UpdateCharts(m.history.Series())
			m.lastUpdate = time.Time(msg)
		}
		return m, m.tickCmd()

	case snapshotMsg:
		snap := sensor.Snapshot(msg)
		if snap.Time.IsZero() {
			snap.Time = time.Now()
		}
		m.latest = snap
		m.err = nil
		for _, r := range snap.Readings {
			m.history.Record(r.Key(), r.Value, snap.Time)
		}
		return m, m.readCmd()

	case csvTickMsg:
		if m.opts.Store != nil && !m.latest.Empty() {
			if err := m.opts.Store.Write(m.latest); err != nil {
				m.err = fmt.Errorf("write: %w", err)
				m.opts.Log.Error("csv write failed", zap.String("dir", m.opts.Store.Dir()), zap.Error(err))
			}
		}
		return m, m.csvTickCmd()

	case errMsg:
		m.err = msg.err
		if m.ctx.Err() != nil {
			return m, nil
		}
		m.opts.Log.Warn("source read failed", zap.Error(msg.err))
		return m, tea.Tick(retryDelay, func(time.Time) tea.Msg { return retryMsg{} })

	case retryMsg:
		return m, m.readCmd()
	}

	return m, nil
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorHigh     = lipgloss.Color("208")
	colorCrit     = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderTitleBar(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if m.latest.Empty() {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Waiting for sensor data...")
		sections = append(sections, waiting)
	} else {
		for _, c := range m.renderer.Charts() {
			sections = append(sections, c.Render(m.titles[c.Mount()], contentWidth))
		}
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return chart.Viewport(content, m.scroll, m.height)
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("AIR QUALITY MONITOR")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	statusParts := []string{dimS.Render("up " + fmtDuration(time.Since(m.startTime)))}

	if m.latest.HardwareID != "" {
		statusParts = append(statusParts, dimS.Render(m.latest.HardwareID))
	}
	if !m.lastUpdate.IsZero() {
		statusParts = append(statusParts, dimS.Render(m.lastUpdate.Format("15:04:05")))
	}
	if m.paused {
		statusParts = append(statusParts, lipgloss.NewStyle().Foreground(colorCrit).Bold(true).Render("PAUSED"))
	}
	if m.opts.Store != nil {
		rec := lipgloss.NewStyle().Foreground(colorCrit).Render("REC") + dimS.Render(" "+m.opts.Store.Dir())
		statusParts = append(statusParts, rec)
	}

	sep := dimS.Render(" │ ")
	right := strings.Join(statusParts, sep)

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

func (m Model) renderFooter(width int) string {
	okS := lipgloss.NewStyle().Foreground(colorOk).Render("██")
	warnS := lipgloss.NewStyle().Foreground(colorWarn).Render("██")
	highS := lipgloss.NewStyle().Foreground(colorHigh).Render("██")
	critS := lipgloss.NewStyle().Foreground(colorCrit).Render("██")
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render("│")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	legend := okS + dimS.Render(" ok ") +
		warnS + dimS.Render(" elevated ") +
		highS + dimS.Render(" warn ") +
		critS + dimS.Render(" crit ") +
		tickS + dimS.Render(" 1min")

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  j/k") + keyS.Render(":scroll") +
		dimS.Render("  p") + keyS.Render(":pause") +
		dimS.Render("  r") + keyS.Render(":redraw")

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
