package monitor

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/sensor"
	"github.com/luki/aqdash/internal/store"
)

type idleSource struct{}

func (idleSource) Read(ctx context.Context) (sensor.Snapshot, error) {
	<-ctx.Done()
	return sensor.Snapshot{}, ctx.Err()
}

func (idleSource) Close() error { return nil }

func newModel(t *testing.T, opts Options) Model {
	t.Helper()
	return New(context.Background(), idleSource{}, opts)
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func snap(at time.Time) snapshotMsg {
	return snapshotMsg(sensor.Snapshot{
		HardwareID: "board-1",
		Time:       at,
		Readings: []sensor.Reading{
			{Module: "thv", Metric: "temperature", Value: 22.5},
			{Module: "thv", Metric: "humidity", Value: 41},
			{Module: "co2", Metric: "co2", Value: 650},
		},
	})
}

func temperatureChart(t *testing.T, m Model) *chart.TermChart {
	t.Helper()
	c, ok := m.renderer.Chart("temperatureChart")
	if !ok {
		t.Fatal("temperature chart not shown")
	}
	return c
}

func TestNewShowsAllCharts(t *testing.T) {
	m := newModel(t, Options{})
	if got := len(m.renderer.Charts()); got != len(chart.DefaultGroups()) {
		t.Errorf("charts: got %d, want %d", got, len(chart.DefaultGroups()))
	}
	if m.err != nil {
		t.Errorf("unexpected error: %v", m.err)
	}
}

func TestTickUpdatesCharts(t *testing.T) {
	m := newModel(t, Options{Window: time.Minute})
	now := time.Now()

	m, cmd := step(t, m, snap(now))
	if cmd == nil {
		t.Error("snapshot should schedule the next read")
	}
	c := temperatureChart(t, m)
	if len(c.Config().Data.Datasets[0].Data) != 0 {
		t.Fatal("chart changed before tick")
	}

	m, _ = step(t, m, tickMsg(now))
	ds := c.Config().Data.Datasets
	if len(ds[0].Data) != 1 || ds[0].Data[0].Y != 22.5 {
		t.Errorf("temperature slot: %+v", ds[0].Data)
	}
	if len(ds[1].Data) != 1 || ds[1].Data[0].Y != 41 {
		t.Errorf("humidity slot: %+v", ds[1].Data)
	}
	if c.Frames() != 1 {
		t.Errorf("frames: got %d", c.Frames())
	}

	// the point ages out of the window
	m, _ = step(t, m, tickMsg(now.Add(2*time.Minute)))
	if got := len(c.Config().Data.Datasets[0].Data); got != 0 {
		t.Errorf("aged point still charted: %d points", got)
	}
}

func TestPause(t *testing.T) {
	m := newModel(t, Options{})
	m, _ = step(t, m, key("p"))
	if !m.paused {
		t.Fatal("p did not pause")
	}
	m, _ = step(t, m, snap(time.Now()))
	m, _ = step(t, m, tickMsg(time.Now()))
	if temperatureChart(t, m).Frames() != 0 {
		t.Error("paused monitor updated charts")
	}
}

func TestReshowKey(t *testing.T) {
	m := newModel(t, Options{})
	now := time.Now()
	m, _ = step(t, m, snap(now))
	before := temperatureChart(t, m)

	m, _ = step(t, m, key("r"))
	after := temperatureChart(t, m)
	if before == after {
		t.Fatal("r did not rebuild the chart")
	}
	if before.Alive() {
		t.Error("old chart still alive")
	}
	if got := len(after.Config().Data.Datasets[0].Data); got != 1 {
		t.Errorf("rebuilt chart should carry history, got %d points", got)
	}
}

func TestQuit(t *testing.T) {
	dir := t.TempDir()
	ds, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	m := newModel(t, Options{Store: ds})
	m, _ = step(t, m, snap(time.Now()))
	m, _ = step(t, m, csvTickMsg(time.Now()))

	m, cmd := step(t, m, key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if len(m.renderer.Charts()) != 0 {
		t.Error("charts not destroyed on quit")
	}

	days, err := store.ListDays(dir)
	if err != nil || len(days) != 1 {
		t.Errorf("snapshot not logged: %v %v", days, err)
	}
}

func TestView(t *testing.T) {
	m := newModel(t, Options{})
	if got := m.View(); !strings.Contains(got, "Initializing") {
		t.Errorf("view before size: %q", got)
	}

	m, _ = step(t, m, tea.WindowSizeMsg{Width: 160, Height: 200})
	if !strings.Contains(m.View(), "Waiting for sensor data") {
		t.Error("expected waiting message")
	}

	m, _ = step(t, m, snap(time.Now()))
	m, _ = step(t, m, tickMsg(time.Now()))
	view := m.View()
	for _, want := range []string{"AIR QUALITY MONITOR", "Temperature & Humidity", "CO2 (ppm)", "board-1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestCSVInterval(t *testing.T) {
	dir := t.TempDir()
	ds, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	m := newModel(t, Options{Store: ds, CSVInterval: time.Minute})
	if m.opts.CSVInterval != time.Minute {
		t.Errorf("csv interval: got %v", m.opts.CSVInterval)
	}

	// ticking before the first snapshot writes nothing
	m, cmd := step(t, m, csvTickMsg(time.Now()))
	if cmd == nil {
		t.Error("csv tick should schedule the next one")
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		m, _ = step(t, m, snap(now.Add(time.Duration(i)*time.Second)))
	}
	if days, _ := store.ListDays(dir); len(days) != 0 {
		t.Fatalf("snapshots logged before csv tick: %v", days)
	}

	m, _ = step(t, m, csvTickMsg(now))
	ds.Close()
	days, err := store.ListDays(dir)
	if err != nil || len(days) != 1 {
		t.Fatalf("days: %v %v", days, err)
	}
	records, err := store.LoadDay(dir, days[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("rows: got %d, want 1", len(records))
	}
	if got := records[0].Time.Unix(); got != now.Add(2*time.Second).Unix() {
		t.Errorf("logged row should be the latest snapshot, got %d", got)
	}
}

func TestLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dir := t.TempDir()
	ds, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	m := newModel(t, Options{Store: ds, Log: zap.New(core)})

	m, _ = step(t, m, errMsg{errors.New("dial tcp: connection refused")})
	if got := logs.FilterMessage("source read failed").Len(); got != 1 {
		t.Errorf("source errors logged: got %d, want 1", got)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	m, _ = step(t, m, snap(time.Now()))
	m, _ = step(t, m, csvTickMsg(time.Now()))
	if m.err == nil {
		t.Error("write failure not shown")
	}
	entries := logs.FilterMessage("csv write failed").All()
	if len(entries) != 1 {
		t.Fatalf("csv errors logged: got %d, want 1", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("level: got %v", entries[0].Level)
	}
}
