package viewer

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/luki/aqdash/internal/sensor"
	"github.com/luki/aqdash/internal/store"
)

// writeDay logs n snapshots one minute apart starting at start.
func writeDay(t *testing.T, dir string, start time.Time, n int) {
	t.Helper()
	ds, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	for i := 0; i < n; i++ {
		snap := sensor.Snapshot{
			Time: start.Add(time.Duration(i) * time.Minute),
			Readings: []sensor.Reading{
				{Metric: "temperature", Value: 20 + float64(i)},
				{Metric: "co2", Value: 500 + float64(i*10)},
			},
		}
		if err := ds.Write(snap); err != nil {
			t.Fatal(err)
		}
	}
}

func loadModel(t *testing.T, dir string) model {
	t.Helper()
	days, err := store.ListDays(dir)
	if err != nil {
		t.Fatal(err)
	}
	return newModel(dir, days)
}

func press(m model, k string) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	return next.(model)
}

func pointsIn(t *testing.T, m model, mount string, slot int) int {
	t.Helper()
	c, ok := m.renderer.Chart(mount)
	if !ok {
		t.Fatalf("%s not shown", mount)
	}
	return len(c.Config().Data.Datasets[slot].Data)
}

func TestLoadDayShowsWindowAtEnd(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), 5)

	m := loadModel(t, dir)
	if m.err != nil {
		t.Fatal(m.err)
	}
	if m.cursor != 4 {
		t.Errorf("cursor: got %d, want 4", m.cursor)
	}
	if got := pointsIn(t, m, "temperatureChart", 0); got != 5 {
		t.Errorf("temperature points: got %d, want 5", got)
	}
	if got := pointsIn(t, m, "temperatureChart", 1); got != 0 {
		t.Errorf("humidity points: got %d, want 0", got)
	}
}

func TestScrub(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), 5)
	m := loadModel(t, dir)

	m = press(m, "h")
	m = press(m, "h")
	if m.cursor != 2 {
		t.Fatalf("cursor: got %d, want 2", m.cursor)
	}
	if got := pointsIn(t, m, "co2Chart", 0); got != 3 {
		t.Errorf("co2 window at cursor 2: got %d points, want 3", got)
	}

	m = press(m, "L")
	if m.cursor != 4 {
		t.Errorf("skip forward should clamp to the last row, got %d", m.cursor)
	}
	m = press(m, "H")
	if m.cursor != 0 || pointsIn(t, m, "co2Chart", 0) != 1 {
		t.Errorf("skip back: cursor %d", m.cursor)
	}
}

func TestMouseWheel(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), 5)
	m := loadModel(t, dir)

	wheel := func(m model, b tea.MouseButton) model {
		next, _ := m.Update(tea.MouseMsg{Button: b, Action: tea.MouseActionPress})
		return next.(model)
	}

	m = wheel(m, tea.MouseButtonWheelDown)
	m = wheel(m, tea.MouseButtonWheelDown)
	if m.scroll != 2 {
		t.Errorf("scroll after wheel down: got %d, want 2", m.scroll)
	}
	m = wheel(m, tea.MouseButtonWheelUp)
	if m.scroll != 1 {
		t.Errorf("scroll after wheel up: got %d, want 1", m.scroll)
	}

	m = wheel(m, tea.MouseButtonWheelLeft)
	if m.cursor != 3 || pointsIn(t, m, "co2Chart", 0) != 4 {
		t.Errorf("wheel left should scrub back one row, cursor %d", m.cursor)
	}
	m = wheel(m, tea.MouseButtonWheelRight)
	if m.cursor != 4 {
		t.Errorf("wheel right: cursor %d", m.cursor)
	}

	// releases are ignored
	next, _ := m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionRelease})
	if next.(model).scroll != 1 {
		t.Error("wheel release changed scroll")
	}
}

func TestWindowSize(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local), windowSize+20)
	m := loadModel(t, dir)

	if got := pointsIn(t, m, "temperatureChart", 0); got != windowSize {
		t.Errorf("window: got %d points, want %d", got, windowSize)
	}
}

func TestDayNavigation(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), 3)
	writeDay(t, dir, time.Date(2024, 5, 2, 10, 0, 0, 0, time.Local), 6)

	m := loadModel(t, dir)
	if m.days[m.dayIdx] != "2024-05-02" || len(m.records) != 6 {
		t.Fatalf("should open the newest day, got %s with %d rows", m.days[m.dayIdx], len(m.records))
	}

	m = press(m, "[")
	if m.days[m.dayIdx] != "2024-05-01" || len(m.records) != 3 {
		t.Errorf("[ should go to the previous day, got %s", m.days[m.dayIdx])
	}
	if got := pointsIn(t, m, "temperatureChart", 0); got != 3 {
		t.Errorf("charts not reshown for the new day: %d points", got)
	}

	m = press(m, "]")
	if m.days[m.dayIdx] != "2024-05-02" {
		t.Errorf("] should return to the newer day, got %s", m.days[m.dayIdx])
	}
}

func TestView(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), 3)
	m := loadModel(t, dir)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 200})
	view := next.(model).View()
	for _, want := range []string{"AIR QUALITY HISTORY", "2024-05-01", "10:02:00", "CO2 (ppm)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRunNoData(t *testing.T) {
	if err := Run(t.TempDir()); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
