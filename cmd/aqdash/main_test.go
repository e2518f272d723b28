package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/luki/aqdash/internal/sensor"
	"github.com/luki/aqdash/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGroupsCommand(t *testing.T) {
	out, err := run(t, "groups")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "radiationChart") || !strings.Contains(out, "cpm") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	ds, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		ds.Write(sensor.Snapshot{
			Time:     start.Add(time.Duration(i) * time.Minute),
			Readings: []sensor.Reading{{Metric: "no2", Value: 10 + float64(i)}},
		})
	}
	ds.Close()

	out, err := run(t, "report", "--dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"2024-05-01", "NO2", "12.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReportCommandNoLogs(t *testing.T) {
	if _, err := run(t, "report", "--dir", t.TempDir()); err == nil {
		t.Error("expected error for empty log directory")
	}
}

func TestDashboardURL(t *testing.T) {
	tests := map[string]string{
		":8080":         "http://localhost:8080",
		"0.0.0.0:9000":  "http://0.0.0.0:9000",
		"aq.local:8080": "http://aq.local:8080",
	}
	for listen, want := range tests {
		if got := dashboardURL(listen); got != want {
			t.Errorf("dashboardURL(%q) = %q, want %q", listen, got, want)
		}
	}
}
