package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/store"
)

func testRecords() []store.Record {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	var out []store.Record
	for i := 0; i < 10; i++ {
		out = append(out, store.Record{
			Time: start.Add(time.Duration(i) * 30 * time.Second),
			Values: map[string]float64{
				"co2":         float64(600 + i*100), // 600..1500
				"temperature": 21,
			},
		})
	}
	return out
}

func TestSummarize(t *testing.T) {
	s := Summarize("2024-05-01", testRecords())

	if s.Rows != 10 || len(s.Stats) != 2 {
		t.Fatalf("rows=%d stats=%d", s.Rows, len(s.Stats))
	}
	// CSV column order: temperature before co2
	if s.Stats[0].Key != "temperature" || s.Stats[1].Key != "co2" {
		t.Errorf("order: %s, %s", s.Stats[0].Key, s.Stats[1].Key)
	}

	co2 := s.Stats[1]
	if co2.Samples != 10 || co2.Min != 600 || co2.Max != 1500 || co2.Avg != 1050 {
		t.Errorf("co2 stats: %+v", co2)
	}
	if co2.P50 < 900 || co2.P50 > 1200 {
		t.Errorf("co2 p50 out of range: %v", co2.P50)
	}
	if co2.Warn != 1000 || co2.Crit != 2000 {
		t.Errorf("co2 levels: warn=%v crit=%v", co2.Warn, co2.Crit)
	}
	if got := s.To.Sub(s.From); got != 270*time.Second {
		t.Errorf("period: %v", got)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("2024-05-01", nil)
	var buf bytes.Buffer
	Print(&buf, s)
	if !strings.Contains(buf.String(), "no data") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, Summarize("2024-05-01", testRecords()))
	out := buf.String()
	for _, want := range []string{"2024-05-01", "Metric", "P95", "CO2", "1500.0", "600.0", "ppm"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteXLSX(t *testing.T) {
	records := testRecords()
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteXLSX(path, Summarize("2024-05-01", records), records); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "Metric" || rows[2][1] != "co2" {
		t.Errorf("summary sheet: %v", rows)
	}

	rows, err = f.GetRows("Readings")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 11 {
		t.Fatalf("readings sheet: %d rows", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[1][0] != "2024-05-01 08:00:00" {
		t.Errorf("readings header/first row: %v / %v", rows[0], rows[1])
	}
}

func TestPrintGroups(t *testing.T) {
	var buf bytes.Buffer
	PrintGroups(&buf, chart.DefaultGroups())
	out := buf.String()
	for _, want := range []string{"GROUP", "temperatureChart", "pm2.5", "#608dc4", "Formaldehyde (ppb)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
