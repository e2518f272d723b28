// Package report summarises logged sensor data: per-metric statistics for
// a day printed as a table, and an optional spreadsheet export.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/history"
	"github.com/luki/aqdash/internal/sensor"
	"github.com/luki/aqdash/internal/store"
)

// Stat holds the statistics of one metric over a day.
type Stat struct {
	Key     string
	Name    string
	Unit    string
	Samples int
	Min     float64
	Avg     float64
	P50     float64
	P95     float64
	Max     float64
	Warn    float64
	Crit    float64
}

// Summary is the report of one logged day.
type Summary struct {
	Day   string
	From  time.Time
	To    time.Time
	Rows  int
	Stats []Stat
}

// Summarize computes per-metric statistics over records. Metrics follow
// the CSV column order; metrics without samples are left out.
func Summarize(day string, records []store.Record) Summary {
	s := Summary{Day: day, Rows: len(records)}
	if len(records) == 0 {
		return s
	}

	h := history.NewStore(len(records))
	for _, r := range records {
		if s.From.IsZero() || r.Time.Before(s.From) {
			s.From = r.Time
		}
		if r.Time.After(s.To) {
			s.To = r.Time
		}
		for k, v := range r.Values {
			h.Record(k, v, r.Time)
		}
	}

	levels := seriesLevels()
	for _, m := range sensor.Metrics {
		b := h.Get(m.Key)
		if b == nil {
			continue
		}
		lv := levels[m.Key]
		s.Stats = append(s.Stats, Stat{
			Key:     m.Key,
			Name:    m.Name,
			Unit:    m.Unit,
			Samples: b.Samples(),
			Min:     b.Min,
			Avg:     b.Avg(),
			P50:     b.Quantile(0.5),
			P95:     b.Quantile(0.95),
			Max:     b.Peak,
			Warn:    lv.Warn,
			Crit:    lv.Crit,
		})
	}
	return s
}

func seriesLevels() map[string]chart.SeriesDef {
	out := make(map[string]chart.SeriesDef)
	for _, g := range chart.DefaultGroups() {
		for _, s := range g.Series {
			out[s.Key] = s
		}
	}
	return out
}

// Print writes the summary as a table. Values at or above a metric's warn
// or crit level are coloured.
func Print(w io.Writer, s Summary) {
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintf(w, "=== Air Quality Report %s ===\n", s.Day)
	if s.Rows == 0 {
		fmt.Fprintln(w, "  no data")
		return
	}
	fmt.Fprintf(w, "  Period : %s - %s\n", s.From.Format("15:04:05"), s.To.Format("15:04:05"))
	fmt.Fprintf(w, "  Rows   : %d\n\n", s.Rows)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Unit", "Samples", "Min", "Avg", "P50", "P95", "Max"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	for _, st := range s.Stats {
		table.Append([]string{
			st.Name,
			st.Unit,
			strconv.Itoa(st.Samples),
			formatLevel(st.Min, st),
			formatLevel(st.Avg, st),
			formatLevel(st.P50, st),
			formatLevel(st.P95, st),
			formatLevel(st.Max, st),
		})
	}
	table.Render()
}

func formatLevel(v float64, st Stat) string {
	text := strconv.FormatFloat(v, 'f', 1, 64)
	switch {
	case st.Crit > 0 && v >= st.Crit:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case st.Warn > 0 && v >= st.Warn:
		return color.YellowString(text)
	default:
		return text
	}
}

// WriteXLSX saves the summary and the raw rows to an Excel workbook with a
// "Summary" and a "Readings" sheet.
func WriteXLSX(path string, s Summary, records []store.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary, readings = "Summary", "Readings"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if _, err := f.NewSheet(readings); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	header := []interface{}{"Metric", "Key", "Unit", "Samples", "Min", "Avg", "P50", "P95", "Max"}
	if err := f.SetSheetRow(summary, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	for i, st := range s.Stats {
		row := []interface{}{st.Name, st.Key, st.Unit, st.Samples, st.Min, st.Avg, st.P50, st.P95, st.Max}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
	}

	cols := store.Columns()
	head := make([]interface{}, len(cols))
	for i, c := range cols {
		head[i] = c
	}
	if err := f.SetSheetRow(readings, "A1", &head); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	for i, r := range records {
		row := make([]interface{}, len(cols))
		row[0] = r.Time.Format(time.DateTime)
		for j, key := range cols[1:] {
			if v, ok := r.Values[key]; ok {
				row[j+1] = v
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(readings, cell, &row); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx save %s: %w", path, err)
	}
	return nil
}

// PrintGroups lists the chart groups and their series.
func PrintGroups(w io.Writer, groups []chart.Descriptor) {
	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("GROUP", "MOUNT", "SERIES", "LABEL", "COLOR", "WARN", "CRIT")
	for _, g := range groups {
		for i, s := range g.Series {
			id, mount := string(g.ID), g.Mount
			if i > 0 {
				id, mount = "", ""
			}
			t.AddLine(id, mount, s.Key, s.Label, s.Color, s.Warn, s.Crit)
		}
	}
	t.Print()
}
