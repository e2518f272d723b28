// Package export renders chart configurations to standalone artifacts:
// an interactive ECharts HTML page and a static PNG.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/luki/aqdash/internal/chart"
)

// ErrNotEnoughData is returned by PNG when no series spans two distinct
// timestamps.
var ErrNotEnoughData = errors.New("export: not enough data to plot")

// HTML writes cfg as a self-contained ECharts line chart page.
func HTML(w io.Writer, title string, cfg *chart.Config) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Theme:     "macarons",
			Width:     "1000px",
			Height:    "480px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: time.Now().Format("2006-01-02 15:04:05"),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(!cfg.Options.Scales.Y.BeginAtZero)}),
	)

	for _, ds := range cfg.Data.Datasets {
		items := make([]opts.LineData, 0, len(ds.Data))
		for _, p := range ds.Data {
			items = append(items, opts.LineData{Value: []interface{}{p.X.UnixMilli(), p.Y}})
		}
		line.AddSeries(ds.Label, items,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(ds.PointRadius > 0)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: ds.BorderColor}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: ds.BackgroundColor}),
		)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// PNG writes cfg as a width x height PNG line chart.
func PNG(w io.Writer, title string, cfg *chart.Config, width, height int) error {
	var (
		series     []gochart.Series
		first      time.Time
		last       time.Time
		ymin, ymax = math.MaxFloat64, -math.MaxFloat64
	)
	for _, ds := range cfg.Data.Datasets {
		if len(ds.Data) == 0 {
			continue
		}
		ts := gochart.TimeSeries{
			Name:    ds.Label,
			XValues: make([]time.Time, len(ds.Data)),
			YValues: make([]float64, len(ds.Data)),
			Style: gochart.Style{
				StrokeColor: hexColor(ds.BorderColor),
				StrokeWidth: 2,
			},
		}
		for i, p := range ds.Data {
			ts.XValues[i] = p.X
			ts.YValues[i] = p.Y
			ymin = math.Min(ymin, p.Y)
			ymax = math.Max(ymax, p.Y)
		}
		if first.IsZero() || ts.XValues[0].Before(first) {
			first = ts.XValues[0]
		}
		if end := ts.XValues[len(ts.XValues)-1]; end.After(last) {
			last = end
		}
		series = append(series, ts)
	}
	if len(series) == 0 || !last.After(first) {
		return ErrNotEnoughData
	}

	yr := yRange(ymin, ymax, cfg.Options.Scales.Y.BeginAtZero)
	ch := gochart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat("15:04"),
		},
		YAxis:  gochart.YAxis{Range: &yr},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return nil
}

func yRange(min, max float64, fromZero bool) gochart.ContinuousRange {
	if fromZero && min > 0 {
		min = 0
	}
	if max <= min {
		max = min + 1
	}
	return gochart.ContinuousRange{Min: min, Max: max + (max-min)*0.05}
}

func hexColor(s string) drawing.Color {
	s = strings.TrimPrefix(s, "#")
	if s == "" {
		return drawing.ColorBlack
	}
	return drawing.ColorFromHex(s)
}
