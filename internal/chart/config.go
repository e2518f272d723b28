package chart

import "github.com/luki/aqdash/internal/history"

// Config is a renderer-neutral chart configuration. Its JSON form is a
// Chart.js line chart configuration.
type Config struct {
	Type    string    `json:"type"`
	Data    ChartData `json:"data"`
	Options Options   `json:"options"`
}

// ChartData holds the chart's datasets in slot order.
type ChartData struct {
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one rendered series.
type Dataset struct {
	Key             string         `json:"key"`
	Label           string         `json:"label"`
	Data            history.Series `json:"data"`
	BorderColor     string         `json:"borderColor"`
	BackgroundColor string         `json:"backgroundColor"`
	PointRadius     int            `json:"pointRadius"`

	// Level bands used by terminal renderers; zero means unset.
	Warn float64 `json:"-"`
	Crit float64 `json:"-"`
}

// Options carries the axis configuration.
type Options struct {
	Scales Scales `json:"scales"`
}

// Scales holds the x and y axes.
type Scales struct {
	X Axis `json:"x"`
	Y Axis `json:"y"`
}

// Axis is a single chart axis.
type Axis struct {
	Type        string     `json:"type,omitempty"`
	Time        *TimeScale `json:"time,omitempty"`
	BeginAtZero bool       `json:"beginAtZero,omitempty"`
}

// TimeScale sets the tick granularity of a time axis.
type TimeScale struct {
	Unit string `json:"unit"`
}

// NewConfig builds the fixed line-chart configuration for a group and seeds
// each dataset with the matching series from data. Keys missing from data
// start empty.
func NewConfig(d Descriptor, data Data) *Config {
	cfg := &Config{
		Type: "line",
		Options: Options{
			Scales: Scales{
				X: Axis{Type: "time", Time: &TimeScale{Unit: "minute"}},
				Y: Axis{BeginAtZero: true},
			},
		},
	}
	cfg.Data.Datasets = make([]Dataset, 0, len(d.Series))
	for _, s := range d.Series {
		series := data[s.Key]
		if series == nil {
			series = history.Series{}
		}
		cfg.Data.Datasets = append(cfg.Data.Datasets, Dataset{
			Key:             s.Key,
			Label:           s.Label,
			Data:            series,
			BorderColor:     s.Color,
			BackgroundColor: s.Color,
			PointRadius:     0,
			Warn:            s.Warn,
			Crit:            s.Crit,
		})
	}
	return cfg
}
