// Package remotewrite pushes sensor snapshots to a Prometheus remote write
// endpoint as snappy-compressed protobuf.
package remotewrite

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/config"
	"github.com/luki/aqdash/internal/sensor"
)

// MinInterval is the shortest time allowed between two writes to one
// endpoint.
const MinInterval = 300 * time.Second

const requestTimeout = 30 * time.Second

// Interval returns d raised to MinInterval.
func Interval(d time.Duration) time.Duration {
	return max(d, MinInterval)
}

// MetricName maps a metric key to a valid Prometheus metric name.
func MetricName(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// Writer sends snapshots to one endpoint.
type Writer struct {
	name     string
	url      string
	instance string
	key      string
	interval time.Duration
	static   []prompb.Label // added to every series
	client   *http.Client
	log      *zap.Logger
}

// New creates a writer for the endpoint cfg. friendlyName labels every
// series along with the optional location, project and tag labels.
func New(name string, cfg config.RemoteWrite, friendlyName string, log *zap.Logger) *Writer {
	w := &Writer{
		name:     name,
		url:      cfg.URL,
		instance: cfg.Instance,
		key:      cfg.Key,
		interval: Interval(cfg.Interval.Duration),
		client:   &http.Client{Timeout: requestTimeout},
		log:      log,
	}
	for _, l := range []prompb.Label{
		{Name: "friendlyname", Value: friendlyName},
		{Name: "location", Value: cfg.Location},
		{Name: "project", Value: cfg.Project},
		{Name: "tag", Value: cfg.Tag},
	} {
		if l.Value != "" {
			w.static = append(w.static, l)
		}
	}
	return w
}

// Name returns the endpoint name from the config.
func (w *Writer) Name() string {
	return w.name
}

// Interval returns how often the writer should be called.
func (w *Writer) Interval() time.Duration {
	return w.interval
}

// Request builds the write request for snap: one series per reading,
// labelled with the metric name, geohash, hardware id, sensor type and
// the static labels. Labels with empty values are left out and every
// series' labels are sorted by name.
func Request(snap sensor.Snapshot, static []prompb.Label) *prompb.WriteRequest {
	ts := snap.Time.UnixMilli()
	req := &prompb.WriteRequest{Timeseries: make([]prompb.TimeSeries, 0, len(snap.Readings))}
	for _, r := range snap.Readings {
		labels := []prompb.Label{{Name: "__name__", Value: MetricName(r.Key())}}
		for _, l := range []prompb.Label{
			{Name: "geohash", Value: snap.Geohash},
			{Name: "hwid", Value: snap.HardwareID},
			{Name: "sensor", Value: r.Sensor},
		} {
			if l.Value != "" {
				labels = append(labels, l)
			}
		}
		labels = append(labels, static...)
		sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

		req.Timeseries = append(req.Timeseries, prompb.TimeSeries{
			Labels:  labels,
			Samples: []prompb.Sample{{Value: r.Value, Timestamp: ts}},
		})
	}
	return req
}

// Write encodes snap and posts it to the endpoint. Any status outside
// 2xx is an error.
func (w *Writer) Write(snap sensor.Snapshot) error {
	if snap.Time.IsZero() {
		snap.Time = time.Now()
	}
	raw, err := Request(snap, w.static).Marshal()
	if err != nil {
		return fmt.Errorf("encode write request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(snappy.Encode(nil, raw)))
	if err != nil {
		return fmt.Errorf("remote write %s: %w", w.name, err)
	}
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	req.Header.Set("User-Agent", "aqdash")
	if w.instance != "" {
		req.SetBasicAuth(w.instance, w.key)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote write %s: %w", w.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote write %s: %s: %s", w.name, resp.Status, bytes.TrimSpace(body))
	}
	io.Copy(io.Discard, resp.Body)

	w.log.Debug("remote write done",
		zap.String("endpoint", w.name),
		zap.Int("series", len(snap.Readings)))
	return nil
}
