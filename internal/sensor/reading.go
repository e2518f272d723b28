// Package sensor models environmental sensor snapshots as pushed by the
// sensor board, and provides sources that deliver them.
package sensor

import (
	"sort"
	"time"
)

// Reading is a single metric value reported by one sensor module.
type Reading struct {
	Module string  `json:"module"` // e.g. "thv"
	Sensor string  `json:"sensor"` // e.g. "THV0.2"
	Metric string  `json:"metric"` // e.g. "temperature"
	Value  float64 `json:"value"`
}

// Key returns the series key for this reading. Metric names are unique
// across modules on the board.
func (r Reading) Key() string {
	return r.Metric
}

// Snapshot is the full set of readings taken at one instant.
type Snapshot struct {
	HardwareID string    `json:"hardwareId,omitempty"`
	Geohash    string    `json:"geohash,omitempty"`
	Time       time.Time `json:"time"`
	Readings   []Reading `json:"readings"`
}

// Values returns the snapshot's readings keyed by metric.
func (s Snapshot) Values() map[string]float64 {
	out := make(map[string]float64, len(s.Readings))
	for _, r := range s.Readings {
		out[r.Key()] = r.Value
	}
	return out
}

// Empty reports whether the snapshot carries no readings.
func (s Snapshot) Empty() bool {
	return len(s.Readings) == 0
}

func sortReadings(rs []Reading) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Module != rs[j].Module {
			return rs[i].Module < rs[j].Module
		}
		return rs[i].Metric < rs[j].Metric
	})
}
