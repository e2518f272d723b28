package sensor

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParseSnapshot decodes a sensor board payload of the form
//
//	{"hardwareId": "...", "geohash": "...",
//	 "thv": {"sensor": "THV0.2", "temperature": 21.3, "humidity": 48.1}, ...}
//
// Every object-valued key is a module; its numeric fields become readings.
// Non-numeric fields are ignored.
func ParseSnapshot(data []byte, t time.Time) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	snap := Snapshot{Time: t}
	for key, val := range raw {
		switch key {
		case "hardwareId":
			snap.HardwareID = decodeString(val)
			continue
		case "geohash":
			snap.Geohash = decodeString(val)
			continue
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(val, &fields); err != nil {
			continue
		}
		sensorType := decodeString(fields["sensor"])
		for metric, fv := range fields {
			if metric == "sensor" {
				continue
			}
			var v float64
			if err := json.Unmarshal(fv, &v); err != nil {
				continue
			}
			snap.Readings = append(snap.Readings, Reading{
				Module: key,
				Sensor: sensorType,
				Metric: metric,
				Value:  v,
			})
		}
	}

	sortReadings(snap.Readings)
	return snap, nil
}

func decodeString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
