package sensor

// Metric describes a known metric: its series key, display name and unit.
type Metric struct {
	Key  string
	Name string
	Unit string
}

// Metrics lists every metric the dashboard knows about, in CSV column order.
var Metrics = []Metric{
	{"temperature", "Temperature", "°C"},
	{"humidity", "Humidity", "%"},
	{"vocIndex", "VOC Index", ""},
	{"co2", "CO2", "ppm"},
	{"pm1.0", "PM 1.0", "µg/m³"},
	{"pm2.5", "PM 2.5", "µg/m³"},
	{"pm4.0", "PM 4.0", "µg/m³"},
	{"pm10", "PM 10", "µg/m³"},
	{"no2", "NO2", "ppb"},
	{"cpm", "Radiation", "CPM"},
	{"formaldehyde", "Formaldehyde", "ppb"},
	{"motion", "Motion", ""}, // PIR plugin, 0 or 1
}

// Lookup returns the metric with the given key.
func Lookup(key string) (Metric, bool) {
	for _, m := range Metrics {
		if m.Key == key {
			return m, true
		}
	}
	return Metric{}, false
}

// FriendlyName returns a human-readable name for a metric key.
func FriendlyName(key string) string {
	if m, ok := Lookup(key); ok {
		return m.Name
	}
	return key
}

// Unit returns the unit of a metric key, or "" if unknown.
func Unit(key string) string {
	m, _ := Lookup(key)
	return m.Unit
}
