package chart

// GroupID identifies a metric group.
type GroupID string

const (
	GroupTemperature  GroupID = "temperature"
	GroupVOC          GroupID = "voc"
	GroupCO2          GroupID = "co2"
	GroupPM           GroupID = "pm"
	GroupNO2          GroupID = "no2"
	GroupRadiation    GroupID = "radiation"
	GroupFormaldehyde GroupID = "formaldehyde"
)

// SeriesDef fixes the label and colour of one series in a group.
type SeriesDef struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Color string  `json:"color"`
	Warn  float64 `json:"warn,omitempty"`
	Crit  float64 `json:"crit,omitempty"`
}

// Descriptor is a named bundle of series sharing one chart and one mount point.
type Descriptor struct {
	ID     GroupID     `json:"id"`
	Mount  string      `json:"mount"`
	Title  string      `json:"title"`
	Series []SeriesDef `json:"series"`
}

// Keys returns the series keys of the group in slot order.
func (d Descriptor) Keys() []string {
	keys := make([]string, len(d.Series))
	for i, s := range d.Series {
		keys[i] = s.Key
	}
	return keys
}

// DefaultGroups returns the dashboard's metric groups in display order.
func DefaultGroups() []Descriptor {
	return []Descriptor{
		{
			ID: GroupTemperature, Mount: "temperatureChart", Title: "Temperature & Humidity",
			Series: []SeriesDef{
				{Key: "temperature", Label: "Temperature (°C)", Color: "#ffa500", Warn: 28, Crit: 35},
				{Key: "humidity", Label: "Humidity (%)", Color: "#608dc4", Warn: 70, Crit: 85},
			},
		},
		{
			ID: GroupVOC, Mount: "vocChart", Title: "VOC",
			Series: []SeriesDef{
				{Key: "vocIndex", Label: "VOC Index", Color: "#9b59b6", Warn: 150, Crit: 250},
			},
		},
		{
			ID: GroupCO2, Mount: "co2Chart", Title: "CO2",
			Series: []SeriesDef{
				{Key: "co2", Label: "CO2 (ppm)", Color: "#2ecc71", Warn: 1000, Crit: 2000},
			},
		},
		{
			ID: GroupPM, Mount: "pmChart", Title: "Particulate Matter",
			Series: []SeriesDef{
				{Key: "pm1.0", Label: "PM 1.0", Color: "#f1c40f", Warn: 25, Crit: 50},
				{Key: "pm2.5", Label: "PM 2.5", Color: "#e67e22", Warn: 25, Crit: 50},
				{Key: "pm4.0", Label: "PM 4.0", Color: "#e74c3c", Warn: 50, Crit: 100},
				{Key: "pm10", Label: "PM 10", Color: "#8e44ad", Warn: 50, Crit: 100},
			},
		},
		{
			ID: GroupNO2, Mount: "no2Chart", Title: "NO2",
			Series: []SeriesDef{
				{Key: "no2", Label: "NO2 (ppb)", Color: "#795548", Warn: 53, Crit: 100},
			},
		},
		{
			ID: GroupRadiation, Mount: "radiationChart", Title: "Radiation",
			Series: []SeriesDef{
				{Key: "cpm", Label: "Radiation (CPM)", Color: "#16a085", Warn: 100, Crit: 300},
			},
		},
		{
			ID: GroupFormaldehyde, Mount: "formaldehydeChart", Title: "Formaldehyde",
			Series: []SeriesDef{
				{Key: "formaldehyde", Label: "Formaldehyde (ppb)", Color: "#c0392b", Warn: 80, Crit: 100},
			},
		},
	}
}
