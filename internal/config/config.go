// Package config loads the dashboard configuration from a TOML file, an
// optional .env file and AQ_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is where the sensor board keeps its configuration.
const DefaultPath = "/boot/aq/aq.toml"

// Duration is a time.Duration read from strings such as "5s" or "30m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full application configuration.
type Config struct {
	ESDK       ESDK                   `toml:"ESDK"`
	Dashboard  Dashboard              `toml:"dashboard"`
	Source     Source                 `toml:"source"`
	CSV        CSV                    `toml:"csv"`
	MQTT       MQTT                   `toml:"mqtt"`
	Prometheus map[string]RemoteWrite `toml:"prometheus"` // endpoint name -> settings
}

// ESDK holds board-wide settings.
type ESDK struct {
	Debug        bool   `toml:"debug"`
	FriendlyName string `toml:"friendlyname"`
}

// Dashboard configures the chart server.
type Dashboard struct {
	Listen         string   `toml:"listen"`
	Window         Duration `toml:"window"`
	UpdateInterval Duration `toml:"update_interval"`
	HistorySize    int      `toml:"history_size"`
}

// Source selects where snapshots come from.
type Source struct {
	URL      string   `toml:"url"`
	Simulate bool     `toml:"simulate"`
	Interval Duration `toml:"interval"`
}

// CSV configures the CSV logger.
type CSV struct {
	Enabled  bool     `toml:"enabled"`
	Dir      string   `toml:"dir"`
	Interval Duration `toml:"interval"`
}

// MQTT configures the MQTT publisher.
type MQTT struct {
	Enabled   bool     `toml:"enabled"`
	Broker    string   `toml:"broker"`
	Port      int      `toml:"port"`
	ClientID  string   `toml:"client_id"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	BaseTopic string   `toml:"basetopic"`
	Interval  Duration `toml:"interval"`
}

// RemoteWrite configures one Prometheus remote write endpoint. Instance and
// Key are the basic auth credentials.
type RemoteWrite struct {
	URL      string   `toml:"url"`
	Instance string   `toml:"instance"`
	Key      string   `toml:"key"`
	Interval Duration `toml:"interval"`
	Location string   `toml:"location"`
	Project  string   `toml:"project"`
	Tag      string   `toml:"tag"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Dashboard: Dashboard{
			Listen:         ":8080",
			Window:         Duration{30 * time.Minute},
			UpdateInterval: Duration{5 * time.Second},
			HistorySize:    3600,
		},
		Source: Source{
			URL:      "ws://localhost:8765",
			Interval: Duration{time.Second},
		},
		CSV: CSV{
			Dir:      "/aq/data",
			Interval: Duration{30 * time.Second},
		},
		MQTT: MQTT{
			Port:      1883,
			BaseTopic: "aq",
			Interval:  Duration{5 * time.Second},
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is the default location. The .env file in the working directory is
// loaded if present, then AQ_* variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !(errors.Is(err, os.ErrNotExist) && path == DefaultPath) {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}
	duration := func(key string, dst *Duration) error {
		if v := getenv(key); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	}

	str("AQ_LISTEN", &c.Dashboard.Listen)
	str("AQ_SOURCE_URL", &c.Source.URL)
	str("AQ_CSV_DIR", &c.CSV.Dir)
	str("AQ_MQTT_BROKER", &c.MQTT.Broker)
	str("AQ_MQTT_USERNAME", &c.MQTT.Username)
	str("AQ_MQTT_PASSWORD", &c.MQTT.Password)
	str("AQ_MQTT_BASETOPIC", &c.MQTT.BaseTopic)
	str("AQ_FRIENDLYNAME", &c.ESDK.FriendlyName)

	for key, dst := range map[string]*bool{
		"AQ_DEBUG":        &c.ESDK.Debug,
		"AQ_SIMULATE":     &c.Source.Simulate,
		"AQ_CSV_ENABLED":  &c.CSV.Enabled,
		"AQ_MQTT_ENABLED": &c.MQTT.Enabled,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*Duration{
		"AQ_WINDOW":          &c.Dashboard.Window,
		"AQ_UPDATE_INTERVAL": &c.Dashboard.UpdateInterval,
	} {
		if err := duration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration for values the collector cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Dashboard.Window.Duration <= 0 {
		errs = append(errs, errors.New("dashboard.window must be positive"))
	}
	if c.Dashboard.UpdateInterval.Duration <= 0 {
		errs = append(errs, errors.New("dashboard.update_interval must be positive"))
	}
	if c.Dashboard.HistorySize <= 0 {
		errs = append(errs, errors.New("dashboard.history_size must be positive"))
	}
	if !c.Source.Simulate && c.Source.URL == "" {
		errs = append(errs, errors.New("source.url is required unless source.simulate is set"))
	}
	if c.CSV.Enabled && c.CSV.Interval.Duration <= 0 {
		errs = append(errs, errors.New("csv.interval must be positive"))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if c.MQTT.Interval.Duration <= 0 {
			errs = append(errs, errors.New("mqtt.interval must be positive"))
		}
	}
	for name, rw := range c.Prometheus {
		if rw.URL == "" {
			errs = append(errs, fmt.Errorf("prometheus.%s.url is required", name))
		}
		if rw.Interval.Duration < 0 {
			errs = append(errs, fmt.Errorf("prometheus.%s.interval must not be negative", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
