package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/radsafe/radman-monitor/internal/radhaz"
	"github.com/radsafe/radman-monitor/internal/serialport"
)

const defaultMaxBatchSize = 100

// Config represents the main application configuration
type Config struct {
	Settings Settings          `yaml:"settings"`
	Device   serialport.Config `yaml:"device"`
	Monitor  MonitorConfig     `yaml:"monitor"`
	Storage  StorageConfig     `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SlogLevel maps the configured log level onto slog.
func (s Settings) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s.LogLevel)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s.LogLevel)
}

// MonitorConfig selects the exposure standard and emitter frequency used
// for absolute conversion.
type MonitorConfig struct {
	// Standard is a registered standard identifier. Empty selects the
	// probe's baked-in standard when the probe is shaped, otherwise no
	// standard.
	Standard string `yaml:"standard"`

	// FrequencyMHz is the dominant emitter frequency. Unset disables
	// absolute conversion; readings then carry percentages only.
	FrequencyMHz *float64 `yaml:"frequencyMHz"`

	HandshakeTimeout serialport.TimeDuration `yaml:"handshakeTimeout"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// LoadConfig reads, defaults and validates the application configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	config.Device.ApplyDefaults()
	if config.Storage.MaxBatchSize <= 0 {
		config.Storage.MaxBatchSize = defaultMaxBatchSize
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if _, err := c.Settings.SlogLevel(); err != nil {
		return err
	}
	if err := c.Device.Validate(); err != nil {
		return err
	}
	if c.Monitor.Standard != "" {
		if _, err := radhaz.Lookup(c.Monitor.Standard); err != nil {
			return fmt.Errorf("monitor config: %w (known: %s)", err, strings.Join(radhaz.Standards(), ", "))
		}
	}
	if c.Monitor.FrequencyMHz != nil && *c.Monitor.FrequencyMHz <= 0 {
		return fmt.Errorf("monitor config: frequency must be positive: %f MHz", *c.Monitor.FrequencyMHz)
	}
	return nil
}
