// Package config holds the host tools' YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tickmux/host/serial"
)

// Config represents the host configuration.
type Config struct {
	Serial  serial.Config `yaml:"serial"`
	Log     LogConfig     `yaml:"log"`
	Monitor MonitorConfig `yaml:"monitor"`
	Sim     SimConfig     `yaml:"sim"`
}

// LogConfig contains logging options.
type LogConfig struct {
	Level      string  `yaml:"level"`        // trace, debug, info, warn, error
	Console    bool    `yaml:"console"`      // human readable instead of JSON
	WarnPerSec float64 `yaml:"warn_per_sec"` // sustained rate of repeated warnings
	WarnBurst  int     `yaml:"warn_burst"`
}

// MonitorConfig contains telemetry monitor options.
type MonitorConfig struct {
	StatusInterval time.Duration `yaml:"status_interval"` // how often to request 's', 0 disables
	ReadBuffer     int           `yaml:"read_buffer"`
}

// SimConfig contains simulator options.
type SimConfig struct {
	ClockHz   uint32        `yaml:"clock_hz"`   // simulated base clock
	TimeScale float64       `yaml:"time_scale"` // >1 runs faster than real time
	Duration  time.Duration `yaml:"duration"`   // 0 runs until interrupted
	Ambient   uint8         `yaml:"ambient_raw"`
	Coil      uint8         `yaml:"coil_raw"`
	Humidity  uint8         `yaml:"humidity_raw"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Serial: *serial.DefaultConfig("/dev/ttyUSB0"),
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			WarnPerSec: 1,
			WarnBurst:  5,
		},
		Monitor: MonitorConfig{
			StatusInterval: 10 * time.Second,
			ReadBuffer:     1024,
		},
		Sim: SimConfig{
			ClockHz:   1000000,
			TimeScale: 1,
			Ambient:   150,
			Coil:      120,
			Humidity:  140,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; missing fields are filled from them.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Device == "" {
		c.Serial.Device = def.Serial.Device
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.WarnPerSec <= 0 {
		c.Log.WarnPerSec = def.Log.WarnPerSec
	}
	if c.Log.WarnBurst <= 0 {
		c.Log.WarnBurst = def.Log.WarnBurst
	}

	if c.Monitor.ReadBuffer <= 0 {
		c.Monitor.ReadBuffer = def.Monitor.ReadBuffer
	}

	if c.Sim.ClockHz == 0 {
		c.Sim.ClockHz = def.Sim.ClockHz
	}
	if c.Sim.TimeScale <= 0 {
		c.Sim.TimeScale = def.Sim.TimeScale
	}
}
