// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete inkduod configuration.
type Config struct {
	Color     ColorConfig `yaml:"color"`
	Data      DataConfig  `yaml:"data"`
	OutputDir string      `yaml:"output_dir"`  // file-sink destination (default: ".")
	MockOnly  bool        `yaml:"mock_only"`   // skip hardware, use file sinks exclusively
	TickS     int         `yaml:"tick_s"`      // scheduler tick period in seconds (default: 10)
}

// ColorConfig configures the directly driven 6-color panel.
type ColorConfig struct {
	SPIPort          string `yaml:"spi_port"`           // empty for the default port
	DCPin            string `yaml:"dc_pin"`             // default: GPIO25
	RSTPin           string `yaml:"rst_pin"`            // optional
	BusyPin          string `yaml:"busy_pin"`           // optional
	Width            int    `yaml:"width"`              // default: 800
	Height           int    `yaml:"height"`             // default: 480
	RefreshIntervalS int    `yaml:"refresh_interval_s"` // default: 86400 (daily)
}

// DataConfig configures the monochrome panel fed over I2C.
type DataConfig struct {
	I2CBus         string `yaml:"i2c_bus"`         // empty for the default bus
	I2CAddr        uint16 `yaml:"i2c_addr"`        // default: 0x28
	CacheIntervalS int    `yaml:"cache_interval_s"` // upstream data freshness, default: 1800
	SendIntervalS  int    `yaml:"send_interval_s"`  // transport push period, default: 30
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Color: ColorConfig{
			DCPin:            "GPIO25",
			Width:            800,
			Height:           480,
			RefreshIntervalS: 86400,
		},
		Data: DataConfig{
			I2CAddr:        0x28,
			CacheIntervalS: 1800,
			SendIntervalS:  30,
		},
		OutputDir: ".",
		TickS:     10,
	}
}

// Load reads and validates a YAML configuration file. Missing fields fall
// back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.Color.Width <= 0 || c.Color.Width%2 != 0 {
		return fmt.Errorf("config: color.width must be even and positive, got %d", c.Color.Width)
	}
	if c.Color.Height <= 0 {
		return fmt.Errorf("config: color.height must be positive, got %d", c.Color.Height)
	}
	if c.Color.RefreshIntervalS <= 0 {
		return fmt.Errorf("config: color.refresh_interval_s must be positive, got %d", c.Color.RefreshIntervalS)
	}
	if c.Data.CacheIntervalS <= 0 {
		return fmt.Errorf("config: data.cache_interval_s must be positive, got %d", c.Data.CacheIntervalS)
	}
	if c.Data.SendIntervalS <= 0 {
		return fmt.Errorf("config: data.send_interval_s must be positive, got %d", c.Data.SendIntervalS)
	}
	if c.Data.I2CAddr == 0 || c.Data.I2CAddr > 0x7F {
		return fmt.Errorf("config: data.i2c_addr must be a 7-bit address, got %#x", c.Data.I2CAddr)
	}
	if c.TickS <= 0 {
		return fmt.Errorf("config: tick_s must be positive, got %d", c.TickS)
	}
	return nil
}

// CacheInterval returns the data freshness interval as a Duration.
func (c *Config) CacheInterval() time.Duration {
	return time.Duration(c.Data.CacheIntervalS) * time.Second
}

// SendInterval returns the transport push interval as a Duration.
func (c *Config) SendInterval() time.Duration {
	return time.Duration(c.Data.SendIntervalS) * time.Second
}

// ColorRefreshInterval returns the color panel refresh interval as a Duration.
func (c *Config) ColorRefreshInterval() time.Duration {
	return time.Duration(c.Color.RefreshIntervalS) * time.Second
}

// Tick returns the scheduler tick period as a Duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickS) * time.Second
}
