// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

// Package config loads the controller configuration: a YAML file with
// environment variable overrides on top, validated before any port is
// opened.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/pkg/mkr5"
)

// Config holds all controller configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Bus    BusConfig    `yaml:"bus"`
	Server ServerConfig `yaml:"server"`
}

type SerialConfig struct {
	Port     string `yaml:"port"`      // e.g. /dev/ttyUSB0
	BaudRate int    `yaml:"baud_rate"` // 9600 or 19200
	Parity   string `yaml:"parity"`    // "odd", "even", "none"
}

type BusConfig struct {
	CRC           string `yaml:"crc"`             // "xmodem" or "reflected"
	RetryLimit    int    `yaml:"retry_limit"`     // retries after the initial attempt
	PollSpacingMs int    `yaml:"poll_spacing_ms"` // settling time between scan addresses

	ResponseTimeoutMs  int `yaml:"response_timeout_ms"`
	SilenceWindowMs    int `yaml:"silence_window_ms"`
	MaxFrameSize       int `yaml:"max_frame_size"`
	EchoPatternLength  int `yaml:"echo_pattern_length"`
	EchoPatternRepeats int `yaml:"echo_pattern_repeats"`

	StatusTable  string           `yaml:"status_table"`  // "pump" or "nozzle" revision
	StatusLabels map[uint8]string `yaml:"status_labels"` // per-code overrides on top of the table

	AmountWidth int `yaml:"amount_width"` // BCD bytes per field
	VolumeWidth int `yaml:"volume_width"`
	PriceWidth  int `yaml:"price_width"`

	Verbose bool `yaml:"verbose"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a config with the documented protocol defaults.
func Default() Config {
	framer := mkr5.DefaultFramerConfig()
	widths := mkr5.DefaultFieldWidths()
	return Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 9600,
			Parity:   "odd",
		},
		Bus: BusConfig{
			CRC:                "xmodem",
			RetryLimit:         2,
			PollSpacingMs:      20,
			ResponseTimeoutMs:  int(framer.ResponseTimeout / time.Millisecond),
			SilenceWindowMs:    int(framer.SilenceWindow / time.Millisecond),
			MaxFrameSize:       framer.MaxFrameSize,
			EchoPatternLength:  framer.EchoPatternLength,
			EchoPatternRepeats: framer.EchoPatternRepeats,
			StatusTable:        "pump",
			AmountWidth:        widths.Amount,
			VolumeWidth:        widths.Volume,
			PriceWidth:         widths.UnitPrice,
		},
		Server: ServerConfig{
			ListenAddr: ":8920",
		},
	}
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file falls back to defaults; a file that exists
// but does not parse is an error, never a silent fallback.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Printf("[config] no config at %s, using defaults", path)
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Printf("[config] loaded from %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: DART_PORT, DART_BAUD, DART_PARITY, DART_CRC,
// DART_RETRY_LIMIT, DART_STATUS_TABLE, DART_LISTEN_ADDR, DART_VERBOSE.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DART_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("DART_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.BaudRate = n
		}
	}
	if v := os.Getenv("DART_PARITY"); v != "" {
		c.Serial.Parity = v
	}
	if v := os.Getenv("DART_CRC"); v != "" {
		c.Bus.CRC = v
	}
	if v := os.Getenv("DART_RETRY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bus.RetryLimit = n
		}
	}
	if v := os.Getenv("DART_STATUS_TABLE"); v != "" {
		c.Bus.StatusTable = v
	}
	if v := os.Getenv("DART_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("DART_VERBOSE"); v != "" {
		c.Bus.Verbose = v == "1" || v == "true" || v == "yes"
	}
}

// Validate rejects configurations the bus layer would choke on.
func (c *Config) Validate() error {
	if c.Serial.BaudRate != 9600 && c.Serial.BaudRate != 19200 {
		return fmt.Errorf("baud_rate %d: protocol runs at 9600 or 19200", c.Serial.BaudRate)
	}
	switch c.Serial.Parity {
	case "odd", "even", "none":
	default:
		return fmt.Errorf("parity %q: want odd, even or none", c.Serial.Parity)
	}
	if _, err := mkr5.ParseCRCVariant(c.Bus.CRC); err != nil {
		return err
	}
	if c.Bus.RetryLimit < 0 {
		return fmt.Errorf("retry_limit %d: must not be negative", c.Bus.RetryLimit)
	}
	switch c.Bus.StatusTable {
	case "pump", "nozzle":
	default:
		return fmt.Errorf("status_table %q: want pump or nozzle", c.Bus.StatusTable)
	}
	if c.Bus.MaxFrameSize < mkr5.MinDataFrameSize {
		return fmt.Errorf("max_frame_size %d: smaller than a data frame", c.Bus.MaxFrameSize)
	}
	for _, w := range []struct {
		name  string
		value int
	}{
		{"amount_width", c.Bus.AmountWidth},
		{"volume_width", c.Bus.VolumeWidth},
		{"price_width", c.Bus.PriceWidth},
	} {
		if w.value < 1 || w.value > mkr5.MaxBCDWidth {
			return fmt.Errorf("%s %d: want 1..%d BCD bytes", w.name, w.value, mkr5.MaxBCDWidth)
		}
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	return nil
}

// SessionConfig maps the validated file values onto the bus layer's
// session policies.
func (c *Config) SessionConfig() bus.Config {
	variant, _ := mkr5.ParseCRCVariant(c.Bus.CRC)

	table := mkr5.PumpStatusTable()
	if c.Bus.StatusTable == "nozzle" {
		table = mkr5.NozzleStatusTable()
	}
	for code, label := range c.Bus.StatusLabels {
		table[code] = label
	}

	return bus.Config{
		CRCVariant: variant,
		Framer: mkr5.FramerConfig{
			MaxFrameSize:       c.Bus.MaxFrameSize,
			SilenceWindow:      time.Duration(c.Bus.SilenceWindowMs) * time.Millisecond,
			ResponseTimeout:    time.Duration(c.Bus.ResponseTimeoutMs) * time.Millisecond,
			EchoPatternLength:  c.Bus.EchoPatternLength,
			EchoPatternRepeats: c.Bus.EchoPatternRepeats,
		},
		RetryLimit:  c.Bus.RetryLimit,
		PollSpacing: time.Duration(c.Bus.PollSpacingMs) * time.Millisecond,
		StatusTable: table,
		FieldWidths: mkr5.FieldWidths{
			Amount:    c.Bus.AmountWidth,
			Volume:    c.Bus.VolumeWidth,
			UnitPrice: c.Bus.PriceWidth,
		},
		Verbose: c.Bus.Verbose,
	}
}

// SerialSettings maps the file values onto the transport layer.
func (c *Config) SerialSettings() bus.SerialConfig {
	return bus.SerialConfig{
		Port:     c.Serial.Port,
		BaudRate: c.Serial.BaudRate,
		Parity:   c.Serial.Parity,
	}
}
