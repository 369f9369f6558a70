// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Forecourt Systems

package cmd

import (
	"fmt"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/internal/capture"
	"github.com/forecourt/dartline/internal/config"
)

// loadSettings reads the config file and layers command line flags on
// top. Only flags the user actually set override the file.
func loadSettings() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	pf := rootCmd.PersistentFlags()
	if pf.Changed("port") {
		cfg.Serial.Port = portName
	}
	if pf.Changed("baud") {
		cfg.Serial.BaudRate = baudRate
	}
	if pf.Changed("parity") {
		cfg.Serial.Parity = parityMode
	}
	if pf.Changed("crc") {
		cfg.Bus.CRC = crcVariant
	}
	if pf.Changed("retries") {
		cfg.Bus.RetryLimit = retryLimit
	}
	if pf.Changed("verbose") {
		cfg.Bus.Verbose = verbose
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openSession assembles a bus session from the effective settings:
// a replayed trace or a live serial port, optionally wrapped in a trace
// recorder. The returned description names the channel for log output.
func openSession() (*bus.Session, string, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, "", err
	}

	var (
		tr   bus.Transport
		desc string
	)
	if replayPath != "" {
		replay, err := capture.OpenReplay(replayPath)
		if err != nil {
			return nil, "", err
		}
		tr = replay
		desc = fmt.Sprintf("Replay: %s (%d records)", replayPath, replay.Len())
	} else {
		tr, err = bus.OpenSerial(cfg.SerialSettings())
		if err != nil {
			return nil, "", err
		}
		desc = fmt.Sprintf("Serial: %s @ %d baud, %s parity",
			cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.Parity)
	}

	if capturePath != "" {
		rec, err := capture.CreateRecorder(tr, capturePath)
		if err != nil {
			tr.Close()
			return nil, "", err
		}
		tr = rec
		desc += fmt.Sprintf(" (capturing to %s)", capturePath)
	}

	return bus.NewSession(tr, cfg.SessionConfig()), desc, nil
}
