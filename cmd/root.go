// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Forecourt Systems

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Configuration file
	configPath string

	// Serial connection flags
	portName   string
	baudRate   int
	parityMode string

	// Protocol flags
	crcVariant string
	retryLimit int

	// Trace flags
	replayPath  string
	capturePath string

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dartline",
	Short: "MKR5 (DART) forecourt pump controller",
	Long: `Dartline - a forecourt controller for fuel pumps speaking the MKR5
(DART) serial protocol over a shared RS-485 or current-loop bus.

Provides commands for scanning the pump address space, querying pump and
filling status, issuing pump commands, live monitoring, and serving the
bus over HTTP/WebSocket.

Connection modes:
  Serial: --port /dev/ttyUSB0 [--baud 9600] [--parity odd]
  Replay: --replay trace.cbor (a capture recorded with --capture)

Flags override the config file; the config file overrides the built-in
defaults. Environment variables (DART_PORT, DART_BAUD, ...) sit between
the two.`,
	Version: "1.0.0",
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&configPath, "config", "c", "/etc/dartline/config.yaml", "Config file path")

	// Serial connection flags
	pf.StringVarP(&portName, "port", "p", "", "Serial port device")
	pf.IntVarP(&baudRate, "baud", "b", 0, "Baud rate (9600 or 19200)")
	pf.StringVar(&parityMode, "parity", "", "Parity: odd, even or none")

	// Protocol flags
	pf.StringVar(&crcVariant, "crc", "", "CRC variant: xmodem or reflected")
	pf.IntVar(&retryLimit, "retries", -1, "Retries after the initial attempt")

	// Trace flags
	pf.StringVar(&replayPath, "replay", "", "Replay a recorded trace instead of opening a port")
	pf.StringVar(&capturePath, "capture", "", "Record all bus traffic to a trace file")

	pf.BoolVarP(&verbose, "verbose", "v", false, "Log every frame exchange")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
