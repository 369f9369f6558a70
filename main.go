// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Forecourt Systems
//
// Dartline - MKR5 pump bus controller
//
// A CLI tool and service for polling and controlling fuel-dispensing pumps
// over an RS-485 / current-loop serial bus using the MKR5 master/slave
// protocol.

package main

import (
	"os"

	"github.com/forecourt/dartline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
