// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Forecourt Systems

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forecourt/dartline/internal/registry"
	"github.com/forecourt/dartline/pkg/mkr5"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk the pump address space and report what answers",
	Long: `Polls every address from 0x50 to 0x6F once, with the configured retry
budget per address, and prints one line per address. Pumps that answer
are queried for their status byte.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	session, desc, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Scanning on %s\n\n", desc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := session.Scan(ctx)
	if err != nil {
		return err
	}

	printRecords(records)
	fmt.Printf("\n%d/%d online | %s\n", session.Registry().OnlineCount(), mkr5.MaxPumps, session.Statistics())
	return nil
}

func printRecords(records []registry.PumpRecord) {
	fmt.Printf("%-6s %-8s %-20s %s\n", "ADDR", "ONLINE", "STATUS", "FLAGS")
	for _, rec := range records {
		status, flags := "-", "-"
		if rec.Status != nil {
			status = rec.Status.Label
			flags = statusFlags(*rec.Status)
		}
		online := "no"
		if rec.Online {
			online = "yes"
		}
		fmt.Printf("0x%02X   %-8s %-20s %s\n", rec.Address, online, status, flags)
	}
}

func statusFlags(s mkr5.NozzleStatus) string {
	flags := ""
	if s.NozzleOn {
		flags += "nozzle "
	}
	if s.RFTagSensed {
		flags += "rf-tag "
	}
	if s.ErrorPresent {
		flags += "error "
	}
	if flags == "" {
		return "-"
	}
	return flags[:len(flags)-1]
}
