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

	"github.com/forecourt/dartline/internal/bus"
)

var (
	statusNozzle  int
	statusFilling bool
)

var statusCmd = &cobra.Command{
	Use:   "status <address>",
	Short: "Query one pump's status byte",
	Long: `Sends a RETURN_STATUS to the given pump address (hex like 0x52 or 52h,
or decimal) and prints the decoded result. With --filling, a
RETURN_FILLING_INFO follows and the last transaction's amount, volume
and unit price are printed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusNozzle, "nozzle", "n", 0, "Nozzle number for the filling query (0-15)")
	statusCmd.Flags().BoolVarP(&statusFilling, "filling", "f", false, "Also query the last filling info")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, err := bus.ParseAddress(args[0])
	if err != nil {
		return err
	}
	nozzle, err := bus.ParseNozzle(fmt.Sprint(statusNozzle))
	if err != nil {
		return err
	}

	session, desc, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Querying 0x%02X on %s\n\n", addr, desc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := session.Status(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("Status:  %s (code %d)\n", res.Status.Label, res.Status.Code)
	fmt.Printf("Flags:   %s\n", statusFlags(res.Status))

	if statusFilling {
		info, err := session.FillingInfo(ctx, addr, nozzle)
		if err != nil {
			return err
		}
		fmt.Printf("Filling: amount=%d volume=%d unit-price=%d (nozzle %d)\n",
			info.Amount, info.Volume, info.UnitPrice, nozzle)
	}
	return nil
}
