// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Forecourt Systems

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/pkg/mkr5"
)

var (
	commandNozzle  int
	commandPrices  []int
	commandPayload string
)

var commandCmd = &cobra.Command{
	Use:   "command <address> <command>",
	Short: "Send one command to one pump",
	Long: `Sends a single protocol command to the given pump address and prints
the decoded response. Commands are given by mnemonic or nibble:

  return_status, reset, authorize, pause_delivery, resume_delivery,
  return_filling_info, return_totalizer, price_update, preset_amount,
  preset_volume, disable_nozzle, stop_nozzle, switch_off

price_update takes its per-nozzle unit prices from --price (repeatable,
nozzle 1 first). Other payload-carrying commands take raw hex bytes via
--payload.`,
	Args: cobra.ExactArgs(2),
	RunE: runCommand,
}

func init() {
	commandCmd.Flags().IntVarP(&commandNozzle, "nozzle", "n", 0, "Target nozzle (0-15)")
	commandCmd.Flags().IntSliceVar(&commandPrices, "price", nil, "Unit price per nozzle (price_update only)")
	commandCmd.Flags().StringVar(&commandPayload, "payload", "", "Raw payload as hex bytes")
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	addr, err := bus.ParseAddress(args[0])
	if err != nil {
		return err
	}
	command, err := mkr5.ParseCommand(args[1])
	if err != nil {
		return err
	}
	nozzle, err := bus.ParseNozzle(fmt.Sprint(commandNozzle))
	if err != nil {
		return err
	}

	var payload []byte
	if commandPayload != "" {
		payload, err = hex.DecodeString(strings.ReplaceAll(commandPayload, " ", ""))
		if err != nil {
			return fmt.Errorf("invalid payload hex: %w", err)
		}
	}

	session, desc, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Sending %s to 0x%02X on %s\n\n", mkr5.CommandName(command), addr, desc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *mkr5.Result
	if command == mkr5.CmdPriceUpdate && len(commandPrices) > 0 {
		prices := make([]uint32, 0, len(commandPrices))
		for _, p := range commandPrices {
			if p < 0 {
				return fmt.Errorf("negative price %d", p)
			}
			prices = append(prices, uint32(p))
		}
		res, err = session.UpdatePrices(ctx, addr, prices)
	} else {
		res, err = session.SendCommand(ctx, addr, command, nozzle, payload)
	}
	if err != nil {
		return err
	}

	fmt.Println(mkr5.FormatResult(res))
	return nil
}
