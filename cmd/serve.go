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

	"github.com/forecourt/dartline/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bus over HTTP and WebSocket",
	Long: `Runs the HTTP facade: JSON endpoints for the pump registry, scans and
commands, plus a WebSocket feed pushing registry snapshots.

  GET  /health                  controller and bus health
  GET  /pumps                   registry snapshot
  POST /pumps/scan              walk the address space
  GET  /pumps/{addr}/status     query one pump
  GET  /pumps/{addr}/filling    last filling info (?nozzle=N)
  POST /pumps/{addr}/command    send a command (JSON body)
  GET  /ws                      snapshot push feed`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	addr := cfg.Server.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	session, desc, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Serving %s on %s\n", desc, addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(addr, session).Run(ctx)
}
