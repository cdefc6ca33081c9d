// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"os/signal"
	"syscall"

	"github.com/ManuGH/vidrec/internal/daemon"
	"github.com/ManuGH/vidrec/internal/version"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recorder daemon with its control API",
	Long: `Runs the capture controller and serves the control API until SIGINT or
SIGTERM. SIGHUP reloads the config file; edits to it are picked up
automatically.

Examples:
  vidrec serve --config vidrec.yaml
  vidrec serve --listen 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "override api.listen_addr")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.Serve(ctx, daemon.Options{
		ConfigPath: configPath,
		Version:    version.Version,
		ListenAddr: serveListen,
	})
}
