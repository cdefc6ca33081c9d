// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"os"

	"github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/version"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "vidrec",
	Short:         "Camera and microphone recorder with a local control API",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `vidrec records audio and video from the local camera and microphone.

It runs either as a daemon exposing a control API (start, pause, resume,
stop, download) or as a one-shot headless recorder.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if cmd.Flags().Changed("log-level") {
			log.Configure(log.Config{Level: logLevel, Output: os.Stderr})
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(version.Full() + "\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
