// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ManuGH/vidrec/internal/config"
	"github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/version"
	"github.com/spf13/cobra"
)

// commandContext tolerates commands executed without ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig resolves the configuration for one-shot commands and routes
// logs to stderr so stdout stays readable.
func loadConfig(backend string) (config.AppConfig, error) {
	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	if backend != "" {
		cfg.Device.Backend = backend
		if err := config.Validate(cfg); err != nil {
			return config.AppConfig{}, err
		}
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log.Configure(log.Config{Level: level, Output: os.Stderr, Service: cfg.LogService, Version: version.Version})
	return cfg, nil
}
