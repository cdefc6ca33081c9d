// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/vidrec/internal/daemon"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	"github.com/ManuGH/vidrec/internal/infrastructure/capture/ffmpeg"
	"github.com/ManuGH/vidrec/internal/log"
	"github.com/spf13/cobra"
)

var (
	doctorBackend string
	doctorTimeout time.Duration
)

var errDoctorFailed = errors.New("one or more checks failed")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the capture backend can open camera and microphone",
	Long: `Loads the configuration, locates the capture backend and opens the
configured devices once, releasing them immediately.

Examples:
  vidrec doctor
  vidrec doctor --config vidrec.yaml --timeout 20s`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorBackend, "backend", "", "override device.backend (ffmpeg, synthetic)")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "device open timeout")
}

type checkPrinter struct {
	out    io.Writer
	failed bool
}

func (p *checkPrinter) ok(name, format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, "[ok]   %-8s %s\n", name, fmt.Sprintf(format, args...))
}

func (p *checkPrinter) fail(name string, err error) {
	p.failed = true
	_, _ = fmt.Fprintf(p.out, "[fail] %-8s %v\n", name, err)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	p := &checkPrinter{out: cmd.OutOrStdout()}

	cfg, err := loadConfig(doctorBackend)
	if err != nil {
		p.fail("config", err)
		return errDoctorFailed
	}
	p.ok("config", "backend=%s", cfg.Device.Backend)

	devLogger := log.WithComponent("capture.device")
	dev, err := daemon.NewDevice(cfg.Device, &devLogger)
	if err != nil {
		p.fail("backend", err)
		return errDoctorFailed
	}
	if fd, isFFmpeg := dev.(*ffmpeg.Device); isFFmpeg {
		p.ok("backend", "%s (format=%s video=%s audio=%s)",
			fd.Bin(), cfg.Device.InputFormat, cfg.Device.Video, cfg.Device.Audio)
	} else {
		p.ok("backend", "%s", cfg.Device.Backend)
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), doctorTimeout)
	defer cancel()
	if err := probeDevice(ctx, dev, p); err != nil {
		p.fail("devices", err)
	}

	if p.failed {
		return errDoctorFailed
	}
	return nil
}

// probeDevice opens one grant and releases every track again.
func probeDevice(ctx context.Context, dev ports.Device, p *checkPrinter) error {
	stream, err := dev.Open(ctx, ports.Constraints{Video: true, Audio: true})
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNotAllowed):
			return fmt.Errorf("access denied: %w", err)
		case errors.Is(err, ports.ErrNotFound):
			return fmt.Errorf("no such device: %w", err)
		case errors.Is(err, ports.ErrNotReadable):
			return fmt.Errorf("device busy or unreadable: %w", err)
		}
		return err
	}
	for _, t := range stream.Tracks() {
		p.ok(string(t.Kind()), "%s", t.Label())
		t.Stop()
	}
	return nil
}
