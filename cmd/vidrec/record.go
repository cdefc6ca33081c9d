// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/vidrec/internal/daemon"
	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/export"
	"github.com/ManuGH/vidrec/internal/log"
	"github.com/spf13/cobra"
)

var (
	recordDuration time.Duration
	recordOut      string
	recordBackend  string
)

// finalizeTimeout bounds the wait for the recorder's last delivery.
const finalizeTimeout = 30 * time.Second

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record once without the daemon and write the file",
	Long: `Acquires camera and microphone, records until --duration elapses or
the process is interrupted, then writes the recording atomically.

Examples:
  vidrec record --duration 10s --out clip.webm
  vidrec record --out recordings/          # RecordedVideo.webm in that dir
  vidrec record --backend synthetic --duration 2s`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 10*time.Second, "recording length; 0 records until interrupted")
	recordCmd.Flags().StringVar(&recordOut, "out", "", "output file or directory (default ./RecordedVideo.webm)")
	recordCmd.Flags().StringVar(&recordBackend, "backend", "", "override device.backend (ffmpeg, synthetic)")
}

type snapshotter interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

func runRecord(cmd *cobra.Command, _ []string) error {
	if recordDuration < 0 {
		return fmt.Errorf("--duration must not be negative")
	}
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(recordBackend)
	if err != nil {
		return err
	}
	// The preview grant is for interactive use; one-shot recording opens
	// the device on start.
	cfg.Recording.AcquireOnStart = false

	devLogger := log.WithComponent("capture.device")
	dev, err := daemon.NewDevice(cfg.Device, &devLogger)
	if err != nil {
		return err
	}
	rt := daemon.NewRuntime(cfg, dev)
	ctrl := rt.Controller

	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(context.WithoutCancel(ctx)) }()
	defer func() {
		_ = ctrl.Close()
		<-runDone
	}()

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := waitRecording(ctx, ctrl, recordDuration, out); err != nil {
		return err
	}
	if err := ctrl.Stop(context.Background()); err != nil && !errors.Is(err, lifecycle.ErrInvalidTransition) {
		return fmt.Errorf("stop recording: %w", err)
	}

	finalCtx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	art, err := ctrl.AwaitArtifact(finalCtx)
	if err != nil {
		return fmt.Errorf("finalize recording: %w", err)
	}

	res, err := export.WriteArtifact(finalCtx, recordOut, art)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\nwrote %s (%d bytes, %s, sha256 %s)\n",
		res.Path, res.Bytes, model.FormatClock(int(art.Duration.Seconds())), res.SHA256)
	return nil
}

// waitRecording prints progress until d elapses, ctx ends or the recording
// stops by itself. An interrupt is a normal way to finish.
func waitRecording(ctx context.Context, src snapshotter, d time.Duration, out io.Writer) error {
	var deadline <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	last := ""
	for {
		snap, err := src.Snapshot(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("read session: %w", err)
		}
		if err == nil {
			if !snap.Recording {
				// The recorder ended on its own; what it delivered is packaged.
				log.L().Warn().Msg("recording ended before it was stopped")
				return nil
			}
			if line := snap.Progress(); line != last {
				_, _ = fmt.Fprintf(out, "\rrecording %s", line)
				last = line
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ticker.C:
		}
	}
}
