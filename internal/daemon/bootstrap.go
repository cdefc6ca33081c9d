// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the capture controller, the control API and the
// configuration watcher into one long-running process.
package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ManuGH/vidrec/internal/bus"
	"github.com/ManuGH/vidrec/internal/config"
	apihttp "github.com/ManuGH/vidrec/internal/control/http"
	"github.com/ManuGH/vidrec/internal/control/middleware"
	"github.com/ManuGH/vidrec/internal/domain/capture/devices"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	"github.com/ManuGH/vidrec/internal/domain/capture/session"
	"github.com/ManuGH/vidrec/internal/infrastructure/capture/ffmpeg"
	"github.com/ManuGH/vidrec/internal/infrastructure/capture/synthetic"
	"github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/telemetry"
	"github.com/rs/zerolog"
)

// NewDevice builds the configured capture backend.
func NewDevice(cfg config.DeviceConfig, logger *zerolog.Logger) (ports.Device, error) {
	switch cfg.Backend {
	case "ffmpeg":
		dev, err := ffmpeg.New(ffmpeg.Config{
			Bin:         cfg.FFmpegBin,
			InputFormat: cfg.InputFormat,
			Video:       cfg.Video,
			Audio:       cfg.Audio,
			ChunkBytes:  cfg.ChunkBytes,
			StopGrace:   cfg.StopGrace,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return dev, nil
	case "synthetic":
		return synthetic.New(synthetic.Config{
			Interval: cfg.SyntheticInterval,
			Deny:     cfg.SyntheticDeny,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Runtime is the assembled capture stack.
type Runtime struct {
	Config     config.AppConfig
	Events     *bus.MemoryBus
	Devices    *devices.Manager
	Controller *session.Controller
}

// NewRuntime assembles the controller over dev. Run the controller to
// bring it up.
func NewRuntime(cfg config.AppConfig, dev ports.Device) *Runtime {
	events := bus.NewMemoryBus()
	dm := devices.NewManager(dev, devices.Options{Backend: cfg.Device.Backend})
	ctrl := session.New(dm, session.Options{
		MaxDuration:    cfg.Recording.MaxDuration,
		TickInterval:   cfg.Recording.TickInterval,
		MediaType:      cfg.Recording.MediaType,
		FileName:       cfg.Recording.FileName,
		AcquireOnStart: cfg.Recording.AcquireOnStart,
		Publisher:      events,
	})
	return &Runtime{Config: cfg, Events: events, Devices: dm, Controller: ctrl}
}

// APIHandler returns the control API for the runtime.
func (r *Runtime) APIHandler() http.Handler {
	srv := apihttp.NewServer(r.Controller, apihttp.Config{
		Stack: middleware.StackConfig{
			AllowedOrigins: r.Config.API.AllowedOrigins,
			EnableMetrics:  true,
			TracingService: tracingService(r.Config),
			EnableLogging:  true,
			RateLimitRPM:   r.Config.API.RateLimitRPM,
		},
		Events: r.Events,
		Topic:  session.TopicSnapshot,
	})
	return srv.Handler()
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.LogService
}

// Options configures Serve.
type Options struct {
	ConfigPath string
	Version    string
	// ListenAddr overrides api.listen_addr when set.
	ListenAddr string
}

// Serve loads the configuration and runs the daemon until ctx is done.
func Serve(ctx context.Context, opts Options) error {
	loader := config.NewLoader(opts.ConfigPath, opts.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.ListenAddr != "" {
		cfg.API.ListenAddr = opts.ListenAddr
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: opts.Version})
	logger := log.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: opts.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}

	devLogger := log.WithComponent("capture.device")
	dev, err := NewDevice(cfg.Device, &devLogger)
	if err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return fmt.Errorf("failed to init capture device: %w", err)
	}
	rt := NewRuntime(cfg, dev)

	mgr, err := NewManager(DefaultServerConfig(cfg.API.ListenAddr), Deps{
		Logger:     logger,
		APIHandler: rt.APIHandler(),
	})
	if err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)

	logger.Info().
		Str("backend", cfg.Device.Backend).
		Str("listen", cfg.API.ListenAddr).
		Dur("max_duration", cfg.Recording.MaxDuration).
		Msg("vidrec starting")

	return NewApp(logger, mgr, config.NewHolder(cfg, loader), rt.Controller).Run(ctx)
}
