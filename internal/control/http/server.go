// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package http exposes the recording session over a local control API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/vidrec/internal/bus"
	"github.com/ManuGH/vidrec/internal/control/middleware"
	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Capture is the recording session as seen by the API.
type Capture interface {
	Apply(ctx context.Context, op lifecycle.Op) (model.Snapshot, error)
	Snapshot(ctx context.Context) (model.Snapshot, error)
	Artifact(ctx context.Context) (*model.Artifact, error)
}

// Config tunes the API surface.
type Config struct {
	Stack middleware.StackConfig
	// Events carries snapshot messages on Topic; nil disables /api/v1/events.
	Events bus.Bus
	Topic  string
	// PingInterval keeps idle event streams alive.
	PingInterval time.Duration
}

// Server serves the control API.
type Server struct {
	capture Capture
	cfg     Config
	origins *middleware.OriginPolicy
	logger  zerolog.Logger
}

// NewServer builds a server over capture.
func NewServer(capture Capture, cfg Config) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Server{
		capture: capture,
		cfg:     cfg,
		origins: middleware.NewOriginPolicy(cfg.Stack.AllowedOrigins),
		logger:  xglog.WithComponent("api"),
	}
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(s.cfg.Stack)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleSnapshot)
		r.Post("/session/start", s.handleOp(lifecycle.OpStart))
		r.Post("/session/pause", s.handleOp(lifecycle.OpPause))
		r.Post("/session/resume", s.handleOp(lifecycle.OpResume))
		r.Post("/session/stop", s.handleOp(lifecycle.OpStop))

		r.Get("/artifact", s.handleDownload)
		r.Head("/artifact", s.handleDownload)
		r.Delete("/artifact", s.handleOp(lifecycle.OpDiscard))

		if s.cfg.Events != nil {
			r.Get("/events", s.handleEvents)
		}
	})
	return r
}
