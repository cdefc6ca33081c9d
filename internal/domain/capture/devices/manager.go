// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package devices owns camera and microphone grants. It is the only place
// that opens or stops hardware tracks.
package devices

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/metrics"
	"github.com/ManuGH/vidrec/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Manager.
type Options struct {
	Constraints ports.Constraints
	Clock       ports.Clock
	// Backend names the device implementation in logs and spans.
	Backend string
	Logger  *zerolog.Logger
}

// Manager acquires and releases media sessions. At most one session is
// current; acquiring a new one releases the previous grant first.
//
// A generation counter guards completions: an acquisition that finishes
// after Close, or after a newer acquisition began, is released on the spot
// and reported as lifecycle.ErrTornDown.
type Manager struct {
	device ports.Device
	opts   Options
	logger zerolog.Logger
	tracer trace.Tracer

	mu               sync.Mutex
	gen              uint64
	closed           bool
	current          *model.MediaSession
	permissionDenied bool
}

// NewManager wraps a device backend.
func NewManager(device ports.Device, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if !opts.Constraints.Video && !opts.Constraints.Audio {
		opts.Constraints = ports.Constraints{Video: true, Audio: true}
	}
	logger := xglog.WithComponent("capture.devices")
	if opts.Logger != nil {
		logger = opts.Logger.With().Str(xglog.FieldComponent, "capture.devices").Logger()
	}
	return &Manager{
		device: device,
		opts:   opts,
		logger: logger,
		tracer: telemetry.Tracer("vidrec/capture/devices"),
	}
}

// Acquire requests a fresh audio+video grant and binds a recorder to it.
// Failures are classified into lifecycle.ErrPermissionDenied or
// lifecycle.ErrDeviceUnavailable via *lifecycle.AcquireError.
func (m *Manager) Acquire(ctx context.Context) (*model.MediaSession, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, lifecycle.ErrTornDown
	}
	m.gen++
	gen := m.gen
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	m.Release(prev)

	ctx, span := m.tracer.Start(ctx, "capture.acquire",
		trace.WithAttributes(telemetry.SessionAttributes("", m.opts.Backend)...))
	defer span.End()

	began := m.opts.Clock.Now()
	sess, err := m.open(ctx)
	seconds := m.opts.Clock.Now().Sub(began).Seconds()
	if err != nil {
		class := lifecycle.ErrorClass(err)
		if errors.Is(err, lifecycle.ErrPermissionDenied) {
			m.mu.Lock()
			if gen == m.gen && !m.closed {
				m.permissionDenied = true
			}
			m.mu.Unlock()
		}
		metrics.RecordAcquisition(class, seconds)
		telemetry.RecordError(span, err, class)
		m.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "capture.acquire_failed").
			Str(xglog.FieldErrorClass, class).
			Msg("device acquisition failed")
		return nil, err
	}

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		m.Release(sess)
		metrics.RecordAcquisition(lifecycle.ClassTornDown, seconds)
		m.logger.Debug().
			Str(xglog.FieldEvent, "capture.acquire_stale").
			Str(xglog.FieldSessionID, sess.ID).
			Msg("discarding acquisition that completed after teardown or supersession")
		return nil, lifecycle.ErrTornDown
	}
	m.current = sess
	m.permissionDenied = false
	m.mu.Unlock()

	metrics.RecordAcquisition("", seconds)
	span.SetAttributes(telemetry.SessionAttributes(sess.ID, "")...)
	m.logger.Info().
		Str(xglog.FieldEvent, "capture.acquired").
		Str(xglog.FieldSessionID, sess.ID).
		Str(xglog.FieldStreamID, sess.Stream.ID()).
		Int("tracks", len(sess.Stream.Tracks())).
		Msg("media session acquired")
	return sess, nil
}

func (m *Manager) open(ctx context.Context) (*model.MediaSession, error) {
	stream, err := m.device.Open(ctx, m.opts.Constraints)
	if err != nil {
		return nil, Classify(err)
	}
	rec, err := m.device.NewRecorder(stream)
	if err != nil {
		stopTracks(stream)
		return nil, Classify(err)
	}
	metrics.CaptureLiveSessions.Inc()
	return &model.MediaSession{
		ID:         uuid.NewString(),
		Stream:     stream,
		Recorder:   rec,
		AcquiredAt: m.opts.Clock.Now(),
	}, nil
}

// Classify converts a backend error into the capture taxonomy.
func Classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &lifecycle.AcquireError{Class: lifecycle.ErrTornDown, Cause: err}
	case errors.Is(err, ports.ErrNotAllowed), errors.Is(err, os.ErrPermission):
		return &lifecycle.AcquireError{Class: lifecycle.ErrPermissionDenied, Cause: err}
	default:
		return &lifecycle.AcquireError{Class: lifecycle.ErrDeviceUnavailable, Cause: err}
	}
}

// Release stops every track of the session and detaches its recorder.
// Nil and already-released sessions are a no-op.
func (m *Manager) Release(sess *model.MediaSession) {
	if !sess.MarkReleased() {
		return
	}
	m.mu.Lock()
	if m.current == sess {
		m.current = nil
	}
	m.mu.Unlock()

	if sess.Recorder != nil {
		if err := sess.Recorder.Stop(); err != nil {
			m.logger.Debug().Err(err).Str(xglog.FieldSessionID, sess.ID).Msg("recorder stop during release")
		}
	}
	if sess.Stream != nil {
		stopTracks(sess.Stream)
	}
	metrics.CaptureLiveSessions.Dec()
	metrics.CaptureReleasesTotal.Inc()
	m.logger.Info().
		Str(xglog.FieldEvent, "capture.released").
		Str(xglog.FieldSessionID, sess.ID).
		Msg("media session released")
}

func stopTracks(s ports.Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Current returns the live session, or nil.
func (m *Manager) Current() *model.MediaSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// PermissionDenied reports whether the latest acquisition was refused.
func (m *Manager) PermissionDenied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permissionDenied
}

// MarkDenied records a refusal the recorder reported after the grant was
// issued. It only applies while sess is still the current session.
func (m *Manager) MarkDenied(sess *model.MediaSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || sess == nil || m.current != sess {
		return
	}
	m.permissionDenied = true
}

// Close releases the current session and invalidates in-flight acquisitions.
// Later Acquire calls fail with lifecycle.ErrTornDown.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	cur := m.current
	m.current = nil
	m.mu.Unlock()

	m.Release(cur)
}
