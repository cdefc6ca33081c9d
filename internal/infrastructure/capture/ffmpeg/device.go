// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg captures camera and microphone through an ffmpeg child
// process that muxes WebM to its stdout.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults for Config.
const (
	DefaultChunkBytes = 64 << 10
	DefaultStopGrace  = 3 * time.Second
)

// Config describes the ffmpeg binary and the devices it reads.
type Config struct {
	Bin         string
	InputFormat string
	Video       string
	Audio       string
	ChunkBytes  int
	StopGrace   time.Duration
	Logger      *zerolog.Logger
}

// Device is a ports.Device backed by ffmpeg.
type Device struct {
	cfg    Config
	bin    string
	logger zerolog.Logger
}

// New resolves the ffmpeg binary and returns a device. It does not touch
// the capture hardware; that happens on every Open.
func New(cfg Config) (*Device, error) {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = FormatV4L2
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = DefaultChunkBytes
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	bin, err := exec.LookPath(cfg.Bin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary %q: %w", cfg.Bin, err)
	}
	logger := xglog.WithComponent("capture.ffmpeg")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str(xglog.FieldComponent, "capture.ffmpeg").Logger()
	}
	return &Device{cfg: cfg, bin: bin, logger: logger}, nil
}

// Bin returns the resolved ffmpeg path.
func (d *Device) Bin() string { return d.bin }

// Open checks that the configured devices can be read and returns a fresh
// stream handle. The ffmpeg process itself starts with the recorder.
func (d *Device) Open(ctx context.Context, c ports.Constraints) (ports.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Video {
		return nil, fmt.Errorf("%w: video track is required", ports.ErrNotFound)
	}

	s := &stream{id: uuid.NewString()}
	if d.probesNode() {
		if err := probeNode(d.cfg.Video); err != nil {
			d.logger.Warn().
				Err(err).
				Str(xglog.FieldDevice, d.cfg.Video).
				Str(xglog.FieldEvent, "capture.device_probe_failed").
				Msg("video device probe failed")
			return nil, err
		}
	}
	s.tracks = append(s.tracks, &track{kind: ports.TrackVideo, label: videoLabel(d.cfg.Video)})
	if c.Audio && d.cfg.Audio != "" {
		s.tracks = append(s.tracks, &track{kind: ports.TrackAudio, label: d.cfg.Audio})
	}

	d.logger.Debug().
		Str(xglog.FieldStreamID, s.id).
		Str(xglog.FieldDevice, d.cfg.Video).
		Int("tracks", len(s.tracks)).
		Msg("capture devices opened")
	return s, nil
}

// NewRecorder prepares an ffmpeg recorder for s. The process starts on
// Recorder.Start.
func (d *Device) NewRecorder(s ports.Stream) (ports.Recorder, error) {
	st, ok := s.(*stream)
	if !ok {
		return nil, fmt.Errorf("ffmpeg: foreign stream %T", s)
	}
	in := InputSpec{Format: d.cfg.InputFormat, Video: d.cfg.Video}
	if st.hasKind(ports.TrackAudio) {
		in.Audio = d.cfg.Audio
	}
	args, err := BuildCaptureArgs(in)
	if err != nil {
		return nil, err
	}
	return newRecorder(d.bin, args, st, d.cfg.ChunkBytes, d.cfg.StopGrace,
		d.logger.With().Str(xglog.FieldStreamID, st.id).Logger()), nil
}

func (d *Device) probesNode() bool {
	return d.cfg.InputFormat == FormatV4L2 && filepath.IsAbs(d.cfg.Video)
}

// probeNode opens and closes a device node, mapping errno onto the port
// sentinels.
func probeNode(path string) error {
	f, err := os.Open(path) // #nosec G304 -- configured device node
	if err == nil {
		_ = f.Close()
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ports.ErrNotAllowed, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %w", ports.ErrNotFound, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %w", ports.ErrNotReadable, err)
	default:
		return fmt.Errorf("%w: %w", ports.ErrNotReadable, err)
	}
}

// videoLabel prefers the driver-reported name of a v4l2 node.
func videoLabel(path string) string {
	if strings.HasPrefix(path, "/dev/video") {
		name := filepath.Join("/sys/class/video4linux", filepath.Base(path), "name")
		if b, err := os.ReadFile(name); err == nil { // #nosec G304
			if label := strings.TrimSpace(string(b)); label != "" {
				return label
			}
		}
	}
	return path
}

type stream struct {
	id     string
	tracks []*track
}

func (s *stream) ID() string { return s.id }

func (s *stream) Tracks() []ports.Track {
	out := make([]ports.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

func (s *stream) hasKind(k ports.TrackKind) bool {
	for _, t := range s.tracks {
		if t.kind == k {
			return true
		}
	}
	return false
}

func (s *stream) live() bool {
	for _, t := range s.tracks {
		if !t.Live() {
			return false
		}
	}
	return len(s.tracks) > 0
}

// track is a logical grant. The device node is held by the ffmpeg process,
// which the recorder owns; stopping the track forbids any further start.
type track struct {
	kind    ports.TrackKind
	label   string
	stopped atomic.Bool
}

func (t *track) Kind() ports.TrackKind { return t.kind }
func (t *track) Label() string         { return t.label }
func (t *track) Live() bool            { return !t.stopped.Load() }
func (t *track) Stop()                 { t.stopped.Store(true) }

var _ ports.Device = (*Device)(nil)
