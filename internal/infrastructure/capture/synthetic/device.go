// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package synthetic is a capture backend without hardware. It emits
// numbered chunks on a clock, which makes it usable for demos, CI and
// the doctor command.
package synthetic

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	"github.com/google/uuid"
)

// DefaultInterval is the delivery period used when Config.Interval is zero.
const DefaultInterval = 250 * time.Millisecond

// Config tunes the synthetic device.
type Config struct {
	// Interval between deliveries while recording.
	Interval time.Duration
	// Deny makes every Open fail as if the user refused access.
	Deny bool
	// Clock drives deliveries; nil uses the system clock.
	Clock ports.Clock
}

// Device is a ports.Device that needs no hardware.
type Device struct {
	cfg   Config
	deny  atomic.Bool
	opens atomic.Int64
}

// New returns a synthetic device.
func New(cfg Config) *Device {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	d := &Device{cfg: cfg}
	d.deny.Store(cfg.Deny)
	return d
}

// SetDeny toggles permission refusal for later Opens.
func (d *Device) SetDeny(deny bool) { d.deny.Store(deny) }

// Opens returns the number of Open calls so far.
func (d *Device) Opens() int { return int(d.opens.Load()) }

func (d *Device) Open(ctx context.Context, c ports.Constraints) (ports.Stream, error) {
	d.opens.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.deny.Load() {
		return nil, fmt.Errorf("synthetic device: %w", ports.ErrNotAllowed)
	}
	s := &stream{id: uuid.NewString()}
	if c.Video {
		s.tracks = append(s.tracks, &track{kind: ports.TrackVideo, label: "Synthetic Camera"})
	}
	if c.Audio {
		s.tracks = append(s.tracks, &track{kind: ports.TrackAudio, label: "Synthetic Microphone"})
	}
	if len(s.tracks) == 0 {
		return nil, fmt.Errorf("synthetic device: %w: no tracks requested", ports.ErrNotFound)
	}
	return s, nil
}

func (d *Device) NewRecorder(s ports.Stream) (ports.Recorder, error) {
	st, ok := s.(*stream)
	if !ok {
		return nil, fmt.Errorf("synthetic: foreign stream %T", s)
	}
	return newRecorder(st, d.cfg.Clock, d.cfg.Interval), nil
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

func (s *stream) live() bool {
	for _, t := range s.tracks {
		if !t.Live() {
			return false
		}
	}
	return true
}

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
