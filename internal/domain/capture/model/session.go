// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"sync/atomic"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
)

// MediaSession is one hardware grant: a live stream plus the recorder bound
// to it. The device manager owns it; everyone else only borrows it.
type MediaSession struct {
	ID         string
	Stream     ports.Stream
	Recorder   ports.Recorder
	AcquiredAt time.Time

	released atomic.Bool
}

// MarkReleased flips the session to released and reports whether this call
// did it. Only the first caller should stop the tracks.
func (s *MediaSession) MarkReleased() bool {
	if s == nil {
		return false
	}
	return s.released.CompareAndSwap(false, true)
}

// Released reports whether the session's tracks have been stopped.
func (s *MediaSession) Released() bool {
	return s == nil || s.released.Load()
}

// Preview describes the live stream for rendering.
func (s *MediaSession) Preview() *Preview {
	if s == nil || s.Released() || s.Stream == nil {
		return nil
	}
	p := &Preview{SessionID: s.ID, StreamID: s.Stream.ID()}
	for _, t := range s.Stream.Tracks() {
		p.Tracks = append(p.Tracks, TrackInfo{Kind: string(t.Kind()), Label: t.Label(), Live: t.Live()})
	}
	return p
}
