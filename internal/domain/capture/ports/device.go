// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports defines the contracts between the capture core and the
// device backends that implement them.
package ports

import (
	"context"
	"errors"
)

// TrackKind distinguishes the two media tracks of a capture stream.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Backend-level acquisition failures. Backends wrap these (or os.ErrPermission)
// so the core can classify without inspecting backend-specific errors.
var (
	ErrNotAllowed  = errors.New("device access not allowed")
	ErrNotFound    = errors.New("device not found")
	ErrNotReadable = errors.New("device not readable")
)

// Track is one live hardware track. Stop is irreversible and idempotent:
// a stopped track cannot be restarted, only replaced by a fresh grant.
type Track interface {
	Kind() TrackKind
	Label() string
	Live() bool
	Stop()
}

// Stream is a live audio+video capture.
type Stream interface {
	ID() string
	Tracks() []Track
}

// Constraints describes which tracks to request.
type Constraints struct {
	Video bool
	Audio bool
}

// Device grants access to camera and microphone. Every Open is a fresh grant.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
	NewRecorder(s Stream) (Recorder, error)
}
