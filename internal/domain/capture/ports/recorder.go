// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import "context"

// RecorderEventKind tags a recorder notification.
type RecorderEventKind int

const (
	RecorderData RecorderEventKind = iota
	RecorderError
)

// RecorderEvent is one notification from a recorder. For RecorderData,
// ownership of Data passes to the receiver; Data may be empty.
type RecorderEvent struct {
	Kind RecorderEventKind
	Data []byte
	Err  error
}

// Recorder encodes a Stream into container chunks.
//
// Events delivers notifications in production order and is closed after the
// final delivery that follows Stop, or when the recorder ends on its own.
// Stop requests the final flush and returns without waiting for it; it is
// idempotent. Pause and Resume suspend and continue delivery.
type Recorder interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error
	Events() <-chan RecorderEvent
}
