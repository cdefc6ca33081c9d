// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the capture domain types.
package model

// RecordingState is the state of the recording session machine.
type RecordingState string

const (
	StateIdle      RecordingState = "idle"
	StateRecording RecordingState = "recording"
	StatePaused    RecordingState = "paused"
)

// Active reports whether a recorder is bound (recording or paused).
func (s RecordingState) Active() bool {
	return s == StateRecording || s == StatePaused
}

func (s RecordingState) String() string { return string(s) }
