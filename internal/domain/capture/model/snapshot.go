// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "fmt"

// TrackInfo is the observable part of a live track.
type TrackInfo struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Live  bool   `json:"live"`
}

// Preview is the live-stream handle exposed while no artifact exists.
type Preview struct {
	SessionID string      `json:"session_id"`
	StreamID  string      `json:"stream_id"`
	Tracks    []TrackInfo `json:"tracks"`
}

// Snapshot is the observable state of the recording session.
type Snapshot struct {
	State            RecordingState `json:"state"`
	Recording        bool           `json:"recording"`
	Paused           bool           `json:"paused"`
	Elapsed          int            `json:"elapsed_s"`
	MaxDuration      int            `json:"max_duration_s"`
	Acquiring        bool           `json:"acquiring"`
	PermissionDenied bool           `json:"permission_denied"`
	HasArtifact      bool           `json:"has_artifact"`
	ArtifactSize     int            `json:"artifact_bytes"`
	Preview          *Preview       `json:"preview,omitempty"`
}

// FormatClock renders seconds as mm:ss. Minutes are not wrapped into hours.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Progress renders elapsed time against the displayed ceiling.
func (s Snapshot) Progress() string {
	return FormatClock(s.Elapsed) + " / " + FormatClock(s.MaxDuration)
}
