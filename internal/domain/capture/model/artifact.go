// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// Default export contract for recordings.
const (
	DefaultMediaType = "video/webm"
	DefaultFileName  = "RecordedVideo.webm"
)

// Artifact is a packaged recording. Data is shared with every reader and
// must be treated as read-only.
type Artifact struct {
	Data      []byte
	MediaType string
	FileName  string
	CreatedAt time.Time
	Duration  time.Duration
}

// Size returns the content length in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}
