// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
)

// accumulator collects the non-empty deliveries of one recording run.
type accumulator struct {
	chunks [][]byte
	size   int
}

// add appends data and reports whether it was kept. Empty deliveries are dropped.
func (a *accumulator) add(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	a.chunks = append(a.chunks, data)
	a.size += len(data)
	return true
}

// pack concatenates the chunks in delivery order. It is the only place an
// Artifact is built; zero chunks yield a zero-length artifact.
func (a *accumulator) pack(mediaType, fileName string, createdAt time.Time, d time.Duration) *model.Artifact {
	data := make([]byte, 0, a.size)
	for _, c := range a.chunks {
		data = append(data, c...)
	}
	return &model.Artifact{
		Data:      data,
		MediaType: mediaType,
		FileName:  fileName,
		CreatedAt: createdAt,
		Duration:  d,
	}
}

// recordingRun is one start..stop cycle. After stop it keeps draining its
// recorder's events until the channel closes.
type recordingRun struct {
	id        uint64
	session   *model.MediaSession
	acc       accumulator
	stopped   bool
	discarded bool
	duration  time.Duration
	// denied is set when the recorder was refused before delivering data.
	denied error
}

// runEvent is a recorder notification tagged with its run. closed marks the
// end of the recorder's event stream.
type runEvent struct {
	runID  uint64
	ev     ports.RecorderEvent
	closed bool
}
