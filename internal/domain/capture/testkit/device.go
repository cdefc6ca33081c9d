// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
)

// FakeTrack is a hardware track that only records whether it was stopped.
type FakeTrack struct {
	kind    ports.TrackKind
	label   string
	stopped atomic.Bool
}

func (t *FakeTrack) Kind() ports.TrackKind { return t.kind }
func (t *FakeTrack) Label() string         { return t.label }
func (t *FakeTrack) Live() bool            { return !t.stopped.Load() }
func (t *FakeTrack) Stop()                 { t.stopped.Store(true) }

// Stopped reports whether Stop was called.
func (t *FakeTrack) Stopped() bool { return t.stopped.Load() }

// FakeStream is a stream of one video and one audio FakeTrack.
type FakeStream struct {
	id     string
	tracks []*FakeTrack
}

func (s *FakeStream) ID() string { return s.id }

func (s *FakeStream) Tracks() []ports.Track {
	out := make([]ports.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

// Live reports whether any track is still live.
func (s *FakeStream) Live() bool {
	for _, t := range s.tracks {
		if t.Live() {
			return true
		}
	}
	return false
}

// FakeDevice scripts acquisition outcomes and records every grant.
type FakeDevice struct {
	mu        sync.Mutex
	opens     int
	errs      []error
	gate      chan struct{}
	streams   []*FakeStream
	recorders []*FakeRecorder

	// NewRecorderFunc customizes recorders; nil builds a default FakeRecorder.
	NewRecorderFunc func() *FakeRecorder
}

// NewFakeDevice returns a device whose Opens succeed.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

// FailNext queues errors returned by the next Opens, in order.
// A nil entry lets that Open succeed.
func (d *FakeDevice) FailNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, errs...)
}

// Hold makes subsequent Opens block until the returned func is called.
// Blocked Opens ignore context cancellation, like a permission prompt.
func (d *FakeDevice) Hold() (release func()) {
	ch := make(chan struct{})
	d.mu.Lock()
	d.gate = ch
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if d.gate == ch {
				d.gate = nil
			}
			d.mu.Unlock()
			close(ch)
		})
	}
}

func (d *FakeDevice) Open(_ context.Context, c ports.Constraints) (ports.Stream, error) {
	d.mu.Lock()
	d.opens++
	n := d.opens
	var err error
	if len(d.errs) > 0 {
		err = d.errs[0]
		d.errs = d.errs[1:]
	}
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	s := &FakeStream{id: fmt.Sprintf("fake-stream-%d", n)}
	if c.Video {
		s.tracks = append(s.tracks, &FakeTrack{kind: ports.TrackVideo, label: "Fake Camera"})
	}
	if c.Audio {
		s.tracks = append(s.tracks, &FakeTrack{kind: ports.TrackAudio, label: "Fake Microphone"})
	}

	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *FakeDevice) NewRecorder(_ ports.Stream) (ports.Recorder, error) {
	var r *FakeRecorder
	if d.NewRecorderFunc != nil {
		r = d.NewRecorderFunc()
	} else {
		r = NewFakeRecorder()
	}
	d.mu.Lock()
	d.recorders = append(d.recorders, r)
	d.mu.Unlock()
	return r, nil
}

// Opens returns the number of acquisition attempts.
func (d *FakeDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Streams returns every stream granted so far.
func (d *FakeDevice) Streams() []*FakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeStream(nil), d.streams...)
}

// LastRecorder returns the most recently created recorder, or nil.
func (d *FakeDevice) LastRecorder() *FakeRecorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.recorders) == 0 {
		return nil
	}
	return d.recorders[len(d.recorders)-1]
}

// LiveStreams counts granted streams with at least one live track.
func (d *FakeDevice) LiveStreams() int {
	n := 0
	for _, s := range d.Streams() {
		if s.Live() {
			n++
		}
	}
	return n
}

var _ ports.Device = (*FakeDevice)(nil)
