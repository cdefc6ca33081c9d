// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"context"
	"sync"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
)

// FakeRecorder is a scripted recorder. Tests push data with Deliver; Stop
// emits FinalChunk (when non-nil) and then closes the event channel.
type FakeRecorder struct {
	mu      sync.Mutex
	events  chan ports.RecorderEvent
	calls   []string
	stopped bool
	closed  bool

	// StartErr is returned by Start.
	StartErr error
	// FinalChunk is delivered after Stop, before the channel closes.
	FinalChunk []byte
	// HoldFinal, when set, delays the final delivery until it is closed.
	HoldFinal chan struct{}
}

// NewFakeRecorder returns a recorder with a buffered event channel.
func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{events: make(chan ports.RecorderEvent, 64)}
}

func (r *FakeRecorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *FakeRecorder) Start(_ context.Context) error {
	r.record("start")
	return r.StartErr
}

func (r *FakeRecorder) Pause() error {
	r.record("pause")
	return nil
}

func (r *FakeRecorder) Resume() error {
	r.record("resume")
	return nil
}

func (r *FakeRecorder) Stop() error {
	r.mu.Lock()
	r.calls = append(r.calls, "stop")
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	final, hold := r.FinalChunk, r.HoldFinal
	r.mu.Unlock()

	go func() {
		if hold != nil {
			<-hold
		}
		if final != nil {
			r.send(ports.RecorderEvent{Kind: ports.RecorderData, Data: final})
		}
		r.close()
	}()
	return nil
}

func (r *FakeRecorder) Events() <-chan ports.RecorderEvent { return r.events }

// Deliver pushes a data event. Deliveries after the channel closed are dropped.
func (r *FakeRecorder) Deliver(data []byte) {
	r.send(ports.RecorderEvent{Kind: ports.RecorderData, Data: data})
}

// Fail pushes an asynchronous error event.
func (r *FakeRecorder) Fail(err error) {
	r.send(ports.RecorderEvent{Kind: ports.RecorderError, Err: err})
}

// End closes the event channel without a Stop, as if the device vanished.
func (r *FakeRecorder) End() {
	r.close()
}

func (r *FakeRecorder) send(ev ports.RecorderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.events <- ev
}

func (r *FakeRecorder) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
}

// Calls returns the recorded method calls in order.
func (r *FakeRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Stopped reports whether Stop was called.
func (r *FakeRecorder) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

var _ ports.Recorder = (*FakeRecorder)(nil)
