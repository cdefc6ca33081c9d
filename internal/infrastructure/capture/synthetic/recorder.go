// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package synthetic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
)

// Header opens every synthetic recording, so even a stop before the first
// tick produces a non-empty file.
var Header = []byte("VIDREC-SYNTHETIC\n")

// Trailer is the final delivery that follows Stop.
var Trailer = []byte("END\n")

// Chunk returns the payload of the n-th tick (1-based).
func Chunk(n int) []byte {
	return []byte(fmt.Sprintf("chunk %06d\n", n))
}

type recorder struct {
	stream   *stream
	clock    ports.Clock
	interval time.Duration

	mu      sync.Mutex
	started bool

	stopOnce sync.Once
	stopCh   chan struct{}
	pauseCh  chan bool
	done     chan struct{}
	events   chan ports.RecorderEvent
}

var errNotRunning = errors.New("synthetic recorder is not running")

func newRecorder(s *stream, clock ports.Clock, interval time.Duration) *recorder {
	return &recorder{
		stream:   s,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
		pauseCh:  make(chan bool),
		done:     make(chan struct{}),
		events:   make(chan ports.RecorderEvent, 64),
	}
}

func (r *recorder) Events() <-chan ports.RecorderEvent { return r.events }

func (r *recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("synthetic recorder already started")
	}
	if r.stopped() {
		return errors.New("synthetic recorder already stopped")
	}
	if !r.stream.live() {
		return fmt.Errorf("%w: stream %s was released", ports.ErrNotReadable, r.stream.id)
	}
	r.started = true

	ticker := r.clock.NewTicker(r.interval)
	go r.run(ctx, ticker)
	return nil
}

func (r *recorder) run(ctx context.Context, ticker ports.Ticker) {
	defer close(r.done)
	defer close(r.events)
	defer ticker.Stop()

	r.events <- ports.RecorderEvent{Kind: ports.RecorderData, Data: append([]byte(nil), Header...)}
	n := 0
	paused := false
	for {
		select {
		case paused = <-r.pauseCh:
		case <-ticker.C():
			// A tick already taken is emitted even when Stop raced it.
			if paused {
				continue
			}
			if !r.stream.live() {
				r.events <- ports.RecorderEvent{Kind: ports.RecorderError, Err: fmt.Errorf("%w: tracks stopped", ports.ErrNotReadable)}
				return
			}
			n++
			r.events <- ports.RecorderEvent{Kind: ports.RecorderData, Data: Chunk(n)}
		case <-r.stopCh:
			r.finish()
			return
		case <-ctx.Done():
			r.finish()
			return
		}
	}
}

func (r *recorder) finish() {
	r.events <- ports.RecorderEvent{Kind: ports.RecorderData, Data: append([]byte(nil), Trailer...)}
}

func (r *recorder) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// Pause and Resume are applied by the delivery loop, so a tick already
// taken is emitted before the change.
func (r *recorder) Pause() error  { return r.setPaused(true) }
func (r *recorder) Resume() error { return r.setPaused(false) }

func (r *recorder) setPaused(p bool) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started || r.stopped() {
		return errNotRunning
	}
	select {
	case r.pauseCh <- p:
		return nil
	case <-r.done:
		return errNotRunning
	}
}

// Stop requests the trailer and returns. Events closes after it.
func (r *recorder) Stop() error {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		started := r.started
		close(r.stopCh)
		r.mu.Unlock()
		if !started {
			close(r.events)
		}
	})
	return nil
}

var _ ports.Recorder = (*recorder)(nil)
