// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session implements the recording session state machine.
//
// All state lives on one goroutine (Run). Caller operations, ticks,
// recorder deliveries and acquisition completions are messages on that
// loop, so no two of them ever execute concurrently.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/devices"
	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// ErrNoArtifact is returned when no recording has been published.
var ErrNoArtifact = errors.New("no recorded artifact")

type cmdKind int

const (
	cmdOp cmdKind = iota
	cmdSnapshot
	cmdArtifact
	cmdAwaitArtifact
	cmdSetMaxDuration
)

type command struct {
	kind        cmdKind
	op          lifecycle.Op
	ctx         context.Context
	maxDuration time.Duration
	reply       chan reply
}

type reply struct {
	err      error
	snap     model.Snapshot
	artifact *model.Artifact
}

type acquirePurpose int

const (
	acquirePreview acquirePurpose = iota
	acquireStart
)

func (p acquirePurpose) String() string {
	if p == acquireStart {
		return "start"
	}
	return "preview"
}

type acquireResult struct {
	seq     uint64
	purpose acquirePurpose
	session *model.MediaSession
	err     error
}

// Controller drives one recording session over a device manager.
type Controller struct {
	devices  *devices.Manager
	opts     Options
	logger   zerolog.Logger
	tracer   trace.Tracer
	chunkLog rate.Sometimes

	cmds      chan command
	acquired  chan acquireResult
	runEvents chan runEvent

	reg       registry
	running   atomic.Bool
	closing   chan struct{}
	closeOnce sync.Once
	quit      chan struct{}
	quitOnce  sync.Once
	done      chan struct{}

	// Owned by the Run goroutine.
	loopCtx         context.Context
	state           model.RecordingState
	elapsed         int
	maxDuration     time.Duration
	ticker          ports.Ticker
	tickC           <-chan time.Time
	session         *model.MediaSession
	active          *recordingRun
	runs            map[uint64]*recordingRun
	runSeq          uint64
	artifact        *model.Artifact
	acquireSeq      uint64
	acquiring       bool
	pendingStart    *command
	artifactWaiters []command
}

// New creates a controller. Call Run to start it.
func New(dm *devices.Manager, opts Options) *Controller {
	opts = opts.withDefaults()
	logger := xglog.WithComponent("capture.session")
	if opts.Logger != nil {
		logger = opts.Logger.With().Str(xglog.FieldComponent, "capture.session").Logger()
	}
	return &Controller{
		devices:     dm,
		opts:        opts,
		logger:      logger,
		tracer:      telemetry.Tracer("vidrec/capture/session"),
		chunkLog:    rate.Sometimes{Interval: 5 * time.Second},
		cmds:        make(chan command),
		acquired:    make(chan acquireResult),
		runEvents:   make(chan runEvent, 64),
		closing:     make(chan struct{}),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		state:       model.StateIdle,
		maxDuration: opts.MaxDuration,
		runs:        make(map[uint64]*recordingRun),
	}
}

// Start acquires a fresh media session and begins recording.
// Only valid from idle; acquisition failures leave the machine idle.
func (c *Controller) Start(ctx context.Context) error {
	_, err := c.Apply(ctx, lifecycle.OpStart)
	return err
}

// Pause suspends recording and halts the elapsed-time ticker.
func (c *Controller) Pause(ctx context.Context) error {
	_, err := c.Apply(ctx, lifecycle.OpPause)
	return err
}

// Resume continues recording; elapsed time continues from its current value.
func (c *Controller) Resume(ctx context.Context) error {
	_, err := c.Apply(ctx, lifecycle.OpResume)
	return err
}

// Stop ends recording, releases the media session and resets elapsed time.
// The artifact is published once the recorder's final delivery arrives.
func (c *Controller) Stop(ctx context.Context) error {
	_, err := c.Apply(ctx, lifecycle.OpStop)
	return err
}

// DiscardArtifact clears the published artifact; when idle it requests a
// fresh preview grant.
func (c *Controller) DiscardArtifact(ctx context.Context) error {
	_, err := c.Apply(ctx, lifecycle.OpDiscard)
	return err
}

// Apply runs a caller operation and returns the snapshot taken right after
// it, also when the operation was rejected.
func (c *Controller) Apply(ctx context.Context, op lifecycle.Op) (model.Snapshot, error) {
	if op == lifecycle.OpRecorderEnded {
		return model.Snapshot{}, &lifecycle.TransitionError{Op: op, Reason: "internal_op"}
	}
	r := c.submit(ctx, command{kind: cmdOp, op: op})
	return r.snap, r.err
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot(ctx context.Context) (model.Snapshot, error) {
	r := c.submit(ctx, command{kind: cmdSnapshot})
	return r.snap, r.err
}

// Preview returns the live-stream handle, or nil while an artifact exists
// or no session is live.
func (c *Controller) Preview(ctx context.Context) (*model.Preview, error) {
	snap, err := c.Snapshot(ctx)
	return snap.Preview, err
}

// Artifact returns the published recording or ErrNoArtifact.
func (c *Controller) Artifact(ctx context.Context) (*model.Artifact, error) {
	r := c.submit(ctx, command{kind: cmdArtifact})
	return r.artifact, r.err
}

// AwaitArtifact blocks until an artifact is published and no stopped run
// is still draining.
func (c *Controller) AwaitArtifact(ctx context.Context) (*model.Artifact, error) {
	r := c.submit(ctx, command{kind: cmdAwaitArtifact})
	return r.artifact, r.err
}

// SetMaxDuration changes the displayed ceiling. It is not enforced.
func (c *Controller) SetMaxDuration(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return errors.New("max duration must be positive")
	}
	r := c.submit(ctx, command{kind: cmdSetMaxDuration, maxDuration: d})
	return r.err
}

func (c *Controller) submit(ctx context.Context, cmd command) reply {
	cmd.ctx = ctx
	cmd.reply = make(chan reply, 1)
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	case <-c.quit:
		return reply{err: lifecycle.ErrTornDown}
	}
	select {
	case r := <-cmd.reply:
		return r
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	case <-c.done:
		// The loop may have answered just before exiting.
		select {
		case r := <-cmd.reply:
			return r
		default:
			return reply{err: lifecycle.ErrTornDown}
		}
	}
}

// Close tears the controller down: the recorder is stopped, every track is
// released and the ticker halted. Late acquisition results are discarded.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	if c.running.Load() {
		<-c.done
		return nil
	}
	c.devices.Close()
	c.quitOnce.Do(func() { close(c.quit) })
	return nil
}

// Done is closed when Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Run owns the session state until ctx is cancelled or Close is called.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("capture controller already running")
	}
	defer close(c.done)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.loopCtx = loopCtx

	c.logger.Info().
		Str(xglog.FieldEvent, "capture.controller_started").
		Dur("max_duration", c.maxDuration).
		Dur("tick_interval", c.opts.TickInterval).
		Msg("capture controller started")

	c.publish()
	if c.opts.AcquireOnStart {
		c.beginAcquire(loopCtx, acquirePreview)
	}

	for {
		select {
		case <-loopCtx.Done():
			c.teardown()
			return nil
		case <-c.closing:
			cancel()
			c.teardown()
			return nil
		case cmd := <-c.cmds:
			c.handle(cmd)
		case res := <-c.acquired:
			c.onAcquired(res)
		case ev := <-c.runEvents:
			c.onRunEvent(ev)
		case <-c.tickC:
			c.onTick()
		}
	}
}
