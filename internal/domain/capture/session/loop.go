// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/devices"
	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/metrics"
	"github.com/ManuGH/vidrec/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

func (c *Controller) handle(cmd command) {
	switch cmd.kind {
	case cmdSnapshot:
		cmd.reply <- reply{snap: c.snapshot()}
	case cmdArtifact:
		if c.artifact == nil {
			cmd.reply <- reply{err: ErrNoArtifact}
			return
		}
		art := *c.artifact
		cmd.reply <- reply{artifact: &art}
	case cmdAwaitArtifact:
		if c.artifact != nil && !c.draining() {
			art := *c.artifact
			cmd.reply <- reply{artifact: &art}
			return
		}
		c.artifactWaiters = append(c.artifactWaiters, cmd)
	case cmdSetMaxDuration:
		c.maxDuration = cmd.maxDuration
		c.logger.Info().Dur("max_duration", c.maxDuration).Msg("displayed recording ceiling changed")
		cmd.reply <- reply{snap: c.snapshot()}
		c.publish()
	case cmdOp:
		c.handleOp(cmd)
	}
}

func (c *Controller) handleOp(cmd command) {
	_, span := c.tracer.Start(cmd.ctx, "capture."+cmd.op.String(),
		trace.WithAttributes(telemetry.OperationAttributes(cmd.op.String(), c.state.String(), c.elapsed)...))
	defer span.End()

	if err := c.check(cmd.op); err != nil {
		metrics.RecordInvalidTransition(cmd.op.String(), c.state.String())
		c.logger.Debug().
			Err(err).
			Str(xglog.FieldEvent, "capture.invalid_transition").
			Str(xglog.FieldOperation, cmd.op.String()).
			Msg("operation ignored")
		cmd.reply <- reply{err: err, snap: c.snapshot()}
		return
	}

	switch cmd.op {
	case lifecycle.OpStart:
		c.doStart(cmd)
		return
	case lifecycle.OpPause:
		if err := c.active.session.Recorder.Pause(); err != nil {
			telemetry.RecordError(span, err, lifecycle.ClassInternal)
			cmd.reply <- reply{err: fmt.Errorf("pause recorder: %w", err), snap: c.snapshot()}
			return
		}
		c.stopTicker()
		c.transition(lifecycle.OpPause)
	case lifecycle.OpResume:
		if err := c.active.session.Recorder.Resume(); err != nil {
			telemetry.RecordError(span, err, lifecycle.ClassInternal)
			cmd.reply <- reply{err: fmt.Errorf("resume recorder: %w", err), snap: c.snapshot()}
			return
		}
		c.transition(lifecycle.OpResume)
		c.startTicker()
	case lifecycle.OpStop:
		c.doStop()
	case lifecycle.OpDiscard:
		c.doDiscard(cmd.ctx)
	}

	cmd.reply <- reply{snap: c.snapshot()}
	c.publish()
}

func (c *Controller) check(op lifecycle.Op) error {
	if err := lifecycle.Check(c.state, op); err != nil {
		return err
	}
	if op == lifecycle.OpStart && c.pendingStart != nil {
		return &lifecycle.TransitionError{Op: op, State: c.state, Reason: "start_in_progress"}
	}
	return nil
}

// doStart requests a fresh grant; the reply is sent once it completes.
func (c *Controller) doStart(cmd command) {
	c.pendingStart = &cmd
	c.beginAcquire(trace.ContextWithSpan(c.loopCtx, trace.SpanFromContext(cmd.ctx)), acquireStart)
	c.publish()
}

func (c *Controller) doStop() {
	run := c.active
	c.active = nil
	run.stopped = true
	run.duration = time.Duration(c.elapsed) * c.opts.TickInterval

	// Release stops the recorder before its tracks.
	c.devices.Release(run.session)
	c.session = nil

	c.stopTicker()
	c.transition(lifecycle.OpStop)
	c.setElapsed(0)
}

func (c *Controller) doDiscard(ctx context.Context) {
	had := c.artifact != nil
	c.artifact = nil
	for _, r := range c.runs {
		if r.stopped {
			r.discarded = true
		}
	}
	c.logger.Info().
		Str(xglog.FieldEvent, "capture.artifact_discarded").
		Bool("had_artifact", had).
		Msg("artifact discarded")

	if c.state == model.StateIdle && !c.acquiring {
		c.beginAcquire(trace.ContextWithSpan(c.loopCtx, trace.SpanFromContext(ctx)), acquirePreview)
	}
}

func (c *Controller) beginAcquire(ctx context.Context, purpose acquirePurpose) {
	c.acquireSeq++
	seq := c.acquireSeq
	c.acquiring = true

	ok := c.reg.Go(func() {
		sess, err := c.devices.Acquire(ctx)
		select {
		case c.acquired <- acquireResult{seq: seq, purpose: purpose, session: sess, err: err}:
		case <-c.quit:
			c.devices.Release(sess)
		}
	})
	if !ok {
		c.acquiring = false
	}
}

func (c *Controller) onAcquired(res acquireResult) {
	if res.seq != c.acquireSeq {
		// Superseded by a newer request; the manager already invalidated it.
		c.devices.Release(res.session)
		return
	}
	c.acquiring = false

	if res.purpose == acquirePreview {
		if res.err == nil {
			c.session = res.session
		}
		c.publish()
		return
	}

	cmd := c.pendingStart
	c.pendingStart = nil
	if res.err != nil {
		c.session = nil
		c.reply(cmd, res.err)
		c.publish()
		return
	}
	c.beginRecording(cmd, res.session)
}

func (c *Controller) beginRecording(cmd *command, sess *model.MediaSession) {
	rec := sess.Recorder
	if err := rec.Start(c.loopCtx); err != nil {
		c.devices.Release(sess)
		c.session = nil
		c.reply(cmd, &lifecycle.AcquireError{Class: lifecycle.ErrDeviceUnavailable, Cause: err})
		c.publish()
		return
	}

	c.runSeq++
	run := &recordingRun{id: c.runSeq, session: sess}
	c.runs[run.id] = run
	c.active = run
	c.session = sess
	// A new recording supersedes an artifact nobody discarded.
	c.artifact = nil

	events := rec.Events()
	c.reg.Go(func() { c.forward(run.id, events) })

	c.transition(lifecycle.OpStart)
	c.setElapsed(0)
	c.startTicker()

	c.reply(cmd, nil)
	c.publish()
}

// forward relays one recorder's events onto the loop, in order, followed by
// a closed marker. After teardown it drains the recorder so it can exit.
func (c *Controller) forward(runID uint64, events <-chan ports.RecorderEvent) {
	for ev := range events {
		select {
		case c.runEvents <- runEvent{runID: runID, ev: ev}:
		case <-c.quit:
			for range events {
			}
			return
		}
	}
	select {
	case c.runEvents <- runEvent{runID: runID, closed: true}:
	case <-c.quit:
	}
}

func (c *Controller) onRunEvent(e runEvent) {
	run, ok := c.runs[e.runID]
	if !ok {
		return
	}
	if e.closed {
		delete(c.runs, run.id)
		c.finishRun(run)
		return
	}

	switch e.ev.Kind {
	case ports.RecorderData:
		metrics.RecordChunk(len(e.ev.Data))
		if run.acc.add(e.ev.Data) {
			c.chunkLog.Do(func() {
				c.logger.Debug().
					Str(xglog.FieldSessionID, run.session.ID).
					Int(xglog.FieldChunkBytes, len(e.ev.Data)).
					Int("buffered_bytes", run.acc.size).
					Int("chunks", len(run.acc.chunks)).
					Msg("recording data accumulated")
			})
		}
	case ports.RecorderError:
		err := devices.Classify(e.ev.Err)
		class := lifecycle.ErrorClass(err)
		metrics.CaptureRecorderErrorsTotal.WithLabelValues(class).Inc()
		// A refusal before any data means the grant never produced media.
		if errors.Is(err, lifecycle.ErrPermissionDenied) && run.acc.size == 0 {
			run.denied = err
		}
		c.logger.Warn().
			Err(e.ev.Err).
			Str(xglog.FieldEvent, "capture.recorder_error").
			Str(xglog.FieldErrorClass, class).
			Str(xglog.FieldSessionID, run.session.ID).
			Msg("recorder reported an error")
	}
}

// finishRun packages a run whose recorder has delivered its last event.
func (c *Controller) finishRun(run *recordingRun) {
	if run == c.active {
		// The recorder ended without Stop; finalize as if stopped.
		c.logger.Warn().
			Str(xglog.FieldEvent, "capture.recorder_ended").
			Str(xglog.FieldSessionID, run.session.ID).
			Msg("recorder ended unexpectedly")
		c.active = nil
		run.stopped = true
		run.duration = time.Duration(c.elapsed) * c.opts.TickInterval
		if run.denied != nil {
			c.devices.MarkDenied(run.session)
		}
		c.devices.Release(run.session)
		c.session = nil
		c.stopTicker()
		c.transition(lifecycle.OpRecorderEnded)
		c.setElapsed(0)
	}

	if run.discarded {
		c.publish()
		return
	}
	if run.denied != nil {
		c.logger.Warn().
			Err(run.denied).
			Str(xglog.FieldEvent, "capture.recording_denied").
			Str(xglog.FieldSessionID, run.session.ID).
			Msg("recorder was refused access, no artifact published")
		if !c.draining() {
			for _, w := range c.artifactWaiters {
				w.reply <- reply{err: run.denied}
			}
			c.artifactWaiters = nil
		}
		c.publish()
		return
	}

	art := run.acc.pack(c.opts.MediaType, c.opts.FileName, c.opts.Clock.Now(), run.duration)
	c.artifact = art
	metrics.CaptureArtifactBytes.Observe(float64(art.Size()))
	c.logger.Info().
		Str(xglog.FieldEvent, "capture.artifact_published").
		Str(xglog.FieldSessionID, run.session.ID).
		Int(xglog.FieldArtifactLen, art.Size()).
		Int("chunks", len(run.acc.chunks)).
		Dur("duration", art.Duration).
		Msg("recording packaged")

	if !c.draining() {
		for _, w := range c.artifactWaiters {
			cp := *art
			w.reply <- reply{artifact: &cp}
		}
		c.artifactWaiters = nil
	}
	c.publish()
}

func (c *Controller) draining() bool {
	for _, r := range c.runs {
		if r.stopped {
			return true
		}
	}
	return false
}

func (c *Controller) onTick() {
	c.setElapsed(c.elapsed + 1)
	metrics.CaptureTicksTotal.Inc()
	c.publish()
}

func (c *Controller) setElapsed(v int) {
	c.elapsed = v
	metrics.CaptureElapsedSeconds.Set(float64(v))
}

// startTicker replaces the ticker. The loop selects only on the current
// ticker's channel, so two tickers can never both drive elapsed time.
func (c *Controller) startTicker() {
	c.stopTicker()
	c.ticker = c.opts.Clock.NewTicker(c.opts.TickInterval)
	c.tickC = c.ticker.C()
}

func (c *Controller) stopTicker() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
	c.tickC = nil
}

func (c *Controller) transition(op lifecycle.Op) {
	tr, ok := lifecycle.TransitionFor(c.state, op)
	if !ok {
		c.logger.Error().
			Str(xglog.FieldOperation, op.String()).
			Str(xglog.FieldOldState, c.state.String()).
			Msg("transition missing from table")
		return
	}
	old := c.state
	c.state = tr.To
	metrics.RecordTransition(old.String(), tr.To.String())
	c.logger.Info().
		Str(xglog.FieldEvent, "capture.transition").
		Str(xglog.FieldOperation, op.String()).
		Str(xglog.FieldOldState, old.String()).
		Str(xglog.FieldNewState, tr.To.String()).
		Int(xglog.FieldElapsed, c.elapsed).
		Msg("recording state changed")
}

func (c *Controller) reply(cmd *command, err error) {
	if cmd == nil {
		return
	}
	cmd.reply <- reply{err: err, snap: c.snapshot()}
}

func (c *Controller) snapshot() model.Snapshot {
	s := model.Snapshot{
		State:            c.state,
		Recording:        c.state.Active(),
		Paused:           c.state == model.StatePaused,
		Elapsed:          c.elapsed,
		MaxDuration:      int(c.maxDuration / time.Second),
		Acquiring:        c.acquiring,
		PermissionDenied: c.devices.PermissionDenied(),
		HasArtifact:      c.artifact != nil,
		ArtifactSize:     c.artifact.Size(),
	}
	if c.artifact == nil {
		s.Preview = c.session.Preview()
	}
	return s
}

func (c *Controller) publish() {
	if c.opts.Publisher == nil || c.loopCtx == nil || c.loopCtx.Err() != nil {
		return
	}
	if err := c.opts.Publisher.Publish(c.loopCtx, TopicSnapshot, c.snapshot()); err != nil {
		c.logger.Debug().Err(err).Msg("snapshot publish failed")
	}
}

func (c *Controller) teardown() {
	c.stopTicker()
	if c.active != nil {
		_ = c.active.session.Recorder.Stop()
		c.active = nil
	}
	c.devices.Close()
	c.session = nil
	c.quitOnce.Do(func() { close(c.quit) })

	c.reply(c.pendingStart, lifecycle.ErrTornDown)
	c.pendingStart = nil
	for _, w := range c.artifactWaiters {
		w.reply <- reply{err: lifecycle.ErrTornDown}
	}
	c.artifactWaiters = nil
	c.setElapsed(0)

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DrainTimeout)
	defer cancel()
	if err := c.reg.CloseAndWait(ctx); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "capture.drain_timeout").Msg("capture workers did not drain in time")
	}
	c.logger.Info().Str(xglog.FieldEvent, "capture.controller_stopped").Msg("capture controller stopped")
}
