// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/procgroup"
	"github.com/rs/zerolog"
)

var errNotRunning = errors.New("ffmpeg recorder is not running")

// recorder runs one ffmpeg process. Stdout is cut into fixed-size chunks;
// the final chunks arrive after SIGINT lets ffmpeg close the container.
type recorder struct {
	bin    string
	args   []string
	stream *stream
	chunk  int
	grace  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	paused  bool

	stopping atomic.Bool
	stopOnce sync.Once

	stderr *lineRing
	events chan ports.RecorderEvent
	waitCh chan error
	exited chan struct{}
}

func newRecorder(bin string, args []string, s *stream, chunk int, grace time.Duration, logger zerolog.Logger) *recorder {
	return &recorder{
		bin:    bin,
		args:   args,
		stream: s,
		chunk:  chunk,
		grace:  grace,
		logger: logger,
		stderr: newLineRing(32),
		events: make(chan ports.RecorderEvent, 16),
		waitCh: make(chan error, 1),
		exited: make(chan struct{}),
	}
}

func (r *recorder) Events() <-chan ports.RecorderEvent { return r.events }

// Start spawns ffmpeg in its own process group. Cancelling ctx behaves
// like Stop.
func (r *recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopping.Load() {
		return errors.New("ffmpeg recorder already used")
	}
	if !r.stream.live() {
		return fmt.Errorf("%w: stream %s was released", ports.ErrNotReadable, r.stream.id)
	}

	cmd := exec.Command(r.bin, r.args...) // #nosec G204 -- args are built without a shell
	procgroup.Set(cmd)
	cmd.Stderr = r.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	r.cmd = cmd
	r.started = true

	r.logger.Info().
		Str(xglog.FieldEvent, "capture.ffmpeg_started").
		Int(xglog.FieldPID, cmd.Process.Pid).
		Strs("args", r.args).
		Msg("ffmpeg capture started")

	go r.pump(stdout)
	go func() {
		select {
		case <-ctx.Done():
			_ = r.Stop()
		case <-r.exited:
		}
	}()
	return nil
}

// pump forwards stdout until EOF, reaps the process and closes Events.
func (r *recorder) pump(stdout io.Reader) {
	defer close(r.exited)

	var readErr error
	for {
		buf := make([]byte, r.chunk)
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			r.events <- ports.RecorderEvent{Kind: ports.RecorderData, Data: buf[:n]}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := r.cmd.Wait()
	r.waitCh <- waitErr

	if !r.stopping.Load() {
		if err := r.exitError(waitErr, readErr); err != nil {
			r.events <- ports.RecorderEvent{Kind: ports.RecorderError, Err: err}
		}
		r.logger.Warn().
			Err(waitErr).
			Str(xglog.FieldEvent, "capture.ffmpeg_exited").
			Strs("stderr", r.stderr.Lines()).
			Msg("ffmpeg exited without stop")
	}
	close(r.events)
}

func (r *recorder) exitError(waitErr, readErr error) error {
	if waitErr == nil && readErr == nil {
		return nil
	}
	if cause := classifyStderr(r.stderr.Lines()); cause != nil {
		return fmt.Errorf("ffmpeg exited: %w", cause)
	}
	if readErr != nil {
		return fmt.Errorf("read ffmpeg output: %w", readErr)
	}
	return fmt.Errorf("ffmpeg exited: %w", waitErr)
}

// Pause suspends the process group. Stdout stays open.
func (r *recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopping.Load() {
		return errNotRunning
	}
	if r.paused {
		return nil
	}
	if err := procgroup.Suspend(r.cmd); err != nil {
		return fmt.Errorf("suspend ffmpeg: %w", err)
	}
	r.paused = true
	return nil
}

func (r *recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopping.Load() {
		return errNotRunning
	}
	if !r.paused {
		return nil
	}
	if err := procgroup.Continue(r.cmd); err != nil {
		return fmt.Errorf("continue ffmpeg: %w", err)
	}
	r.paused = false
	return nil
}

// Stop asks ffmpeg to finish the container (SIGINT) and returns at once.
// After the grace period the group is killed. Events closes once the
// remaining output has been delivered.
func (r *recorder) Stop() error {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopping.Store(true)
		cmd, started, paused := r.cmd, r.started, r.paused
		r.paused = false
		r.mu.Unlock()

		if !started {
			close(r.events)
			return
		}
		go func() {
			if paused {
				// A stopped process would not act on SIGINT.
				_ = procgroup.Continue(cmd)
			}
			began := time.Now()
			err := procgroup.Terminate(cmd, r.waitCh, syscall.SIGINT, r.grace)
			r.logger.Info().
				Err(err).
				Str(xglog.FieldEvent, "capture.ffmpeg_stopped").
				Int(xglog.FieldPID, cmd.Process.Pid).
				Dur("took", time.Since(began)).
				Msg("ffmpeg capture stopped")
		}()
	})
	return nil
}

var _ ports.Recorder = (*recorder)(nil)
