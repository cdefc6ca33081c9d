// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ManuGH/vidrec/internal/bus"
	"github.com/ManuGH/vidrec/internal/domain/capture/devices"
	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	"github.com/ManuGH/vidrec/internal/domain/capture/testkit"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type harness struct {
	t     *testing.T
	dev   *testkit.FakeDevice
	clock *testkit.FakeClock
	ctrl  *Controller
	runCh chan error
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	dev := testkit.NewFakeDevice()
	clock := testkit.NewFakeClock(time.Unix(1_700_000_000, 0))
	dm := devices.NewManager(dev, devices.Options{Clock: clock, Backend: "fake"})

	opts := Options{Clock: clock, DrainTimeout: 2 * time.Second}
	if mutate != nil {
		mutate(&opts)
	}
	h := &harness{t: t, dev: dev, clock: clock, ctrl: New(dm, opts), runCh: make(chan error, 1)}
	return h
}

func (h *harness) run() *harness {
	go func() { h.runCh <- h.ctrl.Run(context.Background()) }()
	h.t.Cleanup(h.close)
	return h
}

func (h *harness) close() {
	require.NoError(h.t, h.ctrl.Close())
	select {
	case err := <-h.runCh:
		require.NoError(h.t, err)
	case <-time.After(5 * time.Second):
		h.t.Fatal("controller did not stop")
	}
}

func (h *harness) snap() model.Snapshot {
	h.t.Helper()
	s, err := h.ctrl.Snapshot(context.Background())
	require.NoError(h.t, err)
	return s
}

func (h *harness) elapsed() int { return h.snap().Elapsed }

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
	}
}

func (h *harness) waitIdleAcquisition() {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return !h.snap().Acquiring }, 2*time.Second, time.Millisecond)
}

func (h *harness) awaitArtifact() *model.Artifact {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	art, err := h.ctrl.AwaitArtifact(ctx)
	require.NoError(h.t, err)
	return art
}

func TestInitialPreviewAcquisition(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AcquireOnStart = true }).run()
	h.waitIdleAcquisition()

	s := h.snap()
	require.Equal(t, model.StateIdle, s.State)
	require.NotNil(t, s.Preview)
	require.Len(t, s.Preview.Tracks, 2)
	require.Equal(t, 1, h.dev.Opens())
}

func TestScenarioPauseResumeStop(t *testing.T) {
	h := newHarness(t, nil).run()

	require.NoError(t, h.ctrl.Start(context.Background()))
	var readings []int
	for i := 0; i < 5; i++ {
		h.tick(1)
		readings = append(readings, h.elapsed())
	}
	require.Equal(t, []int{1, 2, 3, 4, 5}, readings)

	require.NoError(t, h.ctrl.Pause(context.Background()))
	for i := 0; i < 3; i++ {
		h.tick(1)
		require.Equal(t, 5, h.elapsed(), "elapsed must be frozen while paused")
	}
	require.True(t, h.snap().Paused)

	require.NoError(t, h.ctrl.Resume(context.Background()))
	require.Equal(t, 5, h.elapsed(), "resume continues from the current value")
	h.tick(4)
	require.Equal(t, 9, h.elapsed())

	require.NoError(t, h.ctrl.Stop(context.Background()))
	s := h.snap()
	require.Equal(t, 0, s.Elapsed)
	require.Equal(t, model.StateIdle, s.State)
	require.False(t, s.Recording)
	require.False(t, s.Paused)
}

func TestElapsedMonotonicWhileRecording(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))

	prev := h.elapsed()
	for i := 0; i < 10; i++ {
		h.clock.Advance(500 * time.Millisecond)
		cur := h.elapsed()
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	require.Equal(t, 5, prev)
}

func TestPauseThenResumeKeepsElapsed(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.tick(3)

	require.NoError(t, h.ctrl.Pause(context.Background()))
	require.NoError(t, h.ctrl.Resume(context.Background()))

	s := h.snap()
	require.Equal(t, 3, s.Elapsed)
	require.Equal(t, model.StateRecording, s.State)
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	h := newHarness(t, nil).run()
	before := h.snap()

	err := h.ctrl.Stop(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	after := h.snap()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("stop while idle changed state (-before +after):\n%s", diff)
	}
	require.False(t, after.HasArtifact)
	require.Equal(t, 0, h.dev.Opens(), "stop must not trigger acquisition")
}

func TestPauseAndResumeRejectedOutsideTheirStates(t *testing.T) {
	h := newHarness(t, nil).run()

	require.ErrorIs(t, h.ctrl.Pause(context.Background()), lifecycle.ErrInvalidTransition)
	require.ErrorIs(t, h.ctrl.Resume(context.Background()), lifecycle.ErrInvalidTransition)

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.ErrorIs(t, h.ctrl.Resume(context.Background()), lifecycle.ErrInvalidTransition)
	require.NoError(t, h.ctrl.Pause(context.Background()))
	require.ErrorIs(t, h.ctrl.Pause(context.Background()), lifecycle.ErrInvalidTransition)

	rec := h.dev.LastRecorder()
	require.Equal(t, []string{"start", "pause"}, rec.Calls())
}

func TestDoubleStartKeepsSingleTicker(t *testing.T) {
	h := newHarness(t, nil).run()

	require.NoError(t, h.ctrl.Start(context.Background()))
	err := h.ctrl.Start(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	require.Equal(t, 1, h.clock.LiveTickers())
	require.Equal(t, 1, h.dev.Opens(), "rejected start must not acquire")

	h.tick(3)
	require.Equal(t, 3, h.elapsed(), "one increment per second, never two")
}

func TestTickerCountAcrossPauseResume(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.Pause(context.Background()))
	require.Equal(t, 0, h.clock.LiveTickers())
	require.NoError(t, h.ctrl.Resume(context.Background()))
	require.Equal(t, 1, h.clock.LiveTickers())
	require.NoError(t, h.ctrl.Stop(context.Background()))
	require.Equal(t, 0, h.clock.LiveTickers())
}

func TestStopPackagesChunksInOrder(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	rec := h.dev.LastRecorder()

	rec.Deliver([]byte("A"))
	rec.Deliver(nil)
	rec.Deliver([]byte("B"))
	rec.Deliver([]byte{})
	rec.Deliver([]byte("C"))
	h.tick(2)

	require.NoError(t, h.ctrl.Stop(context.Background()))
	art := h.awaitArtifact()
	require.Equal(t, []byte("ABC"), art.Data)
	require.Equal(t, "video/webm", art.MediaType)
	require.Equal(t, "RecordedVideo.webm", art.FileName)
	require.Equal(t, 2*time.Second, art.Duration)

	s := h.snap()
	require.True(t, s.HasArtifact)
	require.Equal(t, 3, s.ArtifactSize)
	require.Nil(t, s.Preview, "preview is hidden while an artifact exists")
}

func TestStopWithoutChunksYieldsEmptyArtifact(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.Stop(context.Background()))

	art := h.awaitArtifact()
	require.NotNil(t, art)
	require.Empty(t, art.Data)
	require.True(t, h.snap().HasArtifact)
}

func TestPackagingWaitsForFinalDelivery(t *testing.T) {
	hold := make(chan struct{})
	h := newHarness(t, nil)
	h.dev.NewRecorderFunc = func() *testkit.FakeRecorder {
		r := testkit.NewFakeRecorder()
		r.FinalChunk = []byte("Z")
		r.HoldFinal = hold
		return r
	}
	h.run()

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.dev.LastRecorder().Deliver([]byte("A"))
	require.NoError(t, h.ctrl.Stop(context.Background()))

	require.Equal(t, 0, h.elapsed())
	_, err := h.ctrl.Artifact(context.Background())
	require.ErrorIs(t, err, ErrNoArtifact, "artifact must not be packaged before the final delivery")

	close(hold)
	art := h.awaitArtifact()
	require.Equal(t, []byte("AZ"), art.Data)
}

func TestStopReleasesTracks(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Equal(t, 1, h.dev.LiveStreams())

	require.NoError(t, h.ctrl.Stop(context.Background()))
	require.Equal(t, 0, h.dev.LiveStreams())
	rec := h.dev.LastRecorder()
	require.True(t, rec.Stopped())
	stops := 0
	for _, c := range rec.Calls() {
		if c == "stop" {
			stops++
		}
	}
	require.Equal(t, 1, stops, "stop reaches the recorder once")
}

func TestStartAcquiresFreshSession(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AcquireOnStart = true }).run()
	h.waitIdleAcquisition()
	preview := h.snap().Preview
	require.NotNil(t, preview)

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Equal(t, 2, h.dev.Opens())
	streams := h.dev.Streams()
	require.False(t, streams[0].Live(), "preview grant must be released before recording")
	require.True(t, streams[1].Live())
	require.NotEqual(t, preview.SessionID, h.snap().Preview.SessionID)

	require.NoError(t, h.ctrl.Stop(context.Background()))
	h.awaitArtifact()
	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Equal(t, 3, h.dev.Opens(), "every start is a new grant")
}

func TestPermissionDeniedThenSuccessClears(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.FailNext(fmt.Errorf("NotAllowedError: %w", ports.ErrNotAllowed))
	h.run()

	err := h.ctrl.Start(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrPermissionDenied)
	s := h.snap()
	require.True(t, s.PermissionDenied)
	require.Equal(t, model.StateIdle, s.State)
	require.Equal(t, 0, h.clock.LiveTickers())

	require.ErrorIs(t, h.ctrl.Pause(context.Background()), lifecycle.ErrInvalidTransition)
	require.ErrorIs(t, h.ctrl.Stop(context.Background()), lifecycle.ErrInvalidTransition)

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.False(t, h.snap().PermissionDenied)
}

func TestDeviceUnavailableLeavesPermissionUntouched(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.FailNext(errors.New("no camera attached"))
	h.run()

	err := h.ctrl.Start(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrDeviceUnavailable)
	require.NotErrorIs(t, err, lifecycle.ErrPermissionDenied)
	require.False(t, h.snap().PermissionDenied)
	require.Equal(t, model.StateIdle, h.snap().State)
}

func TestRecorderStartFailureReleasesSession(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.NewRecorderFunc = func() *testkit.FakeRecorder {
		r := testkit.NewFakeRecorder()
		r.StartErr = errors.New("encoder init failed")
		return r
	}
	h.run()

	err := h.ctrl.Start(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrDeviceUnavailable)
	require.Equal(t, model.StateIdle, h.snap().State)
	require.Equal(t, 0, h.dev.LiveStreams())
}

func TestDiscardClearsArtifactAndReacquires(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.dev.LastRecorder().Deliver([]byte("data"))
	require.NoError(t, h.ctrl.Stop(context.Background()))
	h.awaitArtifact()

	opens := h.dev.Opens()
	require.NoError(t, h.ctrl.DiscardArtifact(context.Background()))

	s := h.snap()
	require.False(t, s.HasArtifact)
	_, err := h.ctrl.Artifact(context.Background())
	require.ErrorIs(t, err, ErrNoArtifact)

	require.Eventually(t, func() bool {
		return h.dev.Opens() == opens+1 && h.snap().Preview != nil
	}, 2*time.Second, time.Millisecond, "discard must request a fresh session")
}

func TestDiscardWhileRecordingOnlyClearsArtifact(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	opens := h.dev.Opens()

	require.NoError(t, h.ctrl.DiscardArtifact(context.Background()))
	require.Equal(t, model.StateRecording, h.snap().State)
	require.Equal(t, opens, h.dev.Opens())
}

func TestDiscardBeforeFinalDeliveryDropsPendingArtifact(t *testing.T) {
	hold := make(chan struct{})
	h := newHarness(t, nil)
	h.dev.NewRecorderFunc = func() *testkit.FakeRecorder {
		r := testkit.NewFakeRecorder()
		r.HoldFinal = hold
		return r
	}
	h.run()

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.Stop(context.Background()))
	require.NoError(t, h.ctrl.DiscardArtifact(context.Background()))
	close(hold)

	h.waitIdleAcquisition()
	require.Never(t, func() bool { return h.snap().HasArtifact }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestRecorderEndingUnexpectedlyFinalizes(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	rec := h.dev.LastRecorder()
	rec.Deliver([]byte("partial"))
	rec.Fail(errors.New("usb disconnect"))
	h.tick(2)
	rec.End()

	art := h.awaitArtifact()
	require.Equal(t, []byte("partial"), art.Data)
	s := h.snap()
	require.Equal(t, model.StateIdle, s.State)
	require.Equal(t, 0, s.Elapsed)
	require.Equal(t, 0, h.clock.LiveTickers())
	require.Equal(t, 0, h.dev.LiveStreams())
}

func TestRecorderDenialBeforeDataSetsPermissionState(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	rec := h.dev.LastRecorder()
	rec.Fail(fmt.Errorf("%w: /dev/video0: Permission denied", ports.ErrNotAllowed))
	rec.End()

	require.Eventually(t, func() bool {
		s := h.snap()
		return s.State == model.StateIdle && s.PermissionDenied
	}, 2*time.Second, time.Millisecond)

	s := h.snap()
	require.False(t, s.HasArtifact)
	require.Equal(t, 0, s.Elapsed)
	require.Equal(t, 0, h.clock.LiveTickers())
	require.Equal(t, 0, h.dev.LiveStreams())
	_, err := h.ctrl.Artifact(context.Background())
	require.ErrorIs(t, err, ErrNoArtifact)

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.False(t, h.snap().PermissionDenied, "a new grant clears the refusal")
}

func TestRecorderDenialAfterDataKeepsArtifact(t *testing.T) {
	h := newHarness(t, nil).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	rec := h.dev.LastRecorder()
	rec.Deliver([]byte("frames"))
	rec.Fail(fmt.Errorf("%w: mic revoked", ports.ErrNotAllowed))
	rec.End()

	art := h.awaitArtifact()
	require.Equal(t, []byte("frames"), art.Data)
	require.False(t, h.snap().PermissionDenied)
}

func TestMaxDurationIsDisplayedNotEnforced(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxDuration = 3 * time.Second }).run()
	require.Equal(t, 3, h.snap().MaxDuration)

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.tick(5)
	s := h.snap()
	require.Equal(t, model.StateRecording, s.State)
	require.Equal(t, 5, s.Elapsed)

	require.NoError(t, h.ctrl.SetMaxDuration(context.Background(), 45*time.Minute))
	require.Equal(t, 45*60, h.snap().MaxDuration)
	require.Error(t, h.ctrl.SetMaxDuration(context.Background(), 0))
}

func TestRejectedOperationReportsSnapshot(t *testing.T) {
	h := newHarness(t, nil).run()
	snap, err := h.ctrl.Apply(context.Background(), lifecycle.OpPause)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	want := model.Snapshot{State: model.StateIdle, MaxDuration: int(DefaultMaxDuration / time.Second)}
	if diff := cmp.Diff(want, snap, cmpopts.IgnoreFields(model.Snapshot{}, "Preview")); diff != "" {
		t.Fatalf("unexpected snapshot (-want +got):\n%s", diff)
	}

	_, err = h.ctrl.Apply(context.Background(), lifecycle.OpRecorderEnded)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestSnapshotsArePublished(t *testing.T) {
	b := bus.NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), TopicSnapshot)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	h := newHarness(t, func(o *Options) { o.Publisher = b }).run()
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.tick(1)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sub.C():
			snap, ok := msg.(model.Snapshot)
			require.True(t, ok)
			if snap.Recording && snap.Elapsed == 1 {
				return
			}
		case <-deadline:
			t.Fatal("no recording snapshot published")
		}
	}
}

func TestCloseStopsRecorderAndReleasesTracks(t *testing.T) {
	h := newHarness(t, nil)
	go func() { h.runCh <- h.ctrl.Run(context.Background()) }()

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.tick(2)
	h.close()

	assert.True(t, h.dev.LastRecorder().Stopped())
	assert.Equal(t, 0, h.dev.LiveStreams())
	assert.Equal(t, 0, h.clock.LiveTickers())

	require.ErrorIs(t, h.ctrl.Start(context.Background()), lifecycle.ErrTornDown)
	_, err := h.ctrl.Snapshot(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrTornDown)
}

func TestLateAcquisitionAfterTeardownIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	release := h.dev.Hold()
	go func() { h.runCh <- h.ctrl.Run(context.Background()) }()

	startErr := make(chan error, 1)
	go func() { startErr <- h.ctrl.Start(context.Background()) }()
	require.Eventually(t, func() bool { return h.dev.Opens() == 1 }, 2*time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		h.close()
		close(closed)
	}()

	// Teardown answers the pending start before joining the acquisition.
	require.ErrorIs(t, <-startErr, lifecycle.ErrTornDown)
	release()
	<-closed

	require.Equal(t, 0, h.dev.LiveStreams(), "late grant must be released")
	if rec := h.dev.LastRecorder(); rec != nil {
		require.NotContains(t, rec.Calls(), "start", "late grant must never start recording")
	}
}

func TestCloseWithoutRun(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.Close())
	require.ErrorIs(t, h.ctrl.Start(context.Background()), lifecycle.ErrTornDown)
}

func TestControllerDoesNotLeakGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, func(o *Options) { o.AcquireOnStart = true })
	go func() { h.runCh <- h.ctrl.Run(context.Background()) }()
	h.waitIdleAcquisition()

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.dev.LastRecorder().Deliver([]byte("x"))
	h.tick(1)
	require.NoError(t, h.ctrl.Pause(context.Background()))
	require.NoError(t, h.ctrl.Resume(context.Background()))
	require.NoError(t, h.ctrl.Stop(context.Background()))
	h.awaitArtifact()
	require.NoError(t, h.ctrl.DiscardArtifact(context.Background()))
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.close()
}
