// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
// It ignores its arguments.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)) // #nosec G306
	return path
}

func newTestDevice(t *testing.T, body string, chunk int) *Device {
	t.Helper()
	d, err := New(Config{
		Bin:         fakeFFmpeg(t, body),
		InputFormat: FormatLavfi,
		Video:       "testsrc",
		Audio:       "sine",
		ChunkBytes:  chunk,
		StopGrace:   200 * time.Millisecond,
	})
	require.NoError(t, err)
	return d
}

func startRecorder(t *testing.T, d *Device) ports.Recorder {
	t.Helper()
	s, err := d.Open(context.Background(), ports.Constraints{Video: true, Audio: true})
	require.NoError(t, err)
	rec, err := d.NewRecorder(s)
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))
	return rec
}

// drain collects every event until Events closes.
func drain(t *testing.T, rec ports.Recorder) (data []byte, errs []error) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-rec.Events():
			if !ok {
				return data, errs
			}
			if ev.Kind == ports.RecorderError {
				errs = append(errs, ev.Err)
				continue
			}
			data = append(data, ev.Data...)
		case <-timeout:
			t.Fatal("recorder events did not close")
			return nil, nil
		}
	}
}

func TestRecorderDeliversStdoutInChunks(t *testing.T) {
	d := newTestDevice(t, "printf 'AAAABBBBCC'", 4)
	rec := startRecorder(t, d)

	var chunks []string
	for ev := range rec.Events() {
		require.Equal(t, ports.RecorderData, ev.Kind)
		chunks = append(chunks, string(ev.Data))
	}
	assert.Equal(t, []string{"AAAA", "BBBB", "CC"}, chunks)
}

func TestRecorderReportsClassifiedExit(t *testing.T) {
	d := newTestDevice(t, "echo '/dev/video0: Permission denied' >&2; exit 1", 4)
	rec := startRecorder(t, d)

	data, errs := drain(t, rec)
	assert.Empty(t, data)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ports.ErrNotAllowed)
}

func TestRecorderStopDeliversFinalOutput(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := newTestDevice(t, `trap 'printf FINAL; exit 0' INT
printf 'HEAD'
while :; do sleep 0.05; done`, 4)
	rec := startRecorder(t, d)

	ev := <-rec.Events()
	require.Equal(t, "HEAD", string(ev.Data))

	require.NoError(t, rec.Stop())
	require.NoError(t, rec.Stop(), "stop is idempotent")

	data, errs := drain(t, rec)
	assert.Equal(t, "FINAL", string(data))
	assert.Empty(t, errs, "a requested stop is not an error")
}

func TestRecorderStopEscalatesToKill(t *testing.T) {
	d := newTestDevice(t, `trap '' INT
printf 'WAIT'
while :; do sleep 0.05; done`, 4)
	rec := startRecorder(t, d)

	// The trap is installed once the first output arrives.
	ev := <-rec.Events()
	require.Equal(t, "WAIT", string(ev.Data))

	began := time.Now()
	require.NoError(t, rec.Stop())
	data, errs := drain(t, rec)
	assert.Empty(t, data)
	assert.Empty(t, errs)
	assert.GreaterOrEqual(t, time.Since(began), 200*time.Millisecond)
}

func TestRecorderPauseResume(t *testing.T) {
	d := newTestDevice(t, "while :; do printf 'x'; sleep 0.02; done", 1)
	rec := startRecorder(t, d)

	<-rec.Events()
	require.NoError(t, rec.Pause())
	require.NoError(t, rec.Pause())
	require.NoError(t, rec.Resume())
	require.NoError(t, rec.Pause())

	// Stop while suspended still terminates.
	require.NoError(t, rec.Stop())
	_, errs := drain(t, rec)
	assert.Empty(t, errs)

	assert.Error(t, rec.Resume())
}

func TestRecorderRefusesReleasedStream(t *testing.T) {
	d := newTestDevice(t, "exit 0", 4)
	s, err := d.Open(context.Background(), ports.Constraints{Video: true, Audio: true})
	require.NoError(t, err)
	rec, err := d.NewRecorder(s)
	require.NoError(t, err)

	for _, tr := range s.Tracks() {
		tr.Stop()
	}
	require.ErrorIs(t, rec.Start(context.Background()), ports.ErrNotReadable)

	require.NoError(t, rec.Stop())
	_, ok := <-rec.Events()
	assert.False(t, ok, "an unstarted recorder closes its events on stop")
}

func TestRecorderStopsOnContextCancel(t *testing.T) {
	d := newTestDevice(t, "while :; do sleep 0.05; done", 4)
	s, err := d.Open(context.Background(), ports.Constraints{Video: true, Audio: true})
	require.NoError(t, err)
	rec, err := d.NewRecorder(s)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, rec.Start(ctx))
	require.Error(t, rec.Start(ctx))
	cancel()

	_, errs := drain(t, rec)
	assert.Empty(t, errs)
}

func TestOpenProbesDeviceNode(t *testing.T) {
	d, err := New(Config{Bin: "sh", InputFormat: FormatV4L2, Video: "/nonexistent/video0"})
	require.NoError(t, err)

	_, err = d.Open(context.Background(), ports.Constraints{Video: true, Audio: true})
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestOpenMapsPermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}
	node := filepath.Join(t.TempDir(), "video0")
	require.NoError(t, os.WriteFile(node, nil, 0o000))

	d, err := New(Config{Bin: "sh", InputFormat: FormatV4L2, Video: node})
	require.NoError(t, err)
	_, err = d.Open(context.Background(), ports.Constraints{Video: true})
	require.ErrorIs(t, err, ports.ErrNotAllowed)
}

func TestOpenGrantsFreshStreams(t *testing.T) {
	d := newTestDevice(t, "exit 0", 4)

	a, err := d.Open(context.Background(), ports.Constraints{Video: true, Audio: true})
	require.NoError(t, err)
	b, err := d.Open(context.Background(), ports.Constraints{Video: true, Audio: false})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.Tracks(), 2)
	assert.Len(t, b.Tracks(), 1)
	assert.Equal(t, ports.TrackVideo, b.Tracks()[0].Kind())
}

func TestNewFailsWithoutBinary(t *testing.T) {
	_, err := New(Config{Bin: filepath.Join(t.TempDir(), "missing-ffmpeg")})
	require.Error(t, err)
}
