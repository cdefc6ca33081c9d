// Package metrics exposes Prometheus collectors for the recorder daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureTransitionsTotal counts recording state machine transitions.
	CaptureTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrec_capture_transitions_total",
		Help: "Recording state transitions by from/to state.",
	}, []string{"from", "to"})

	// CaptureInvalidTransitionsTotal counts operations rejected as no-ops.
	CaptureInvalidTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrec_capture_invalid_transitions_total",
		Help: "Operations ignored because the current state does not permit them.",
	}, []string{"op", "state"})

	// CaptureAcquisitionsTotal counts device acquisitions by outcome.
	CaptureAcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrec_capture_acquisitions_total",
		Help: "Device acquisitions by result and error class.",
	}, []string{"result", "class"})

	// CaptureAcquireDuration tracks how long a device grant takes.
	CaptureAcquireDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidrec_capture_acquire_duration_seconds",
		Help:    "Time taken to open camera and microphone.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// CaptureReleasesTotal counts released media sessions.
	CaptureReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidrec_capture_releases_total",
		Help: "Media sessions released (all tracks stopped).",
	})

	// CaptureLiveSessions is the number of media sessions currently holding hardware.
	CaptureLiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidrec_capture_live_sessions",
		Help: "Media sessions currently holding camera/microphone tracks.",
	})

	// CaptureChunksTotal counts non-empty chunks appended to the accumulator.
	CaptureChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidrec_capture_chunks_total",
		Help: "Non-empty recorder data deliveries accumulated.",
	})

	// CaptureChunkBytesTotal counts accumulated bytes.
	CaptureChunkBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidrec_capture_chunk_bytes_total",
		Help: "Bytes accumulated from recorder data deliveries.",
	})

	// CaptureEmptyDeliveriesTotal counts zero-length deliveries that were skipped.
	CaptureEmptyDeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidrec_capture_empty_deliveries_total",
		Help: "Recorder data deliveries carrying no bytes.",
	})

	// CaptureRecorderErrorsTotal counts asynchronous recorder failures.
	CaptureRecorderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrec_capture_recorder_errors_total",
		Help: "Asynchronous recorder failures by error class.",
	}, []string{"class"})

	// CaptureArtifactBytes observes the size of published artifacts.
	CaptureArtifactBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidrec_capture_artifact_bytes",
		Help:    "Size of packaged recordings.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// CaptureTicksTotal counts elapsed-time ticks applied while recording.
	CaptureTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidrec_capture_ticks_total",
		Help: "Elapsed-time ticks applied while recording.",
	})

	// CaptureElapsedSeconds mirrors the current elapsed recording time.
	CaptureElapsedSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidrec_capture_elapsed_seconds",
		Help: "Elapsed seconds of the current recording (0 when idle).",
	})
)

// RecordTransition records a state machine transition.
func RecordTransition(from, to string) {
	CaptureTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordInvalidTransition records an operation that was ignored.
func RecordInvalidTransition(op, state string) {
	CaptureInvalidTransitionsTotal.WithLabelValues(op, state).Inc()
}

// RecordAcquisition records the outcome of a device acquisition.
// class is empty for successful acquisitions.
func RecordAcquisition(class string, seconds float64) {
	result := "success"
	if class != "" {
		result = "failure"
	} else {
		class = "none"
	}
	CaptureAcquisitionsTotal.WithLabelValues(result, class).Inc()
	CaptureAcquireDuration.Observe(seconds)
}

// RecordChunk records a recorder delivery.
func RecordChunk(n int) {
	if n == 0 {
		CaptureEmptyDeliveriesTotal.Inc()
		return
	}
	CaptureChunksTotal.Inc()
	CaptureChunkBytesTotal.Add(float64(n))
}
