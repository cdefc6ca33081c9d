// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procSignalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrec_proc_signal_total",
		Help: "Signals sent to capture process groups by signal and outcome.",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrec_proc_wait_total",
		Help: "Capture process exits by outcome.",
	}, []string{"result"})
)

// IncProcSignal records a signal delivery attempt.
func IncProcSignal(signal, result string) {
	procSignalTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a capture process ended.
func IncProcWait(result string) {
	procWaitTotal.WithLabelValues(result).Inc()
}
