// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusDroppedTotal counts snapshot messages dropped by the in-memory bus.
var BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vidrec_bus_dropped_total",
	Help: "Messages dropped by the in-memory bus, by topic and reason.",
}, []string{"topic", "reason"})

// IncBusDropReason records a dropped bus message.
func IncBusDropReason(topic, reason string) {
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
