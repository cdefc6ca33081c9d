// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"time"

	"github.com/ManuGH/vidrec/internal/bus"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
	"github.com/rs/zerolog"
)

// TopicSnapshot carries model.Snapshot values after every observable change.
const TopicSnapshot = "capture.snapshot"

// Defaults for Options.
const (
	DefaultMaxDuration  = 45 * time.Minute
	DefaultTickInterval = time.Second
	DefaultDrainTimeout = 5 * time.Second
)

// Options parameterizes a Controller. Zero values select the defaults.
type Options struct {
	// MaxDuration is the displayed ceiling. It is never enforced.
	MaxDuration  time.Duration
	TickInterval time.Duration
	MediaType    string
	FileName     string

	// AcquireOnStart requests a preview grant as soon as Run starts.
	AcquireOnStart bool

	// DrainTimeout bounds how long teardown waits for worker goroutines.
	DrainTimeout time.Duration

	Clock     ports.Clock
	Logger    *zerolog.Logger
	Publisher bus.Bus
}

func (o Options) withDefaults() Options {
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.MediaType == "" {
		o.MediaType = model.DefaultMediaType
	}
	if o.FileName == "" {
		o.FileName = model.DefaultFileName
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.Clock == nil {
		o.Clock = ports.SystemClock{}
	}
	return o
}
