// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// Op is an input to the recording state machine.
type Op string

const (
	OpStart         Op = "start"
	OpPause         Op = "pause"
	OpResume        Op = "resume"
	OpStop          Op = "stop"
	OpDiscard       Op = "discard"
	OpRecorderEnded Op = "recorder_ended" // recorder finished without being stopped
)

// Ops lists every operation, for exhaustive tests and metrics.
var Ops = []Op{OpStart, OpPause, OpResume, OpStop, OpDiscard, OpRecorderEnded}

func (o Op) String() string { return string(o) }
