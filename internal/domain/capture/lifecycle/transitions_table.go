// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/vidrec/internal/domain/capture/model"

// Transition is a single allowed edge in the recording state machine.
type Transition struct {
	From model.RecordingState
	To   model.RecordingState
	Op   Op
}

var transitionsTable = []Transition{
	{From: model.StateIdle, To: model.StateRecording, Op: OpStart},
	{From: model.StateRecording, To: model.StatePaused, Op: OpPause},
	{From: model.StatePaused, To: model.StateRecording, Op: OpResume},
	{From: model.StateRecording, To: model.StateIdle, Op: OpStop},
	{From: model.StatePaused, To: model.StateIdle, Op: OpStop},
	{From: model.StateRecording, To: model.StateIdle, Op: OpRecorderEnded},
	{From: model.StatePaused, To: model.StateIdle, Op: OpRecorderEnded},

	// Discarding the artifact never moves the machine.
	{From: model.StateIdle, To: model.StateIdle, Op: OpDiscard},
	{From: model.StateRecording, To: model.StateRecording, Op: OpDiscard},
	{From: model.StatePaused, To: model.StatePaused, Op: OpDiscard},
}

// TransitionFor returns the allowed transition for a given state+op.
func TransitionFor(from model.RecordingState, op Op) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Op == op {
			return tr, true
		}
	}
	return Transition{}, false
}
