// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/vidrec/internal/domain/capture/model"

const (
	ForbiddenRequiresIdle      = "requires_idle"
	ForbiddenRequiresRecording = "requires_recording"
	ForbiddenRequiresPaused    = "requires_paused"
	ForbiddenRequiresActive    = "requires_active_recorder"
)

// Decision records whether an op is allowed in a state and why not.
type Decision struct {
	Allowed bool
	Reason  string
}

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

// decisionTable defines an explicit decision for every State×Op combination.
var decisionTable = map[model.RecordingState]map[Op]Decision{
	model.StateIdle: {
		OpStart:         allowed(),
		OpPause:         forbid(ForbiddenRequiresRecording),
		OpResume:        forbid(ForbiddenRequiresPaused),
		OpStop:          forbid(ForbiddenRequiresActive),
		OpDiscard:       allowed(),
		OpRecorderEnded: forbid(ForbiddenRequiresActive),
	},
	model.StateRecording: {
		OpStart:         forbid(ForbiddenRequiresIdle),
		OpPause:         allowed(),
		OpResume:        forbid(ForbiddenRequiresPaused),
		OpStop:          allowed(),
		OpDiscard:       allowed(),
		OpRecorderEnded: allowed(),
	},
	model.StatePaused: {
		OpStart:         forbid(ForbiddenRequiresIdle),
		OpPause:         forbid(ForbiddenRequiresRecording),
		OpResume:        allowed(),
		OpStop:          allowed(),
		OpDiscard:       allowed(),
		OpRecorderEnded: allowed(),
	},
}

// DecisionFor returns the decision for state+op. ok is false only for
// states outside the table.
func DecisionFor(from model.RecordingState, op Op) (Decision, bool) {
	row, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := row[op]
	return d, ok
}

// Check returns nil when op is allowed from state, or a *TransitionError.
func Check(from model.RecordingState, op Op) error {
	d, ok := DecisionFor(from, op)
	if ok && d.Allowed {
		return nil
	}
	reason := d.Reason
	if !ok {
		reason = "unknown_state"
	}
	return &TransitionError{Op: op, State: from, Reason: reason}
}
