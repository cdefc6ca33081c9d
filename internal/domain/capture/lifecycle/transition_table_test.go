// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"testing"

	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/stretchr/testify/require"
)

var allStates = []model.RecordingState{model.StateIdle, model.StateRecording, model.StatePaused}

func TestTransitionTableCoverage(t *testing.T) {
	allowedEdges := map[model.RecordingState]map[Op]struct{}{}
	for _, tr := range transitionsTable {
		if _, ok := allowedEdges[tr.From]; !ok {
			allowedEdges[tr.From] = map[Op]struct{}{}
		}
		if _, exists := allowedEdges[tr.From][tr.Op]; exists {
			t.Fatalf("duplicate transition: %s + %s", tr.From, tr.Op)
		}
		allowedEdges[tr.From][tr.Op] = struct{}{}
	}

	for _, state := range allStates {
		for _, op := range Ops {
			decision, ok := DecisionFor(state, op)
			require.True(t, ok, "missing decision for %s + %s", state, op)
			_, edge := allowedEdges[state][op]
			require.Equal(t, edge, decision.Allowed, "table mismatch for %s + %s", state, op)
			if !decision.Allowed {
				require.NotEmpty(t, decision.Reason)
			}
		}
	}
}

func TestPausedReachableOnlyFromRecording(t *testing.T) {
	for _, tr := range transitionsTable {
		if tr.To == model.StatePaused && tr.Op != OpDiscard {
			require.Equal(t, model.StateRecording, tr.From)
		}
	}
}

func TestCheckReturnsTypedError(t *testing.T) {
	require.NoError(t, Check(model.StateIdle, OpStart))

	err := Check(model.StateIdle, OpPause)
	require.ErrorIs(t, err, ErrInvalidTransition)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, OpPause, te.Op)
	require.Equal(t, ForbiddenRequiresRecording, te.Reason)

	require.ErrorIs(t, Check(model.RecordingState("bogus"), OpStart), ErrInvalidTransition)
}

func TestAcquireErrorClassification(t *testing.T) {
	cause := errors.New("EACCES")
	err := &AcquireError{Class: ErrPermissionDenied, Cause: cause}
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.NotErrorIs(t, err, ErrDeviceUnavailable)
	require.Equal(t, "permission denied: EACCES", err.Error())
	require.Equal(t, ClassPermissionDenied, ErrorClass(err))

	require.ErrorIs(t, &AcquireError{}, ErrDeviceUnavailable)
	require.Equal(t, ClassNone, ErrorClass(nil))
	require.Equal(t, ClassInternal, ErrorClass(errors.New("x")))
	require.Equal(t, ClassInvalidTransition, ErrorClass(Check(model.StatePaused, OpPause)))
}
