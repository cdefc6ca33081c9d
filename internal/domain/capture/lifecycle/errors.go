// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lifecycle holds the recording state machine tables and the
// capture error taxonomy.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ManuGH/vidrec/internal/domain/capture/model"
)

var (
	// ErrPermissionDenied means the user or OS refused device access.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDeviceUnavailable covers every other acquisition failure.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrInvalidTransition reports an operation the current state does not permit.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrTornDown reports work that completed after teardown or was superseded.
	ErrTornDown = errors.New("capture torn down")
)

// AcquireError wraps a raw backend failure with its taxonomy class.
type AcquireError struct {
	Class error
	Cause error
}

func (e *AcquireError) Error() string {
	if e == nil || e.Class == nil {
		return ErrDeviceUnavailable.Error()
	}
	if e.Cause == nil {
		return e.Class.Error()
	}
	return e.Class.Error() + ": " + e.Cause.Error()
}

func (e *AcquireError) Unwrap() error {
	if e.Class == nil {
		return ErrDeviceUnavailable
	}
	return e.Class
}

// TransitionError describes a rejected operation.
type TransitionError struct {
	Op     Op
	State  model.RecordingState
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s from %s (%s)", e.Op, e.State, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Error classes used as metric and log labels.
const (
	ClassNone              = "none"
	ClassPermissionDenied  = "permission_denied"
	ClassDeviceUnavailable = "device_unavailable"
	ClassInvalidTransition = "invalid_transition"
	ClassTornDown          = "torn_down"
	ClassInternal          = "internal"
)

// ErrorClass maps an error onto the taxonomy label.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrPermissionDenied):
		return ClassPermissionDenied
	case errors.Is(err, ErrDeviceUnavailable):
		return ClassDeviceUnavailable
	case errors.Is(err, ErrInvalidTransition):
		return ClassInvalidTransition
	case errors.Is(err, ErrTornDown):
		return ClassTornDown
	default:
		return ClassInternal
	}
}
