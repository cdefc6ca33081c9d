// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/vidrec/internal/control/http/problem"
	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	"github.com/ManuGH/vidrec/internal/domain/capture/session"
)

// writeCaptureError maps the capture error taxonomy onto problem responses.
// Rejected transitions carry the snapshot so clients can resync.
func writeCaptureError(w http.ResponseWriter, r *http.Request, err error, snap *model.Snapshot) {
	switch {
	case errors.Is(err, lifecycle.ErrPermissionDenied):
		problem.Write(w, r, http.StatusForbidden, "capture/permission_denied", "Forbidden",
			"PERMISSION_DENIED", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrDeviceUnavailable):
		problem.Write(w, r, http.StatusServiceUnavailable, "capture/device_unavailable", "Service Unavailable",
			"DEVICE_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		var extra map[string]any
		if snap != nil {
			extra = map[string]any{"snapshot": snap}
		}
		problem.Write(w, r, http.StatusConflict, "capture/invalid_transition", "Conflict",
			"INVALID_TRANSITION", err.Error(), extra)
	case errors.Is(err, session.ErrNoArtifact):
		problem.Write(w, r, http.StatusNotFound, "capture/no_artifact", "Not Found",
			"NO_ARTIFACT", "no recording is available", nil)
	case errors.Is(err, lifecycle.ErrTornDown):
		problem.Write(w, r, http.StatusServiceUnavailable, "capture/shutting_down", "Service Unavailable",
			"SHUTTING_DOWN", err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		problem.Write(w, r, http.StatusServiceUnavailable, "system/cancelled", "Service Unavailable",
			"CANCELLED", err.Error(), nil)
	default:
		problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error",
			"INTERNAL", err.Error(), nil)
	}
}
