// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package http

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/ManuGH/vidrec/internal/domain/capture/lifecycle"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/ManuGH/vidrec/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.capture.Snapshot(r.Context())
	if err != nil {
		writeCaptureError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleOp runs one session operation. Start blocks until the device grant
// resolves, which may include an OS permission prompt.
func (s *Server) handleOp(op lifecycle.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.capture.Apply(r.Context(), op)
		if err != nil {
			xglog.FromContext(r.Context()).Debug().
				Err(err).
				Str(xglog.FieldOperation, op.String()).
				Str(xglog.FieldErrorClass, lifecycle.ErrorClass(err)).
				Msg("session operation failed")
			writeCaptureError(w, r, err, &snap)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// handleDownload serves the artifact with its download name; ranges are
// supported.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	art, err := s.capture.Artifact(r.Context())
	if err != nil {
		writeCaptureError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", art.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.FileName}))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, art.FileName, art.CreatedAt, bytes.NewReader(art.Data))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		xglog.L().Debug().Err(err).Msg("encode response")
	}
}
