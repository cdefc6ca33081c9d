// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldStreamID      = "stream_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldSignal    = "signal"

	// Capture fields
	FieldDevice      = "device"
	FieldTrackKind   = "track_kind"
	FieldErrorClass  = "error_class"
	FieldElapsed     = "elapsed_s"
	FieldChunkBytes  = "chunk_bytes"
	FieldArtifactLen = "artifact_bytes"
	FieldOperation   = "op"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath = "path"
)
