// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by capture spans.
const (
	CaptureOpKey          = "capture.op"
	CaptureStateKey       = "capture.state"
	CaptureSessionIDKey   = "capture.session_id"
	CaptureElapsedKey     = "capture.elapsed_s"
	CaptureArtifactLenKey = "capture.artifact_bytes"
	CaptureBackendKey     = "capture.backend"

	ErrorKey      = "error"
	ErrorClassKey = "error.class"
)

// OperationAttributes describes a state machine operation.
func OperationAttributes(op, state string, elapsed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CaptureOpKey, op),
		attribute.String(CaptureStateKey, state),
		attribute.Int(CaptureElapsedKey, elapsed),
	}
}

// SessionAttributes describes an acquired media session.
func SessionAttributes(sessionID, backend string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(CaptureSessionIDKey, sessionID))
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(CaptureBackendKey, backend))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(class string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorClassKey, class),
	}
}

// RecordError marks the span failed with the given class. nil err is a no-op.
func RecordError(span trace.Span, err error, class string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorAttributes(class)...)
	span.SetStatus(codes.Error, class)
}
