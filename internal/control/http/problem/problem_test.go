// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/vidrec/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/start", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-9"))
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusForbidden, "capture/permission_denied", "Forbidden", "PERMISSION_DENIED",
		"camera access refused", map[string]any{"status": 200, "snapshot": map[string]any{"state": "idle"}})

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-9", rec.Header().Get(HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "capture/permission_denied", body["type"])
	assert.Equal(t, "PERMISSION_DENIED", body["code"])
	assert.EqualValues(t, http.StatusForbidden, body["status"], "reserved keys in extras are ignored")
	assert.Equal(t, "/api/v1/session/start", body["instance"])
	assert.Equal(t, "req-9", body[JSONKeyRequestID])
	assert.Contains(t, body, "snapshot")
}
