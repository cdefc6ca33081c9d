// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/vidrec/internal/control/http/problem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(cfg StackConfig) http.Handler {
	r := NewRouter(cfg)
	r.Post("/mutate", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/read", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	return r
}

func TestStack_RejectsForeignOrigin(t *testing.T) {
	r := newTestRouter(StackConfig{})

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Host = "127.0.0.1:8088"
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestStack_AllowsSameOrigin(t *testing.T) {
	r := newTestRouter(StackConfig{})

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Host = "127.0.0.1:8088"
	req.Header.Set("Origin", "http://127.0.0.1:8088")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestStack_AllowsConfiguredOrigin(t *testing.T) {
	r := newTestRouter(StackConfig{AllowedOrigins: []string{"http://localhost:3000/"}})

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Host = "127.0.0.1:8088"
	req.Header.Set("Origin", "http://LOCALHOST:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestStack_NonBrowserClients(t *testing.T) {
	r := newTestRouter(StackConfig{})

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "curl sends no origin")

	req = httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestStack_SameOriginBehindProxyIsNotTrusted(t *testing.T) {
	r := newTestRouter(StackConfig{})

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Host = "recorder.lan"
	req.Header.Set("Origin", "http://recorder.lan")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestStack_RequestIDAndRecovery(t *testing.T) {
	r := newTestRouter(StackConfig{EnableLogging: true, EnableMetrics: true})

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	req.Header.Set(problem.HeaderRequestID, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Header().Get(problem.HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(problem.HeaderRequestID))
}

func TestStack_RateLimit(t *testing.T) {
	r := newTestRouter(StackConfig{RateLimitRPM: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/read", nil)
		req.RemoteAddr = "192.0.2.7:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
