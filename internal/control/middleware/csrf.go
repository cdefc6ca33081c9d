// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ManuGH/vidrec/internal/control/http/problem"
)

// CSRFProtection rejects state-changing requests from foreign origins.
//
//  1. GET, HEAD and OPTIONS pass.
//  2. Requests without Origin, Referer and Sec-Fetch-Site come from
//     non-browser clients (curl, scripts) and pass.
//  3. Otherwise the origin must be the strict same origin or listed in
//     allowedOrigins ("*" allows any).
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := NewOriginPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !origins.Allow(r) {
				problem.Write(w, r, http.StatusForbidden, "auth/csrf", "Forbidden", "CSRF_FORBIDDEN",
					"CSRF check failed: origin not trusted", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OriginPolicy decides whether a request's browser origin is trusted. It
// also backs the websocket upgrader's origin check.
type OriginPolicy struct {
	any     bool
	allowed map[string]bool
}

// NewOriginPolicy normalizes the configured origins.
func NewOriginPolicy(allowedOrigins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool)}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "*" {
			p.any = true
			continue
		}
		if normalized, ok := normalizeOrigin(trimmed); ok {
			p.allowed[normalized] = true
		}
	}
	return p
}

// Allow reports whether r may act on the API.
func (p *OriginPolicy) Allow(r *http.Request) bool {
	origin := requestOrigin(r)
	if origin == "" {
		// Browsers label cross-site requests even when they strip Origin.
		return r.Header.Get("Sec-Fetch-Site") != "cross-site"
	}
	if p.any || p.allowed[origin] {
		return true
	}
	if hasProxyHeaders(r) {
		return false
	}
	return origin == strictSameOrigin(r)
}

func requestOrigin(r *http.Request) string {
	if o, ok := normalizeOrigin(r.Header.Get("Origin")); ok {
		return o
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	o, _ := normalizeOrigin(u.Scheme + "://" + u.Host)
	return o
}

// hasProxyHeaders reports forwarding headers; same-origin is not trusted
// behind an unknown proxy.
func hasProxyHeaders(r *http.Request) bool {
	for _, h := range []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"} {
		if r.Header.Get(h) != "" {
			return true
		}
	}
	return false
}

func strictSameOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.Host == "" {
		return ""
	}
	o, _ := normalizeOrigin(scheme + "://" + r.Host)
	return o
}

func normalizeOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" || strings.ContainsAny(host, " \t\r\n/@\\") {
		return "", false
	}
	port := parsed.Port()
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return "", false
		}
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	authority := host
	if ip := net.ParseIP(host); ip != nil && strings.Contains(host, ":") {
		authority = "[" + host + "]"
	}
	if port != "" {
		authority = net.JoinHostPort(host, port)
	}
	return scheme + "://" + authority, true
}
