// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ManuGH/vidrec/internal/domain/capture/ports"
)

// lineRing keeps the last lines written to it. It implements io.Writer so
// it can sit directly behind cmd.Stderr.
type lineRing struct {
	mu      sync.Mutex
	lines   []string
	head    int
	n       int
	partial string
}

func newLineRing(capacity int) *lineRing {
	if capacity < 1 {
		capacity = 32
	}
	return &lineRing{lines: make([]string, capacity)}
}

func (r *lineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.partial + string(p)
	parts := strings.Split(s, "\n")
	// The last element is an unterminated line (or "").
	r.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		r.push(line)
	}
	return len(p), nil
}

func (r *lineRing) push(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.n < len(r.lines) {
		r.n++
	}
}

// Lines returns the retained lines oldest first, including a trailing
// unterminated line.
func (r *lineRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, r.n+1)
	start := (r.head - r.n + len(r.lines)) % len(r.lines)
	for i := 0; i < r.n; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	if p := strings.TrimSpace(r.partial); p != "" {
		out = append(out, p)
	}
	return out
}

// classifyStderr maps ffmpeg's device errors onto the port sentinels.
// The last matching line wins, since ffmpeg reports the root cause last.
func classifyStderr(lines []string) error {
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.ToLower(lines[i])
		switch {
		case strings.Contains(l, "permission denied"), strings.Contains(l, "operation not permitted"):
			return fmt.Errorf("%w: %s", ports.ErrNotAllowed, lines[i])
		case strings.Contains(l, "no such file or directory"), strings.Contains(l, "no such device"):
			return fmt.Errorf("%w: %s", ports.ErrNotFound, lines[i])
		case strings.Contains(l, "device or resource busy"), strings.Contains(l, "input/output error"):
			return fmt.Errorf("%w: %s", ports.ErrNotReadable, lines[i])
		}
	}
	if len(lines) > 0 {
		return errors.New(lines[len(lines)-1])
	}
	return nil
}
