// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup signals capture processes as whole process groups, so
// helpers spawned by the capture binary never outlive it.
package procgroup

import "errors"

// ErrUnsupported is returned where the platform cannot deliver job-control
// signals (pause/resume) to a process group.
var ErrUnsupported = errors.New("procgroup: operation not supported on this platform")
