// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Set is a no-op on Windows; there is no POSIX process group.
func Set(_ *exec.Cmd) {}

// Kill terminates the process. Windows cannot deliver arbitrary signals, so
// every signal is treated as a hard kill.
func Kill(cmd *exec.Cmd, _ syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Suspend is not available on Windows.
func Suspend(_ *exec.Cmd) error { return ErrUnsupported }

// Continue is not available on Windows.
func Continue(_ *exec.Cmd) error { return ErrUnsupported }
