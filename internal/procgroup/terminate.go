// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/vidrec/internal/metrics"
)

// Terminate stops a process group gracefully: it sends first (usually
// SIGINT so the encoder can finalize its container), waits up to grace for
// the process to exit, then sends SIGKILL. It always drains waitCh and
// returns the Wait error. Safe on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, first syscall.Signal, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	signal(cmd, first)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return err
	case <-timer.C:
		signal(cmd, syscall.SIGKILL)
		err := <-waitCh
		if err == nil {
			metrics.IncProcWait("forced_exit0")
		} else {
			metrics.IncProcWait("forced_error")
		}
		return err
	}
}

func signal(cmd *exec.Cmd, sig syscall.Signal) {
	if err := Kill(cmd, sig); err != nil {
		metrics.IncProcSignal(sig.String(), "error")
		return
	}
	metrics.IncProcSignal(sig.String(), "sent")
}
