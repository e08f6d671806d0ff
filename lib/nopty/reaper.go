// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"errors"

	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

// reap drains every reapable child in a loop, since multiple children
// (in intercept/tracing mode) can be waiting and the kernel only keeps
// one SIGCHLD pending regardless of how many state transitions
// occurred.
func reap(ec *execClosure) {
	for {
		var status unix.WaitStatus
		pid, err := wait4retryEINTR(&status)
		if err != nil {
			if !errors.Is(err, unix.ECHILD) {
				vlog.Errorf("nopty: waitpid: %v", err)
			}
			return
		}
		if pid == 0 {
			return
		}

		switch {
		case status.Stopped():
			handleStopped(ec, pid, status)
		case status.Signaled() || status.Exited():
			handleTerminal(ec, pid, status)
		default:
			vlog.VI(2).Infof("nopty: unexpected wait status %#x for pid %d", uint32(status), pid)
		}
	}
}

func wait4retryEINTR(status *unix.WaitStatus) (int, error) {
	for {
		pid, err := unix.Wait4(-1, status, unix.WNOHANG|unix.WUNTRACED|wallFlag, nil)
		if err == unix.EINTR {
			continue
		}
		return pid, err
	}
}

func handleStopped(ec *execClosure, pid int, status unix.WaitStatus) {
	signo := status.StopSignal()
	vlog.VI(2).Infof("nopty: process %d stopped, signal %s", pid, signo)

	if ec.details.Flags.Has(UsePtrace) {
		if !interceptStopped(ec.intercept, pid, status) {
			// Not a real group-stop; keep draining.
			return
		}
	}

	if pid == ec.cmndPid {
		suspendSupervisor(ec, signo)
	}
	// Else: a traced descendant stopped; nothing further to do.
}

func handleTerminal(ec *execClosure, pid int, status unix.WaitStatus) {
	switch {
	case status.Signaled():
		vlog.VI(2).Infof("nopty: process %d killed by signal %s", pid, status.Signal())
	case status.Exited():
		vlog.VI(2).Infof("nopty: process %d exited: %d", pid, status.ExitStatus())
	}

	if pid != ec.cmndPid {
		// A descendant other than the main child; just log it.
		return
	}

	if !ec.cstat.setWStatus(status) {
		vlog.VI(1).Infof("nopty: not overwriting existing command status %s with WSTATUS", ec.cstat.Type)
	}
	ec.cmndPid = -1
}
