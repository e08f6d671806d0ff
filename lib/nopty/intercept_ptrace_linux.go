// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package nopty

import (
	"os"

	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

// ptraceSeizeResult is the three-way outcome of attempting a ptrace
// seize.
type ptraceSeizeResult int

const (
	ptraceSeizeFatal         ptraceSeizeResult = -1
	ptraceSeizeAnotherTracer ptraceSeizeResult = 0
	ptraceSeizeOK            ptraceSeizeResult = 1
)

// ptraceSeizeOpts mirrors PTRACE_SEIZE's options: stop the tracee on its
// next group-stop and report it as such, and report exec(2) events so the
// tracer can distinguish the command's own exec from sub-command execs.
const ptraceSeizeOpts = unix.PTRACE_O_TRACEEXEC | unix.PTRACE_O_TRACESYSGOOD

// execPtraceSeize attempts to seize pid with PTRACE_SEIZE, grounded on the
// same PTRACE_SEIZE/PTRACE_CONT protocol
// pendulm-fileflip/pkg/ptrace.ptrace_linux_amd64.go hand-rolls for a
// single traced child.
func execPtraceSeize(pid int) ptraceSeizeResult {
	err := unix.PtraceSeize(pid, ptraceSeizeOpts)
	if err == nil {
		return ptraceSeizeOK
	}
	if err == unix.EPERM {
		// Another tracer (e.g. an interactive debugger) already has
		// this pid.
		vlog.VI(1).Infof("nopty: ptrace seize of %d denied, another tracer present", pid)
		return ptraceSeizeAnotherTracer
	}
	vlog.Errorf("nopty: ptrace seize of %d failed: %v", pid, err)
	return ptraceSeizeFatal
}

// ptraceIntercept is the UsePtrace-backed interceptHandle: it seized the
// child and distinguishes real group-stops from ptrace-internal stops
// using the top byte of the wait status, the same test
// pendulm-fileflip/pkg/ptrace uses to tell a signal-delivery-stop from a
// PTRACE_EVENT stop.
type ptraceIntercept struct {
	pid int
	// sockFD, if non-nil, is the parent's end of an intercept socket
	// pair, closed by Cleanup. Supervise creates no socket pair when
	// UsePtrace is set, so it is nil there.
	sockFD *os.File
}

func (p *ptraceIntercept) Cleanup() {
	if p.sockFD != nil {
		p.sockFD.Close()
	}
}

func (p *ptraceIntercept) Stopped(pid int, status unix.WaitStatus) bool {
	// A PTRACE_EVENT stop (exec, clone, ...) encodes the event in the
	// status word's high byte; those are not group-stops and the
	// tracer must PTRACE_CONT past them itself rather than ask the
	// supervisor to suspend.
	if status>>8 == (unix.WaitStatus(unix.SIGTRAP) | (unix.WaitStatus(unix.PTRACE_EVENT_EXEC) << 8)) {
		if err := unix.PtraceCont(pid, 0); err != nil {
			vlog.Errorf("nopty: ptrace cont after exec-stop for %d: %v", pid, err)
		}
		return false
	}
	return true
}
