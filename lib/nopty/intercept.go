// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"os"

	"golang.org/x/sys/unix"
)

// interceptHandle is a contract-only interface: the supervisor treats
// everything about the intercept/ptrace subsystem as opaque, beyond
// these operations.
type interceptHandle interface {
	// Cleanup releases any global intercept state. Called exactly once,
	// during teardown.
	Cleanup()
	// Stopped reports whether a stop of pid is a real group-stop the
	// supervisor should suspend for, as opposed to a ptrace-internal
	// stop (syscall-enter/exit, signal-delivery-stop) the tracer should
	// silently resume from.
	Stopped(pid int, status unix.WaitStatus) bool
}

// interceptSetup registers the intercept/log-subcmds channel's own read
// events on eb and returns an opaque handle, or nil on unrecoverable
// setup failure.
//
// sockFD is the parent end of the socket pair inherited by the child; it
// is owned by the returned handle once setup succeeds.
type interceptSetupFunc func(sockFD *os.File, eb *eventBase, details *CommandDetails) interceptHandle

// defaultInterceptSetup is the intercept setup Supervise uses whenever
// Intercept or LogSubcmds is set; CommandDetails has no field to replace
// it. It is a minimal, non-ptrace implementation that simply keeps the
// socket pair open without acting on it: it neither logs nor blocks
// sub-command execs, and it always succeeds.
func defaultInterceptSetup(sockFD *os.File, eb *eventBase, details *CommandDetails) interceptHandle {
	return &noopIntercept{sockFD: sockFD}
}

type noopIntercept struct {
	sockFD *os.File
}

func (n *noopIntercept) Cleanup() {
	if n.sockFD != nil {
		n.sockFD.Close()
	}
}

func (n *noopIntercept) Stopped(pid int, status unix.WaitStatus) bool {
	// Without a real tracer attached, every stop of a traced pid is a
	// genuine group-stop.
	return true
}

// interceptStopped is a nil-safe wrapper around interceptHandle.Stopped.
func interceptStopped(ih interceptHandle, pid int, status unix.WaitStatus) bool {
	if ih == nil {
		return true
	}
	return ih.Stopped(pid, status)
}
