// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

// suspendSupervisor stops the supervisor itself in sympathy with its
// child: the main child stopped with signal sig, and job control expects
// the supervisor (standing in for the foreground process group leader)
// to stop too, resuming the child once it resumes.
//
// sig is normally kept blocked so the dispatch loop can read it via
// eventBase's signalfd (see eventbase_linux.go), but a blocked stop
// signal only becomes pending rather than actually stopping the process.
// To get a real job-control suspend, suspendSupervisor unblocks sig just
// long enough to deliver it to the supervisor's own process group with
// kill(0, sig): the kernel freezes every thread at that point and the
// call only returns once a SIGCONT resumes us, at which point we
// re-block sig and continue the child.
//
// suspendSupervisor must not alter cstat and must not forward sig back
// to the child.
func suspendSupervisor(ec *execClosure, sig unix.Signal) {
	vlog.VI(1).Infof("nopty: child %d stopped on %s, suspending supervisor", ec.cmndPid, sig)

	if sig != unix.SIGSTOP {
		unblockSignal(sig)
	}
	// kill(0, sig) targets every process in the caller's own process
	// group, including the supervisor itself.
	if err := unix.Kill(0, sig); err != nil {
		vlog.Errorf("nopty: suspend kill(0, %s) failed: %v", sig, err)
	}
	// Execution resumes here once the kernel delivers SIGCONT to our
	// stopped pgrp; that happens regardless of SIGCONT's own block state.
	if sig != unix.SIGSTOP {
		reblockSignal(sig)
	}

	vlog.VI(1).Infof("nopty: supervisor resumed, continuing child %d", ec.cmndPid)
	if ec.cmndPid != -1 {
		if err := unix.Kill(ec.cmndPid, unix.SIGCONT); err != nil {
			vlog.Errorf("nopty: kill(%d, SIGCONT) failed: %v", ec.cmndPid, err)
		}
	}
}
