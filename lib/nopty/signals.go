// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

// baseSignals is the set of signals registered on every platform.
// allSignals (platform-specific) appends SIGINFO on the platforms that
// define it.
var baseSignals = []unix.Signal{
	unix.SIGINT, unix.SIGQUIT, unix.SIGTSTP, unix.SIGTERM, unix.SIGHUP,
	unix.SIGALRM, unix.SIGPIPE, unix.SIGUSR1, unix.SIGUSR2, unix.SIGCHLD,
	unix.SIGCONT,
}

// siginfo mirrors the handful of siginfo_t fields needed here: the
// sending pid and whether the delivery was user-generated (si_code <= 0)
// as opposed to kernel-synthesized (e.g. SIGSEGV, or SIGCHLD's own
// CLD_EXITED/CLD_KILLED codes, which are always > 0).
type siginfo struct {
	pid  int
	code int32
}

func (si siginfo) userGenerated() bool { return si.code <= 0 }

// pgrpLookup abstracts getpgid so classify can be unit tested without a
// real process tree.
type pgrpLookup func(pid int) (pgrp int, err error)

// forwardDecision is the pure result of classifying one signal delivery.
type forwardDecision struct {
	forward bool
	isAlarm bool // SIGALRM: terminate instead of forwarding
	isChld  bool // SIGCHLD: reap instead of forwarding
	noChild bool // cmndPid == -1: ignore entirely
}

// classify is the pure signal-forwarding decision function, so it can be
// exercised without forking anything.
func classify(sig unix.Signal, si siginfo, cmndPid, ppgrp int, getpgrp pgrpLookup) forwardDecision {
	if cmndPid == -1 {
		return forwardDecision{noChild: true}
	}
	if sig == unix.SIGCHLD {
		return forwardDecision{isChld: true}
	}

	selfHarm := func() bool {
		if si.pid == 0 {
			return false
		}
		if pgrp, err := getpgrp(si.pid); err == nil {
			return pgrp == ppgrp || pgrp == cmndPid
		}
		return si.pid == cmndPid
	}

	switch sig {
	case unix.SIGINT, unix.SIGQUIT, unix.SIGTSTP, sigInfoSignal:
		// Self-suspend class signals are only ever forwarded when
		// user-generated, and never when they look like the command
		// re-signaling its own process group (curses programs
		// commonly do this with SIGTSTP).
		if !si.userGenerated() {
			return forwardDecision{}
		}
		if selfHarm() {
			return forwardDecision{}
		}
		return forwardDecision{forward: true}
	case unix.SIGALRM:
		return forwardDecision{isAlarm: true}
	default:
		// Default self-harm avoidance applies only to user-generated
		// signals; unlike the self-suspend class above, a
		// kernel-generated signal here is still forwarded.
		if si.userGenerated() && selfHarm() {
			return forwardDecision{}
		}
		return forwardDecision{forward: true}
	}
}

// dispatchSignal is the glue between the event base's raw (sig, siginfo)
// delivery and the pure classify function plus the reaper/terminate side
// effects.
func dispatchSignal(ec *execClosure, sig unix.Signal, si siginfo) {
	d := classify(sig, si, ec.cmndPid, ec.ppgrp, osGetpgid)
	switch {
	case d.noChild:
		return
	case d.isChld:
		reap(ec)
		if ec.cmndPid == -1 {
			ec.eb.loopExit()
		}
		return
	case d.isAlarm:
		vlog.VI(1).Infof("nopty: SIGALRM, terminating pid %d", ec.cmndPid)
		terminate(ec.cmndPid, false)
		return
	case d.forward:
		if err := unix.Kill(ec.cmndPid, sig); err != nil {
			vlog.Errorf("nopty: kill(%d, %s) failed: %v", ec.cmndPid, sig, err)
		}
	}
}

func osGetpgid(pid int) (int, error) {
	return unix.Getpgid(pid)
}
