// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
	"v.io/v23/verror"
	"v.io/x/lib/vlog"
)

const pkgPath = "github.com/arcsh/nopty/lib/nopty"

var (
	// ErrTerminated is returned when CommandDetails.Terminated already
	// reported true before the command was ever started: an early-exit
	// check made under the fully blocked signal mask so no SIGTERM
	// racing fork can slip past it unnoticed.
	ErrTerminated = verror.Register(pkgPath+".ErrTerminated", verror.NoRetry, "{1:}{2:} command was terminated before it was started{:_}")

	errNoOutcome = verror.Register(pkgPath+".errNoOutcome", verror.NoRetry, "{1:}{2:} event loop exited without recording a command outcome{:_}")
)

// Supervise runs details.Path under full job-control supervision and
// reports its outcome in status end to end: session and RBAC setup,
// fork+exec with an inherited error pipe, a blocked-signal event loop
// that forwards, reaps, times out and suspends/resumes in lockstep with
// the child, and a forced SIGKILL termination of the child's process
// group on any unrecoverable event-loop error.
//
// Supervise returns nil only when the command ran to completion and
// status.Type is WStatus; any other outcome is also returned as an
// error for callers that don't want to inspect status themselves.
func Supervise(details *CommandDetails, status *CommandStatus) error {
	if status == nil {
		status = &CommandStatus{}
	}

	if details.SessionInit != nil {
		if err := details.SessionInit.InitSession(); err != nil {
			status.setErrno(err)
			return err
		}
	}

	if details.Flags.Has(RBACEnabled) && details.Relabeler != nil {
		if err := details.Relabeler.Relabel(details.TTY); err != nil {
			status.setErrno(err)
			return err
		}
		defer func() {
			if err := details.Relabeler.Restore(details.TTY); err != nil {
				vlog.Errorf("nopty: restoring tty label: %v", err)
			}
		}()
		details.Relabeler.AuditRoleChange()
	}

	errR, errW, err := newErrPipe()
	if err != nil {
		status.setErrno(err)
		return err
	}

	var interceptParent, interceptChild *os.File
	if (details.Flags.Has(Intercept) || details.Flags.Has(LogSubcmds)) && !details.Flags.Has(UsePtrace) {
		// The socket pair is only needed for the non-ptrace intercept
		// path; when UsePtrace is also set, the ptrace seize below
		// substitutes for it and must inherit nothing across exec.
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		if err != nil {
			errR.Close()
			errW.Close()
			status.setErrno(err)
			return err
		}
		interceptParent = os.NewFile(uintptr(fds[0]), "nopty-intercept-parent")
		interceptChild = os.NewFile(uintptr(fds[1]), "nopty-intercept-child")
	}

	// eventBase construction blocks every signal the classifier cares
	// about on this OS thread before forking, so the fork below cannot
	// race a signal arriving between fork and the supervisor being
	// ready to read it off the signalfd.
	eb, err := newEventBase()
	if err != nil {
		errR.Close()
		errW.Close()
		if interceptParent != nil {
			interceptParent.Close()
		}
		if interceptChild != nil {
			interceptChild.Close()
		}
		status.setErrno(err)
		return err
	}

	ec := &execClosure{
		details: details,
		cstat:   status,
		cmndPid: -1,
		eb:      eb,
		errRead: errR,
	}
	if pgrp, err := unix.Getpgid(0); err == nil {
		ec.ppgrp = pgrp
	}

	cleanup := func() {
		if ec.intercept != nil {
			ec.intercept.Cleanup()
		} else if interceptParent != nil {
			interceptParent.Close()
		}
		eb.teardown()
	}

	// The early-exit check, made under the now-fully-blocked mask so a
	// caller-side Terminated flip can't race a SIGTERM that would
	// otherwise be delivered to a child that was never started.
	if details.Terminated != nil && details.Terminated() {
		vlog.VI(1).Infof("nopty: command already terminated before fork")
		errW.Close()
		if interceptChild != nil {
			interceptChild.Close()
		}
		cleanup()
		status.setErrno(verror.New(ErrTerminated, nil))
		return status.Err
	}

	execChild := details.ExecChild
	if execChild == nil {
		execChild = defaultExecChild
	}
	pid, err := execChild(details, interceptChild, errW)
	// The error pipe's write end (and the intercept socket's child end)
	// must be closed in the parent immediately once execChild returns,
	// not deferred to function exit: with the default ExecChild, no
	// copy of errW is ever handed to the child (see exec_child.go), so
	// closing our own copy here makes errR observe EOF right away,
	// which errPipeCallback treats as "exec succeeded". A custom
	// ExecChild that does inherit errFD into its child keeps the same
	// contract: its copy is close-on-exec, so a successful exec(2)
	// closes it automatically and a failed one leaves it open just
	// long enough to write the errno.
	errW.Close()
	if interceptChild != nil {
		interceptChild.Close()
	}
	if err != nil {
		cleanup()
		status.setErrno(err)
		return err
	}
	ec.cmndPid = pid
	vlog.VI(1).Infof("nopty: forked pid %d flags=%s", pid, details.Flags)

	if details.Flags.Has(SetTimeout) && details.Timeout > 0 {
		armTimeout(ec, details.Timeout)
	}

	// Everything below, including a ptrace seize attempt, is gated on
	// Intercept||LogSubcmds; UsePtrace on its own (neither set) is a
	// no-op, matching exec_cmnd's own ISSET(flags, CD_INTERCEPT|
	// CD_LOG_SUBCMDS) guard around this whole block.
	if details.Flags.Has(Intercept) || details.Flags.Has(LogSubcmds) {
		ec.intercept = defaultInterceptSetup(interceptParent, eb, details)

		if details.Flags.Has(UsePtrace) {
			switch execPtraceSeize(pid) {
			case ptraceSeizeOK:
				ec.intercept = &ptraceIntercept{pid: pid, sockFD: interceptParent}
			case ptraceSeizeAnotherTracer:
				// Another tracer already owns this pid; clear
				// every flag we can no longer honor rather than
				// silently pretend we are still intercepting.
				details.Flags &^= Intercept | LogSubcmds | UsePtrace
			case ptraceSeizeFatal:
				// A real seize failure forces termination rather
				// than leaving the child running unintercepted.
				terminate(pid, true)
				reap(ec)
				ec.cmndPid = -1
			}
		}
	}

	if ec.cmndPid == -1 {
		// The ptrace seize above failed fatally: the child was sent
		// SIGKILL and one non-blocking reap was attempted, so there is
		// nothing left to dispatch events for.
		errR.Close()
		cleanup()
		ec.log()
		if status.Type == Invalid {
			status.setErrno(verror.New(errNoOutcome, nil))
		}
		if status.Type == Errno {
			return status.Err
		}
		return nil
	}

	eb.addRead(int(errR.Fd()), errPipeCallback)

	brk := eb.dispatch(ec)
	ec.loopBreak = brk

	if brk {
		// An unrecoverable event-loop failure forces termination
		// rather than leaving the child unsupervised.
		if ec.cmndPid != -1 {
			terminate(ec.cmndPid, true)
			reap(ec)
		}
	}

	cleanup()
	ec.log()

	if status.Type == Invalid {
		status.setErrno(verror.New(errNoOutcome, nil))
	}
	if status.Type == Errno {
		return status.Err
	}
	return nil
}

// armTimeout starts the background timer backing the SetTimeout flag.
// It self-signals the supervisor with SIGALRM, which classify() always
// routes to terminate rather than forwarding, so the actual termination
// logic stays centralized in dispatchSignal instead of being duplicated
// here. Sending SIGALRM after the command has already finished is
// harmless: classify's noChild rule (cmndPid == -1) discards it, so this
// goroutine doesn't need to cross-goroutine-read any execClosure state
// to decide whether to fire.
func armTimeout(ec *execClosure, d time.Duration) {
	go func() {
		<-terminateClock.After(d)
		if err := unix.Kill(unix.Getpid(), unix.SIGALRM); err != nil {
			vlog.Errorf("nopty: timeout self-signal failed: %v", err)
		}
	}()
}
