// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"testing"

	"golang.org/x/sys/unix"
)

const (
	supervisorPgrp = 100
	childPid       = 200
)

func fixedPgrp(pgrps map[int]int) pgrpLookup {
	return func(pid int) (int, error) {
		pgrp, ok := pgrps[pid]
		if !ok {
			return 0, unix.ESRCH
		}
		return pgrp, nil
	}
}

func TestClassifyNoChild(t *testing.T) {
	d := classify(unix.SIGTERM, siginfo{pid: 999, code: 0}, -1, supervisorPgrp, fixedPgrp(nil))
	if !d.noChild || d.forward {
		t.Fatalf("expected noChild with cmndPid == -1, got %+v", d)
	}
}

func TestClassifySigchldAlwaysReaps(t *testing.T) {
	d := classify(unix.SIGCHLD, siginfo{code: 1}, childPid, supervisorPgrp, fixedPgrp(nil))
	if !d.isChld || d.forward {
		t.Fatalf("expected isChld, got %+v", d)
	}
}

func TestClassifySigalrmTerminatesNotForwards(t *testing.T) {
	d := classify(unix.SIGALRM, siginfo{code: -2}, childPid, supervisorPgrp, fixedPgrp(nil))
	if !d.isAlarm || d.forward {
		t.Fatalf("expected isAlarm, got %+v", d)
	}
}

// TestClassifyForwardedSigint covers a user-generated SIGINT from a
// process in an unrelated process group, which must be forwarded.
func TestClassifyForwardedSigint(t *testing.T) {
	pg := fixedPgrp(map[int]int{500: 777})
	d := classify(unix.SIGINT, siginfo{pid: 500, code: 0 /* SI_USER */}, childPid, supervisorPgrp, pg)
	if !d.forward {
		t.Fatalf("expected forward=true, got %+v", d)
	}
}

// TestClassifyKernelGeneratedSelfSuspendNotForwarded covers a
// kernel-generated signal in the self-suspend class, which is never
// forwarded even if it would otherwise look like it came from an
// unrelated pgrp.
func TestClassifyKernelGeneratedSelfSuspendNotForwarded(t *testing.T) {
	pg := fixedPgrp(map[int]int{500: 777})
	d := classify(unix.SIGTSTP, siginfo{pid: 500, code: 1 /* kernel-ish, > 0 */}, childPid, supervisorPgrp, pg)
	if d.forward {
		t.Fatalf("expected forward=false for kernel-generated signal, got %+v", d)
	}
}

// TestClassifySuppressedSelfTstp covers a curses-like child sending
// SIGTSTP to its own process group; the supervisor must not double it.
func TestClassifySuppressedSelfTstp(t *testing.T) {
	pg := fixedPgrp(map[int]int{childPid: childPid})
	d := classify(unix.SIGTSTP, siginfo{pid: childPid, code: 0}, childPid, supervisorPgrp, pg)
	if d.forward {
		t.Fatalf("expected forward=false for self-pgrp SIGTSTP, got %+v", d)
	}
}

// TestClassifySuppressedSupervisorPgrp covers the symmetric case: a
// signal sent by something in the supervisor's own pgrp.
func TestClassifySuppressedSupervisorPgrp(t *testing.T) {
	pg := fixedPgrp(map[int]int{42: supervisorPgrp})
	d := classify(unix.SIGINT, siginfo{pid: 42, code: 0}, childPid, supervisorPgrp, pg)
	if d.forward {
		t.Fatalf("expected forward=false for supervisor-pgrp sender, got %+v", d)
	}
}

// TestClassifyGetpgidFailsFallsBackToPid covers the "pgid lookup fails"
// branch of rule 3/5: if si_pid == cmndPid even when getpgid errors, don't
// forward.
func TestClassifyGetpgidFailsFallsBackToPid(t *testing.T) {
	d := classify(unix.SIGINT, siginfo{pid: childPid, code: 0}, childPid, supervisorPgrp, fixedPgrp(nil))
	if d.forward {
		t.Fatalf("expected forward=false when si_pid == cmndPid and getpgid fails, got %+v", d)
	}
}

// TestClassifyDefaultRebootSelfHarm covers rule 5's example: kill(-1,
// SIGTERM) from something in the command's own pgrp must not be
// forwarded (it would let the command indirectly kill itself).
func TestClassifyDefaultRebootSelfHarm(t *testing.T) {
	pg := fixedPgrp(map[int]int{1: childPid})
	d := classify(unix.SIGTERM, siginfo{pid: 1, code: 0}, childPid, supervisorPgrp, pg)
	if d.forward {
		t.Fatalf("expected forward=false for command-pgrp TERM, got %+v", d)
	}
}

// TestClassifyZeroPidDefaultForwarded covers rule 5's "otherwise" branch
// for a user-generated (SI_USER) default-class signal with a zero sender
// pid: there is no sender pgrp to look up, so it should still forward.
func TestClassifyZeroPidDefaultForwarded(t *testing.T) {
	d := classify(unix.SIGPIPE, siginfo{pid: 0, code: 0}, childPid, supervisorPgrp, fixedPgrp(nil))
	if !d.forward {
		t.Fatalf("expected forward=true for zero-pid default signal, got %+v", d)
	}
}

func TestFlagsString(t *testing.T) {
	if got, want := Flags(0).String(), "NONE"; got != want {
		t.Errorf("Flags(0).String() = %q, want %q", got, want)
	}
	f := Intercept | UsePtrace
	if got, want := f.String(), "INTERCEPT|USE_PTRACE"; got != want {
		t.Errorf("Flags.String() = %q, want %q", got, want)
	}
}
