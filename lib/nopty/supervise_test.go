// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package nopty

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestSuperviseCleanExit covers a command that exits 0 reporting a
// WStatus outcome with ExitStatus() == 0.
func TestSuperviseCleanExit(t *testing.T) {
	details := &CommandDetails{
		Path: "/bin/sh",
		Argv: []string{"sh", "-c", "exit 0"},
		Env:  []string{"PATH=/usr/bin:/bin"},
	}
	var status CommandStatus
	err := Supervise(details, &status)
	if err != nil {
		t.Fatalf("Supervise: %v", err)
	}
	if status.Type != WStatus {
		t.Fatalf("status.Type = %s, want WSTATUS", status.Type)
	}
	if !status.Status.Exited() || status.Status.ExitStatus() != 0 {
		t.Fatalf("status.Status = %#v, want clean exit(0)", status.Status)
	}
}

// TestSuperviseNonZeroExit covers a command that exits with a non-zero
// status; Supervise itself still returns nil (the outcome is reported
// through status, not as a Go error), keeping supervisor-level failure
// separate from command-level exit status.
func TestSuperviseNonZeroExit(t *testing.T) {
	details := &CommandDetails{
		Path: "/bin/sh",
		Argv: []string{"sh", "-c", "exit 7"},
		Env:  []string{"PATH=/usr/bin:/bin"},
	}
	var status CommandStatus
	if err := Supervise(details, &status); err != nil {
		t.Fatalf("Supervise: %v", err)
	}
	if status.Type != WStatus || status.Status.ExitStatus() != 7 {
		t.Fatalf("status = %+v, want exit(7)", status)
	}
}

// TestSuperviseExecFailure covers a nonexistent path surfacing as an
// Errno outcome, not a panic or a hang.
func TestSuperviseExecFailure(t *testing.T) {
	details := &CommandDetails{
		Path: "/no/such/executable-nopty-test",
		Argv: []string{"executable-nopty-test"},
		Env:  []string{"PATH=/usr/bin:/bin"},
	}
	var status CommandStatus
	err := Supervise(details, &status)
	if err == nil {
		t.Fatalf("Supervise: expected error for missing executable")
	}
	if status.Type != Errno {
		t.Fatalf("status.Type = %s, want ERRNO", status.Type)
	}
}

// TestSuperviseTerminatedBeforeStart covers the early-exit check made
// under the blocked signal mask: a command whose Terminated predicate
// already reports true never gets forked at all.
func TestSuperviseTerminatedBeforeStart(t *testing.T) {
	details := &CommandDetails{
		Path:       "/bin/sh",
		Argv:       []string{"sh", "-c", "exit 0"},
		Env:        []string{"PATH=/usr/bin:/bin"},
		Terminated: func() bool { return true },
	}
	var status CommandStatus
	err := Supervise(details, &status)
	if err == nil {
		t.Fatalf("Supervise: expected ErrTerminated")
	}
	if status.Type != Errno {
		t.Fatalf("status.Type = %s, want ERRNO", status.Type)
	}
}

// TestSuperviseTimeout covers SetTimeout forcing termination of a
// command that would otherwise run forever. Uses a fake timekeeper so
// the test doesn't depend on real wall-clock delay.
func TestSuperviseTimeout(t *testing.T) {
	fc := newFakeClock()
	oldClock := terminateClock
	terminateClock = fc
	defer func() { terminateClock = oldClock }()

	details := &CommandDetails{
		Path:    "/bin/sh",
		Argv:    []string{"sh", "-c", "trap '' TERM; sleep 30"},
		Env:     []string{"PATH=/usr/bin:/bin"},
		Flags:   SetTimeout,
		Timeout: time.Millisecond,
	}
	var status CommandStatus

	done := make(chan error, 1)
	go func() { done <- Supervise(details, &status) }()

	// fc's channel is buffered, so firing before armTimeout's goroutine
	// reaches it is fine. terminate's normal HUP/TERM/grace/KILL sequence
	// is used here (not its force path); the sh child ignores SIGTERM but
	// not SIGHUP, and fc's no-op Sleep makes the grace period instant.
	fc.fire()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Supervise: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Supervise did not return after simulated timeout")
	}

	if status.Type != WStatus {
		t.Fatalf("status.Type = %s, want WSTATUS", status.Type)
	}
	if !status.Status.Signaled() {
		t.Fatalf("status.Status = %#v, want signaled (killed by escalating terminate)", status.Status)
	}
}

// fakeClock is a minimal timekeeper.TimeKeeper stub for deterministic
// timeout tests.
type fakeClock struct {
	c chan time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{c: make(chan time.Time, 1)} }

func (f *fakeClock) After(d time.Duration) <-chan time.Time { return f.c }
func (f *fakeClock) Sleep(d time.Duration)                  {}
func (f *fakeClock) Now() time.Time                         { return time.Time{} }
func (f *fakeClock) fire()                                  { f.c <- time.Time{} }

func TestOsGetpgidSelf(t *testing.T) {
	if _, err := osGetpgid(unix.Getpid()); err != nil {
		t.Fatalf("osGetpgid(self): %v", err)
	}
}
