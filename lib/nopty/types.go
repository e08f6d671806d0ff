// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Flags is a closed set of feature flags controlling how Supervise treats
// a command. The zero value runs the command plainly, with no intercept
// channel, tracing, or timeout.
type Flags uint8

const (
	// Intercept asks the supervisor to set up a socket pair the child
	// inherits, over which a cooperating in-process library can report
	// sub-command executions.
	Intercept Flags = 1 << iota
	// LogSubcmds is like Intercept but only for logging purposes; it
	// shares the same channel setup.
	LogSubcmds
	// UsePtrace asks the supervisor to additionally (or instead, see
	// Supervise step 10) seize the child with the platform's
	// process-tracing primitive.
	UsePtrace
	// SetTimeout arms a wall-clock timeout for the command; see
	// CommandDetails.Timeout.
	SetTimeout
	// RBACEnabled asks the supervisor to relabel and later restore the
	// controlling tty's MAC label around the command's lifetime.
	RBACEnabled
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

func (f Flags) String() string {
	names := []struct {
		bit  Flags
		name string
	}{
		{Intercept, "INTERCEPT"},
		{LogSubcmds, "LOG_SUBCMDS"},
		{UsePtrace, "USE_PTRACE"},
		{SetTimeout, "SET_TIMEOUT"},
		{RBACEnabled, "RBAC_ENABLED"},
	}
	s := ""
	for _, n := range names {
		if f.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "NONE"
	}
	return s
}

// TTYIdent identifies the controlling terminal for MAC relabeling
// purposes. It is a contract-only value: the actual relabeling is done by
// an external collaborator (SELinuxRelabeler), not by this package.
type TTYIdent string

// SELinuxRelabeler is the external collaborator responsible for MAC
// labeling of the controlling terminal. Supervise calls it when
// RBACEnabled is set; the policy-plugin session init and label lookup
// logic live entirely on the caller's side of this interface.
type SELinuxRelabeler interface {
	// Relabel sets the terminal's label for the duration of the command.
	Relabel(tty TTYIdent) error
	// Restore reverts the relabeling done by Relabel.
	Restore(tty TTYIdent) error
	// AuditRoleChange records that a role change tied to this relabel
	// took place, for audit trails.
	AuditRoleChange()
}

// SessionInitializer is the external policy-plugin collaborator invoked
// before fork (Supervise step 1). A nil SessionInitializer in
// CommandDetails is treated as an always-succeeding no-op.
type SessionInitializer interface {
	InitSession() error
}

// CommandDetails is the (externally owned) description of the command to
// run and the environment it should run in.
type CommandDetails struct {
	// Path is the absolute path to the executable.
	Path string
	// Argv is the argument vector, Argv[0] is conventionally Path's
	// basename but may differ.
	Argv []string
	// Env is the environment passed to the child.
	Env []string
	// Flags controls optional supervisor behavior; see the Flags bits.
	Flags Flags
	// Timeout is the wall-clock duration after which the command is
	// forcibly terminated. Only consulted when Flags.Has(SetTimeout).
	Timeout time.Duration
	// ExecFD is an already-open fd a custom ExecChild may exec via
	// (e.g. fexecve-style). Supervise and defaultExecChild neither read
	// nor close it.
	ExecFD int
	// TTY identifies the controlling terminal for MAC relabeling.
	TTY TTYIdent
	// Relabeler is consulted when Flags.Has(RBACEnabled).
	Relabeler SELinuxRelabeler
	// SessionInit is consulted before fork.
	SessionInit SessionInitializer
	// Terminated is the external predicate Supervise consults (step 5,
	// under the fully-blocked signal mask) to see whether the caller
	// already decided, before Supervise was even called, that the
	// command should not be started at all (e.g. an earlier SIGTERM was
	// handled by the caller's own bookkeeping). A nil Terminated is
	// treated as "never".
	Terminated func() bool
	// ExecChild forks and execs the target command, returning its pid.
	// It owns process-group assignment (the child must become its own
	// pgrp leader) and inheritance of intercept and errFD into the
	// child; on exec(2) failure it is responsible for writing the errno
	// to errFD before the child exits. A nil
	// ExecChild uses defaultExecChild (os/exec.Cmd with
	// SysProcAttr.Setpgid). Callers needing exec-time behavior Go's
	// os/exec can't express — PTRACE_TRACEME before exec, an SELinux
	// exec context, fexecve via ExecFD — supply their own.
	//
	// Go's runtime disallows running arbitrary Go code between fork(2)
	// and exec(2) (only the forked thread's single OS thread survives,
	// and the Go scheduler needs more than that), so unlike the
	// C original there is no literal in-child closure; ExecChild is
	// expected to use syscall.ForkExec/os.StartProcess, which perform
	// fork+exec as a single atomic step implemented in the runtime.
	ExecChild func(details *CommandDetails, intercept *os.File, errFD *os.File) (pid int, err error)
}

// CmdStatusType tags which variant of CommandStatus is populated.
type CmdStatusType int

const (
	// Invalid is the initial state: no outcome has been recorded yet.
	Invalid CmdStatusType = iota
	// Errno means setup or exec failed with the given errno-ish error.
	Errno
	// WStatus means the main child produced a terminal wait status.
	WStatus
)

func (t CmdStatusType) String() string {
	switch t {
	case Invalid:
		return "INVALID"
	case Errno:
		return "ERRNO"
	case WStatus:
		return "WSTATUS"
	default:
		return fmt.Sprintf("CmdStatusType(%d)", int(t))
	}
}

// CommandStatus is the (externally owned) output sink Supervise reports
// the command's final disposition through. The zero value is Invalid.
//
// Monotonic rule: once Type is non-Invalid, Supervise never overwrites it
// with a later WStatus (an earlier exec-failure errno always wins).
type CommandStatus struct {
	Type   CmdStatusType
	Err    error           // set when Type == Errno
	Status unix.WaitStatus // set when Type == WStatus
}

func (cs *CommandStatus) setErrno(err error) {
	if cs.Type != Invalid {
		return
	}
	cs.Type = Errno
	cs.Err = err
}

func (cs *CommandStatus) setWStatus(st unix.WaitStatus) bool {
	if cs.Type != Invalid {
		return false
	}
	cs.Type = WStatus
	cs.Status = st
	return true
}
