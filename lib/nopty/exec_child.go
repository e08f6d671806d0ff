// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"os"
	"os/exec"
	"syscall"
)

// defaultExecChild is the CommandDetails.ExecChild used when a caller
// does not supply one: it starts details.Path/Argv/Env as its own new
// process group leader, with intercept inherited as a fixed extra file
// descriptor so a cooperating in-process library has a stable fd number
// to look for.
//
// Grounded on lib/exec.ParentHandle.Start's use of os/exec.Cmd.ExtraFiles
// to hand a child process pipe fds beyond stdin/stdout/stderr.
//
// errFD is deliberately NOT inherited here: os/exec.Cmd.Start already
// performs its own close-on-exec error-pipe handshake internally and
// only returns once exec(2) has definitively succeeded or failed, so a
// second, supervisor-level error pipe would just sit open in the child
// for no purpose other than to delay the EOF errPipeCallback is waiting
// for until the child eventually exits. Supervise still passes errFD
// through to custom ExecChild implementations that manage fork+exec
// themselves (e.g. via syscall.ForkExec) and so do need it.
func defaultExecChild(details *CommandDetails, intercept *os.File, errFD *os.File) (int, error) {
	cmd := newProcessGroupCmd(details, intercept)

	if err := cmd.Start(); err != nil {
		// Already fully resolved: no orphaned child is left running.
		// Supervise records the returned error as an Errno outcome.
		return -1, err
	}
	// Ownership of the child's lifecycle (reaping, wait status) passes
	// to the supervisor's own event loop (reap in reaper.go) from here;
	// cmd.Wait is intentionally never called.
	return cmd.Process.Pid, nil
}

// newProcessGroupCmd builds the *exec.Cmd shape every ExecChild strategy
// in this package starts from: details.Path/Argv/Env, stdio inherited
// from the supervisor, its own new process group, and intercept (if
// non-nil) appended as a fixed extra file descriptor.
func newProcessGroupCmd(details *CommandDetails, intercept *os.File) *exec.Cmd {
	cmd := exec.Command(details.Path, details.Argv...)
	if len(details.Argv) > 0 {
		cmd.Args = details.Argv
	}
	cmd.Env = details.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if intercept != nil {
		cmd.ExtraFiles = append(cmd.ExtraFiles, intercept)
	}
	return cmd
}
