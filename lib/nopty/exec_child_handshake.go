// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"os"
	"time"

	"github.com/arcsh/nopty/lib/exec"
)

// GobHandshakeExecChild builds a CommandDetails.ExecChild for a target
// command that is itself written to call exec.GetChildHandle(): instead
// of starting details.Path/Argv/Env with bare os/exec, it carries cfg
// down to the child over lib/exec's gob-encoded parent/child pipe and
// blocks, up to handshakeTimeout, for the child to report readiness or
// failure through exec.ChildHandle.SetReady/SetFailed before treating it
// as started. This lets a cooperating child hand back data the
// supervisor has no other way to learn (its own pid if it re-execs
// through a shell, a negotiated feature set) without resorting to argv
// or environment variables visible to further descendants.
//
// A child that fails the handshake or times out never reaches
// Supervise's event loop at all: GobHandshakeExecChild kills it and
// returns the handshake error, which Supervise reports as an Errno
// outcome the same way an exec(2) failure would be.
//
// Grounded on lib/exec.ParentHandle.Start/WaitForReady, adapted from a
// pre-built *exec.Cmd to CommandDetails' path/argv/env and to this
// package's intercept/errFD fd-passing contract (see newProcessGroupCmd
// in exec_child.go); a target command with no use for the handshake
// should use defaultExecChild instead.
func GobHandshakeExecChild(cfg exec.Config, handshakeTimeout time.Duration) func(details *CommandDetails, intercept *os.File, errFD *os.File) (int, error) {
	return func(details *CommandDetails, intercept *os.File, errFD *os.File) (int, error) {
		cmd := newProcessGroupCmd(details, intercept)

		p := exec.NewParentHandle(cmd, exec.ConfigOpt{Config: cfg})
		if err := p.Start(); err != nil {
			return -1, err
		}
		if err := p.WaitForReady(handshakeTimeout); err != nil {
			p.Kill()
			return -1, err
		}
		return p.Pid(), nil
	}
}
