// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"time"

	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"

	"github.com/arcsh/nopty/lib/timekeeper"
)

// terminateGrace is the pause between SIGTERM and SIGKILL in the
// escalating termination sequence, grounded on the concrete
// SIGTERM -> grace -> SIGKILL sequence
// edirooss-zmux-server/internal/infrastructure/processmgr/process.go
// documents and implements in Go.
var terminateGrace = 2 * time.Second

var terminateClock timekeeper.TimeKeeper = timekeeper.RealTime()

// terminate sends the escalating kill sequence to the child's whole
// process group (not just its pid, so that any further descendants it
// spawned are reached too). When force is true (the event loop's own
// error path) it skips straight to SIGKILL since there is no time to
// wait out a grace period during teardown.
func terminate(pid int, force bool) {
	pgrp := -pid // negative pid targets the process group
	if force {
		killPgrp(pgrp, unix.SIGKILL)
		return
	}
	killPgrp(pgrp, unix.SIGHUP)
	killPgrp(pgrp, unix.SIGTERM)
	terminateClock.Sleep(terminateGrace)
	killPgrp(pgrp, unix.SIGKILL)
}

func killPgrp(pgrp int, sig unix.Signal) {
	if err := unix.Kill(pgrp, sig); err != nil && err != unix.ESRCH {
		vlog.Errorf("nopty: kill(%d, %s) failed: %v", pgrp, sig, err)
	}
}
