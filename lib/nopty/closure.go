// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"os"

	"v.io/x/lib/vlog"
)

// execClosure is the per-invocation state a supervisor thread of control
// needs. It is owned exclusively by the goroutine running Supervise; every
// field on it is touched only from that goroutine or from eventBase
// callbacks, which are themselves serialized by eventBase, so no lock is
// needed.
type execClosure struct {
	details *CommandDetails
	cstat   *CommandStatus

	cmndPid int // -1 once the main child has been reaped or before fork
	ppgrp   int // supervisor's process group at entry, captured pre-fork

	eb *eventBase

	errRead *os.File // parent end of the error pipe

	intercept interceptHandle // nil if no intercept/tracing requested

	// loopBreak records that the event loop exited via its error path
	// rather than a clean loop exit.
	loopBreak bool
}

func (ec *execClosure) log() {
	vlog.VI(1).Infof("nopty: pid=%d ppgrp=%d flags=%s cstat=%s",
		ec.cmndPid, ec.ppgrp, ec.details.Flags, ec.cstat.Type)
}
