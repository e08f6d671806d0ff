// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"v.io/x/lib/vlog"
)

// newErrPipe creates the close-on-exec error pipe: the child writes its
// exec(2) errno to the write end if (and only if) exec fails; EOF on the
// read end means exec succeeded.
//
// Both ends are close-on-exec (os.Pipe sets O_CLOEXEC): a successful
// exec closes any copy of the write end an ExecChild hands to its child,
// while a failed exec leaves it open long enough to write the errno.
// defaultExecChild does not hand the write end to the child at all (see
// exec_child.go).
func newErrPipe() (r, w *os.File, err error) {
	r, w, err = os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return r, w, nil
}

// errPipeCallback is invoked by the event base whenever the parent end of
// the error pipe becomes readable.
//
// A short-but-nonzero read is treated as a complete value: if fewer than
// 4 bytes arrived the decoded errno is unspecified, matching (not fixing)
// the original's behavior.
func errPipeCallback(ec *execClosure) {
	var errval int32
	err := binary.Read(ec.errRead, binary.LittleEndian, &errval)
	switch {
	case err == nil:
		// A full int arrived: the child failed to exec.
		vlog.VI(1).Infof("errpipe: errno from child: %v", errval)
		ec.cstat.setErrno(errnoError(errval))
		deregisterErrPipe(ec)
	case errors.Is(err, io.EOF):
		// EOF with zero bytes read: exec succeeded.
		vlog.VI(1).Infof("errpipe: EOF, exec succeeded")
		deregisterErrPipe(ec)
	case errors.Is(err, io.ErrUnexpectedEOF):
		// A short, nonzero read. binary.Read gave up partway through
		// decoding the int32; reconstruct best-effort from whatever it
		// managed to read so far is not available here, so we record
		// a generic marker value and leave the decoded errno undefined.
		vlog.VI(1).Infof("errpipe: short read, errno undefined")
		ec.cstat.setErrno(errnoError(-1))
		deregisterErrPipe(ec)
	case isTemporary(err):
		// EAGAIN/EINTR: no state change, wait for the next readable
		// event.
		return
	default:
		if ec.cstat.Type == Invalid {
			ec.cstat.setErrno(err)
		}
		vlog.Errorf("errpipe: read failed: %v", err)
		ec.eb.loopBreak()
	}
}

func deregisterErrPipe(ec *execClosure) {
	ec.eb.delRead(int(ec.errRead.Fd()))
	ec.errRead.Close()
}
