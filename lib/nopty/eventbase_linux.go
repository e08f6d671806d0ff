// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package nopty

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

// eventBase is a single-threaded cooperative dispatcher implemented with
// a Linux signalfd rather than hand-rolled signal handlers: it hides the
// conventional async-signal-unsafe boundary by funneling signals through
// a kernel-backed fd, pollable alongside every other event source, and
// signalfd is the idiomatic Linux realization of that — it also hands
// back the siginfo (sender pid, si_code) the signal dispatcher needs,
// which Go's os/signal package does not expose.
//
// Using signalfd requires the registered signals to stay blocked via
// sigprocmask for as long as the event base is live: the calling
// thread's mask stays narrowed to "registered signals blocked" for the
// whole dispatch loop and is restored to the caller's original mask only
// at teardown. The observable contract — every registered signal is
// funneled through dispatchSignal exactly once, none are silently
// dropped — holds throughout.
type eventBase struct {
	sigFd    int
	savedSet unix.Sigset_t

	reads map[int]func(*execClosure)
	order []int

	exit bool
	brk  bool
}

// newEventBase blocks the full registered signal set on the calling
// (and, per the Linux clone(2) inheritance rule, any subsequently
// created) OS thread, opens a signalfd for it, and returns the resulting
// eventBase. It calls runtime.LockOSThread itself, since signal masks
// are a per-thread property on Linux; callers must keep running dispatch
// on the same goroutine.
func newEventBase() (*eventBase, error) {
	runtime.LockOSThread()

	var set unix.Sigset_t
	for _, sig := range allSignals() {
		addSignal(&set, sig)
	}

	var oldSet unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, &oldSet); err != nil {
		return nil, err
	}

	fd, err := unix.Signalfd(-1, &set, unix.SFD_CLOEXEC|unix.SFD_NONBLOCK)
	if err != nil {
		unix.PthreadSigmask(unix.SIG_SETMASK, &oldSet, nil)
		return nil, err
	}

	return &eventBase{
		sigFd:    fd,
		savedSet: oldSet,
		reads:    make(map[int]func(*execClosure)),
	}, nil
}

// addRead registers a persistent readable-fd event.
func (eb *eventBase) addRead(fd int, cb func(*execClosure)) {
	if _, ok := eb.reads[fd]; !ok {
		eb.order = append(eb.order, fd)
	}
	eb.reads[fd] = cb
}

// delRead deregisters a readable-fd event.
func (eb *eventBase) delRead(fd int) {
	delete(eb.reads, fd)
	for i, f := range eb.order {
		if f == fd {
			eb.order = append(eb.order[:i], eb.order[i+1:]...)
			break
		}
	}
}

func (eb *eventBase) loopExit()  { eb.exit = true }
func (eb *eventBase) loopBreak() { eb.brk = true }

// dispatch runs the event loop until loopExit, loopBreak, or a fatal
// polling error. It returns true if the loop ended via loopBreak (the
// error path).
func (eb *eventBase) dispatch(ec *execClosure) bool {
	eb.addRead(eb.sigFd, eb.handleSignalFD)
	defer eb.delRead(eb.sigFd)

	for !eb.exit && !eb.brk {
		pollfds := make([]unix.PollFd, 0, len(eb.order))
		for _, fd := range eb.order {
			pollfds = append(pollfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		}
		n, err := unix.Poll(pollfds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			vlog.Errorf("nopty: poll failed: %v", err)
			eb.brk = true
			break
		}
		if n == 0 {
			continue
		}
		for _, pfd := range pollfds {
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			cb, ok := eb.reads[int(pfd.Fd)]
			if !ok {
				continue
			}
			cb(ec)
			if eb.exit || eb.brk {
				break
			}
		}
	}
	return eb.brk
}

// teardown restores the caller's original signal mask and closes the
// signalfd.
func (eb *eventBase) teardown() {
	unix.Close(eb.sigFd)
	unix.PthreadSigmask(unix.SIG_SETMASK, &eb.savedSet, nil)
}

// handleSignalFD reads every currently-pending signalfd_siginfo (there
// may be more than one ready at once) and dispatches each.
func (eb *eventBase) handleSignalFD(ec *execClosure) {
	for {
		var si unix.SignalfdSiginfo
		buf := (*[unix.SizeofSignalfdSiginfo]byte)(unsafe.Pointer(&si))[:]
		n, err := unix.Read(eb.sigFd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				return
			}
			vlog.Errorf("nopty: signalfd read failed: %v", err)
			return
		}
		if n < unix.SizeofSignalfdSiginfo {
			return
		}
		dispatchSignal(ec, unix.Signal(si.Signo), siginfo{pid: int(si.Pid), code: si.Code})
		if eb.exit || eb.brk {
			return
		}
	}
}

func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	// unix.Sigset_t is a fixed-size bitmask; golang.org/x/sys/unix
	// exposes no portable setter, so mirror sigaddset's definition
	// directly (signals are 1-indexed).
	word := (sig - 1) / 64
	bit := uint64(1) << (uint(sig-1) % 64)
	set.Val[word] |= bit
}

func unblockSignal(sig unix.Signal) {
	var set unix.Sigset_t
	addSignal(&set, sig)
	if err := unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil); err != nil {
		vlog.Errorf("nopty: unblock %s failed: %v", sig, err)
	}
}

func reblockSignal(sig unix.Signal) {
	var set unix.Sigset_t
	addSignal(&set, sig)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		vlog.Errorf("nopty: re-block %s failed: %v", sig, err)
	}
}
