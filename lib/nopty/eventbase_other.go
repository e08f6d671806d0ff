// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package nopty

import (
	"errors"

	"golang.org/x/sys/unix"
)

// eventBase on non-Linux platforms: signalfd is Linux-only, and this
// package does not (yet) implement the kqueue-based EVFILT_SIGNAL
// equivalent available on BSD/Darwin. newEventBase fails cleanly rather
// than silently degrading to a mode that can miss siginfo-dependent
// self-harm avoidance in signal classification.
type eventBase struct{}

func newEventBase() (*eventBase, error) {
	return nil, errors.New("nopty: non-pty supervisor event base requires Linux (signalfd)")
}

func (eb *eventBase) addRead(fd int, cb func(*execClosure)) {}
func (eb *eventBase) delRead(fd int)                        {}
func (eb *eventBase) loopExit()                             {}
func (eb *eventBase) loopBreak()                             {}
func (eb *eventBase) dispatch(ec *execClosure) bool          { return false }
func (eb *eventBase) teardown()                              {}

func unblockSignal(sig unix.Signal) {}
func reblockSignal(sig unix.Signal) {}
