// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package nopty

import "golang.org/x/sys/unix"

// sigInfoSignal is the zero signal on Linux, which does not define
// SIGINFO. classify's SIGINFO case therefore never matches here,
// preserving the platform guard around SIGINFO handling.
const sigInfoSignal unix.Signal = 0

// allSignals returns the full signal set registered on this platform.
func allSignals() []unix.Signal {
	return baseSignals
}
