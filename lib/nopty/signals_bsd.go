// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin || freebsd || netbsd || openbsd

package nopty

import "golang.org/x/sys/unix"

// sigInfoSignal is SIGINFO on BSD-derived platforms, which define it
// (^T at the terminal generates it).
const sigInfoSignal = unix.SIGINFO

// allSignals returns the full signal set registered on this platform.
func allSignals() []unix.Signal {
	return append(append([]unix.Signal{}, baseSignals...), sigInfoSignal)
}
