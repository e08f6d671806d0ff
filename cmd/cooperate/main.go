// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cooperate is a minimal child for lib/nopty.GobHandshakeExecChild's
// own tests: it completes the gob-encoded parent/child handshake, reports
// readiness, and exits cleanly. It exists only to give the handshake a real
// process to drive; it has no other purpose.
package main

import (
	"os"

	"github.com/arcsh/nopty/lib/exec"
)

func main() {
	ch, err := exec.GetChildHandle()
	if err != nil {
		os.Exit(1)
	}
	if err := ch.SetReady(); err != nil {
		os.Exit(1)
	}
}
