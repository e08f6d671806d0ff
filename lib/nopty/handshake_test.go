// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package nopty

import (
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	libexec "github.com/arcsh/nopty/lib/exec"
)

var (
	cooperateBuildOnce sync.Once
	cooperateBuildErr  error
	cooperateBinary    string
)

func buildCooperate() (string, error) {
	cooperateBuildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "nopty-cooperate")
		if err != nil {
			cooperateBuildErr = err
			return
		}
		cooperateBinary = dir + "/cooperate"
		cmd := exec.Command("go", "build", "-o", cooperateBinary, "github.com/arcsh/nopty/cmd/cooperate")
		cmd.Stderr = os.Stderr
		cooperateBuildErr = cmd.Run()
	})
	return cooperateBinary, cooperateBuildErr
}

// TestSuperviseGobHandshake covers GobHandshakeExecChild end to end: the
// cooperating child completes the parent/child handshake, reports ready,
// exits cleanly, and Supervise still reports the same WStatus outcome it
// would for defaultExecChild.
func TestSuperviseGobHandshake(t *testing.T) {
	bin, err := buildCooperate()
	if err != nil {
		t.Fatalf("building cooperate helper: %v", err)
	}

	cfg := libexec.NewConfig()
	cfg.Set("correlation-id", "handshake-test")

	details := &CommandDetails{
		Path:      bin,
		Argv:      []string{bin},
		Env:       []string{"PATH=/usr/bin:/bin"},
		ExecChild: GobHandshakeExecChild(cfg, 5*time.Second),
	}
	var status CommandStatus
	if err := Supervise(details, &status); err != nil {
		t.Fatalf("Supervise: %v", err)
	}
	if status.Type != WStatus || !status.Status.Exited() || status.Status.ExitStatus() != 0 {
		t.Fatalf("status = %+v, want clean exit(0)", status)
	}
}
