// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package modules

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestCleanExit covers a clean exit end to end through the real
// cmd/nopty binary.
func TestCleanExit(t *testing.T) {
	h, err := Start(nil, []string{"sh", "-c", "echo hello; exit 0"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.ExpectLine("hello", 5*time.Second); err != nil {
		t.Fatalf("ExpectLine: %v", err)
	}
	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
}

// TestForwardedSigint covers SIGINT delivered to the harness process
// group being forwarded to the supervised command and killing it.
func TestForwardedSigint(t *testing.T) {
	h, err := Start(nil, []string{"sh", "-c", "echo ready; sleep 30"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.ExpectLine("ready", 5*time.Second); err != nil {
		t.Fatalf("ExpectLine: %v", err)
	}
	if err := h.Signal(unix.SIGINT); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 128+int(unix.SIGINT) {
		t.Fatalf("exit code = %d, want %d (killed by SIGINT)", code, 128+int(unix.SIGINT))
	}
}

// TestTimeout covers a forced timeout through the real binary with a
// short --timeout.
func TestTimeout(t *testing.T) {
	h, err := Start([]string{"--timeout=200ms"}, []string{"sh", "-c", "echo waiting; sleep 30"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.ExpectLine("waiting", 5*time.Second); err != nil {
		t.Fatalf("ExpectLine: %v", err)
	}
	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code == 0 {
		t.Fatalf("exit code = 0, want a killed-by-signal code from the timeout")
	}
}
