// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package reaping

import (
	"testing"
	"time"

	"github.com/arcsh/nopty/lib/nopty"
)

// TestRegistryRunsConcurrentCommands covers the multi-invocation case:
// several commands launched through one Registry all report their own
// outcome independently.
func TestRegistryRunsConcurrentCommands(t *testing.T) {
	r := New()
	defer r.Shutdown()

	results := make([]<-chan *nopty.CommandStatus, 0, 3)
	for i := 0; i < 3; i++ {
		_, result := r.Launch(&nopty.CommandDetails{
			Path: "/bin/sh",
			Argv: []string{"sh", "-c", "exit 0"},
			Env:  []string{"PATH=/usr/bin:/bin"},
		})
		results = append(results, result)
	}

	for _, result := range results {
		select {
		case status := <-result:
			if status.Type != nopty.WStatus || status.Status.ExitStatus() != 0 {
				t.Errorf("status = %+v, want clean exit(0)", status)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for launched command")
		}
	}

	if err := r.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
