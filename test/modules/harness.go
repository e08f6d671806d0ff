// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package modules is a subprocess test harness for lib/nopty: it builds
// the cmd/nopty binary once and spawns it as a real child per test,
// in the same build-once, drive-the-subprocess-through-
// exec.Cmd, assert-on-its-exit-behavior style used elsewhere in this
// codebase's subprocess tests, without any multi-shell-entrypoint
// machinery, which this single-binary supervisor has no use for.
package modules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

var (
	buildOnce   sync.Once
	buildErr    error
	noptyBinary string
)

// Build compiles cmd/nopty into a temporary directory the first time it
// is called and caches the result; every subsequent call (from
// concurrent tests) reuses the same binary.
func Build() (string, error) {
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "nopty-harness")
		if err != nil {
			buildErr = err
			return
		}
		noptyBinary = dir + "/nopty"
		cmd := exec.Command("go", "build", "-o", noptyBinary, "github.com/arcsh/nopty/cmd/nopty")
		cmd.Stderr = os.Stderr
		buildErr = cmd.Run()
	})
	return noptyBinary, buildErr
}

// Handle wraps one `nopty` subprocess invocation: the underlying
// exec.Cmd plus a line-buffered view of its stdout.
type Handle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	lines  *bufio.Scanner
	mu     sync.Mutex
}

// Start runs `nopty <flags...> <argv...>` as a child process, in its own
// process group.
func Start(flags []string, argv []string) (*Handle, error) {
	bin, err := Build()
	if err != nil {
		return nil, err
	}
	args := append(append([]string{}, flags...), argv...)
	cmd := exec.Command(bin, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h := &Handle{cmd: cmd, stdout: stdout, lines: bufio.NewScanner(stdout)}
	vlog.VI(1).Infof("modules: started %q pid %d", bin, cmd.Process.Pid)
	return h, nil
}

// Pid returns the harness-spawned nopty process's own pid (not the pid
// of the command it supervises).
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Signal delivers sig to the harness process's whole process group, the
// same way an interactive shell's job control would.
func (h *Handle) Signal(sig unix.Signal) error {
	return unix.Kill(-h.cmd.Process.Pid, sig)
}

// ExpectLine reads the next stdout line and fails (returns an error) if
// it doesn't contain want as a substring, within timeout.
func (h *Handle) ExpectLine(want string, timeout time.Duration) error {
	type result struct {
		line string
		err  error
	}
	c := make(chan result, 1)
	go func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.lines.Scan() {
			c <- result{line: h.lines.Text()}
		} else {
			c <- result{err: h.lines.Err()}
		}
	}()
	select {
	case r := <-c:
		if r.err != nil {
			return fmt.Errorf("modules: reading stdout: %w", r.err)
		}
		if !strings.Contains(r.line, want) {
			return fmt.Errorf("modules: got line %q, want substring %q", r.line, want)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("modules: timed out waiting for line containing %q", want)
	}
}

// Wait waits for the harness process to exit and returns its exit code.
func (h *Handle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
