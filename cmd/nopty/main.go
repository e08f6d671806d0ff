// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nopty runs a command under full job-control supervision
// without allocating a controlling terminal: SIGINT/SIGQUIT/SIGTSTP are
// forwarded to the child's pid, SIGCHLD drives reaping, and a
// stopped child suspends the supervisor itself rather than the terminal
// doing it.
package main

import (
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"v.io/x/lib/cmdline"

	"github.com/arcsh/nopty/lib/nopty"
)

var (
	timeoutFlag    time.Duration
	interceptFlag  bool
	logSubcmdsFlag bool
	usePtraceFlag  bool
)

var cmdNopty = &cmdline.Command{
	Run:      run,
	Name:     "nopty",
	Short:    "runs a command under non-pty job-control supervision",
	Long:     "Command nopty runs a command the way sudo's non-pty exec path does: its own process group, forwarded job-control signals, and a wall-clock timeout, with no pty allocated.",
	ArgsName: "<command> [command args...]",
}

func main() {
	cmdline.HideGlobalFlagsExcept()

	cmdNopty.Flags.DurationVar(&timeoutFlag, "timeout", 0, "kill the command if it runs longer than this (0 disables the timeout)")
	cmdNopty.Flags.BoolVar(&interceptFlag, "intercept", false, "set up the sub-command intercept channel")
	cmdNopty.Flags.BoolVar(&logSubcmdsFlag, "log-subcmds", false, "log sub-command execs observed over the intercept channel")
	cmdNopty.Flags.BoolVar(&usePtraceFlag, "ptrace", false, "seize the command with ptrace for sub-command interception")

	os.Exit(cmdNopty.Main())
}

func run(cmd *cmdline.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(args) == 0 {
		return cmdline.ErrUsage
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		logger.Error("resolving command path", zap.String("command", args[0]), zap.Error(err))
		return err
	}

	id := uuid.New()
	log := logger.With(zap.String("invocation_id", id.String()), zap.String("command", args[0]))

	var flags nopty.Flags
	if interceptFlag {
		flags |= nopty.Intercept
	}
	if logSubcmdsFlag {
		flags |= nopty.LogSubcmds
	}
	if usePtraceFlag {
		flags |= nopty.UsePtrace
	}
	if timeoutFlag > 0 {
		flags |= nopty.SetTimeout
	}

	details := &nopty.CommandDetails{
		Path:    path,
		Argv:    args,
		Env:     os.Environ(),
		Flags:   flags,
		Timeout: timeoutFlag,
	}

	log.Info("starting supervised command", zap.Stringer("flags", details.Flags))

	var status nopty.CommandStatus
	superviseErr := nopty.Supervise(details, &status)

	if details.Flags != flags {
		log.Warn("supervisor fell back from requested flags",
			zap.Stringer("requested", flags), zap.Stringer("actual", details.Flags))
	}

	switch status.Type {
	case nopty.Errno:
		log.Error("command failed to start", zap.Error(status.Err))
		os.Exit(127)
	case nopty.WStatus:
		switch {
		case status.Status.Exited():
			log.Info("command exited", zap.Int("code", status.Status.ExitStatus()))
			os.Exit(status.Status.ExitStatus())
		case status.Status.Signaled():
			log.Info("command killed", zap.Stringer("signal", status.Status.Signal()))
			os.Exit(128 + int(status.Status.Signal()))
		}
	}
	return superviseErr
}
