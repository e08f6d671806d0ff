// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nopty implements the non-tty command supervisor of a
// privilege-escalation utility: it forks a target command, reports exec
// failures back through a one-shot error pipe, forwards user-generated
// signals to the child while filtering out signals the child (or its own
// process group) sent to itself, reaps the child's terminal status, and
// suspends/resumes the supervisor in step with the child's own stop/
// continue transitions.
//
// It is the Go analogue of sudo's exec_nopty.c: the variant of the
// command-supervisor loop used when no pseudo-terminal is allocated for
// the child, so the child inherits the controlling terminal directly.
package nopty
