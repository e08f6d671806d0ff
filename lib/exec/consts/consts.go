// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package consts holds the names of environment variables and other
// constants shared between a supervisor and the child it execs, so that
// neither side has to hardcode the other's literals.
package consts

const (
	// ExecVersionVariable is set in the child's environment to the
	// version of the parent/child handshake protocol in use. A child
	// that does not recognize the version should treat the handshake as
	// absent rather than guess at its shape.
	ExecVersionVariable = "NOPTY_EXEC_VERSION"
)
