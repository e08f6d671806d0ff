// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nopty

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// errnoError wraps a raw errno value (as sent by a child over the error
// pipe) as an error, without forcing callers to depend on syscall.Errno's
// exact platform representation.
func errnoError(errval int32) error {
	if errval < 0 {
		return fmt.Errorf("nopty: undefined errno (short read on error pipe)")
	}
	return unix.Errno(errval)
}

// isTemporary reports whether err is the kind of transient read error
// (EAGAIN/EINTR) that should be ignored rather than treated as a fatal
// event-loop error.
func isTemporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}
