// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package nopty

// wallFlag is the Linux __WALL wait(2) option (reap tracees regardless of
// which thread created them), needed so intercept/ptrace mode can reap
// descendants it doesn't directly own. golang.org/x/sys/unix does not
// export a named constant for it.
const wallFlag = 0x40000000
