// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package nopty

// wallFlag is the "#ifndef __WALL / #define __WALL 0" fallback: on
// platforms without a __WALL-equivalent wait(2) option, reaping falls
// back to the platform's default flags, which may miss tracer-spawned
// tasks in intercept/ptrace mode.
const wallFlag = 0
