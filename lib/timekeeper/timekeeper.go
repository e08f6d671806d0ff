// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timekeeper abstracts time.After behind an interface so that code
// with timeouts (ParentHandle.WaitForReady, the supervisor's SET_TIMEOUT
// alarm, the escalating termination's grace sleep) can be driven by a fake
// clock in tests instead of waiting on the real one.
package timekeeper

import "time"

// TimeKeeper is the seam between timeout-driven code and the passage of
// time.
type TimeKeeper interface {
	// After behaves like time.After.
	After(d time.Duration) <-chan time.Time
	// Sleep behaves like time.Sleep.
	Sleep(d time.Duration)
	// Now behaves like time.Now.
	Now() time.Time
}

type realTime struct{}

func (realTime) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realTime) Sleep(d time.Duration)                  { time.Sleep(d) }
func (realTime) Now() time.Time                         { return time.Now() }

// RealTime returns a TimeKeeper backed by the actual wall clock.
func RealTime() TimeKeeper { return realTime{} }
