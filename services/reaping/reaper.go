// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reaping supervises more than one command at once: a caller
// (a policy plugin process, say) can launch several commands over its
// lifetime and wants one registry tracking all of them rather than
// juggling *nopty.CommandStatus values by hand.
//
// Adapted from an instance-reaping poller that tracked
// application-instance pids with a channel-driven polling loop and a
// map keyed by instance directory; this one keys by invocation ID
// instead and polls for pids that vanished without the owning
// lib/nopty.Supervise call ever reaping them (e.g. it crashed or was
// killed out from under its own child) rather than for RPC-announced
// app-instance state transitions, which have no analogue here.
package reaping

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"

	"github.com/arcsh/nopty/lib/nopty"
)

// Registry runs and tracks any number of concurrently supervised
// commands, each identified by a UUID correlation ID.
type Registry struct {
	mu   sync.Mutex
	pids map[string]int // invocation ID -> supervisor's own child pid, once known

	group  *errgroup.Group
	poll   chan pidUpdate
	closed chan struct{}
}

type pidUpdate struct {
	id  string
	pid int // -1 means "stop tracking id"
}

// New creates an empty Registry and starts its background liveness
// poller.
func New() *Registry {
	r := &Registry{
		pids:   make(map[string]int),
		group:  &errgroup.Group{},
		poll:   make(chan pidUpdate),
		closed: make(chan struct{}),
	}
	go r.pollLoop()
	return r
}

// Launch starts details under lib/nopty.Supervise in a managed
// goroutine and returns a correlation ID identifying the invocation. The
// command's outcome is delivered on the returned channel; Wait reports
// the Supervise error, if any.
func (r *Registry) Launch(details *nopty.CommandDetails) (string, <-chan *nopty.CommandStatus) {
	id := uuid.NewString()
	result := make(chan *nopty.CommandStatus, 1)

	r.group.Go(func() error {
		status := &nopty.CommandStatus{}
		err := nopty.Supervise(details, status)
		r.poll <- pidUpdate{id: id, pid: -1}
		result <- status
		close(result)
		return err
	})

	return id, result
}

// Track registers pid as the supervisor-visible child process for id, so
// the background poller can notice if it disappears without Launch's
// own Supervise call ever reporting an outcome.
func (r *Registry) Track(id string, pid int) {
	r.poll <- pidUpdate{id: id, pid: pid}
}

// Wait blocks until every command launched through this Registry has
// returned, in the style of errgroup.Group.Wait, and returns the first
// non-nil error among them, if any.
func (r *Registry) Wait() error {
	return r.group.Wait()
}

// Shutdown stops the background poller. It does not itself stop any
// running command.
func (r *Registry) Shutdown() {
	close(r.closed)
}

// pollLoop mirrors a channel-driven map of tracked pids, polled once a
// second with kill(pid, 0) to notice pids that have gone away.
func (r *Registry) pollLoop() {
	tracked := make(map[string]int)
	poll := func() {
		for id, pid := range tracked {
			switch err := unix.Kill(pid, 0); err {
			case unix.ESRCH:
				vlog.VI(2).Infof("reaping: invocation %s (pid %d) is gone", id, pid)
				delete(tracked, id)
			case nil, unix.EPERM:
				vlog.VI(2).Infof("reaping: invocation %s (pid %d) still alive", id, pid)
			default:
				vlog.Errorf("reaping: unexpected kill(%d, 0) result: %v", pid, err)
			}
		}
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case u := <-r.poll:
			if u.pid < 0 {
				delete(tracked, u.id)
			} else {
				tracked[u.id] = u.pid
			}
		case <-ticker.C:
			poll()
		case <-r.closed:
			return
		}
	}
}
