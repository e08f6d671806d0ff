// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"bytes"
	"encoding/gob"

	"v.io/v23/verror"
)

// version1 identifies the first (and so far only) revision of the
// parent/child handshake protocol carried over the data pipe.
const version1 = "1"

// readyStatus and failedStatus prefix the one-line message a child writes
// to the status pipe: "ready:<pid>" once it has reached a steady state, or
// "failed:<reason>" if it gave up before getting there.
const (
	readyStatus  = "ready:"
	failedStatus = "failed:"
)

// eofChar ends the status line a child writes to the status pipe, since
// the parent keeps its own copy of the write end open and so never sees
// EOF. The parent also writes it to force waitForStatus to return when a
// WaitForReady timeout fires, without actually closing the pipe (closing
// it early would race a child that is still writing to it).
const eofChar = byte(4) // ASCII EOT

// FileOffset is the fd number, inside the child, of the status pipe's
// write end when NewParentHandle's protocol is in use; the data pipe's
// read end is FileOffset-1, after stdin, stdout and stderr. Any
// caller-supplied ExtraFiles follow, starting at fd FileOffset+1.
const FileOffset = 4

// Config is a flat string-to-string key/value map, serialized with gob and
// passed to a child over the data pipe established by ParentHandle.Start.
// It is how a supervisor tells a cooperating child process things it has
// no other way to learn (an agent endpoint, a feature flag, a correlation
// ID) without resorting to argv or environment variables that could leak
// to further descendants.
type Config map[string]string

// NewConfig returns an empty Config.
func NewConfig() Config {
	return make(Config)
}

// Get returns the value for k, or an error with ID verror.ErrNoExist.ID if
// k is not present.
func (c Config) Get(k string) (string, error) {
	v, ok := c[k]
	if !ok {
		return "", verror.New(verror.ErrNoExist, nil, k)
	}
	return v, nil
}

// Set stores v under k, overwriting any previous value.
func (c Config) Set(k, v string) {
	c[k] = v
}

// Clear removes k from the config, if present.
func (c Config) Clear(k string) {
	delete(c, k)
}

// Dump returns a copy of the config as a plain map.
func (c Config) Dump() map[string]string {
	m := make(map[string]string, len(c))
	for k, v := range c {
		m[k] = v
	}
	return m
}

// Serialize gob-encodes the config for transmission over a pipe.
func (c Config) Serialize() (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(map[string]string(c)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MergeFrom decodes a Serialize'd config and merges it into c, with values
// from s taking precedence over any existing key in c.
func (c Config) MergeFrom(s string) error {
	var m map[string]string
	if err := gob.NewDecoder(bytes.NewBufferString(s)).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		c[k] = v
	}
	return nil
}
