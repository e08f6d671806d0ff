// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/arcsh/nopty/lib/exec/consts"
)

// ChildHandle is the other end of a ParentHandle: it lets a child process
// that was started with the parent/child protocol enabled read the Config
// the supervisor sent it and report readiness or failure back.
type ChildHandle struct {
	config      Config
	secret      string
	dataRead    *os.File
	statusWrite *os.File
}

// GetChildHandle constructs a ChildHandle from the well-known inherited
// file descriptors (FileOffset-1 and FileOffset, counting stdin/stdout/
// stderr as 0-2) and reads the Config and secret sent by the parent. It
// returns an error if the version env var is absent or unrecognized,
// which is the normal case for a child that was not started under the
// protocol.
func GetChildHandle() (*ChildHandle, error) {
	if v, _ := Getenv(os.Environ(), consts.ExecVersionVariable); v != version1 {
		return nil, fmt.Errorf("exec: %s=%q not using version %s", consts.ExecVersionVariable, v, version1)
	}
	dataRead := os.NewFile(FileOffset-1, "data-pipe-read")
	statusWrite := os.NewFile(FileOffset, "status-pipe-write")
	cfg := NewConfig()
	serialized, err := decodeString(dataRead)
	if err != nil {
		return nil, err
	}
	if err := cfg.MergeFrom(serialized); err != nil {
		return nil, err
	}
	secret, err := decodeString(dataRead)
	if err != nil {
		return nil, err
	}
	return &ChildHandle{config: cfg, secret: secret, dataRead: dataRead, statusWrite: statusWrite}, nil
}

// Config returns the configuration sent by the parent.
func (ch *ChildHandle) Config() Config { return ch.config }

// Secret returns the shared secret sent by the parent.
func (ch *ChildHandle) Secret() string { return ch.secret }

// SetReady tells the parent that this child has reached a steady state,
// supplying its own pid so a parent that forked an intermediate process
// (e.g. via a shell) can learn the pid of the process actually doing the
// work.
func (ch *ChildHandle) SetReady() error {
	_, err := io.WriteString(ch.statusWrite, readyStatus+strconv.Itoa(os.Getpid())+string(eofChar))
	ch.statusWrite.Close()
	return err
}

// SetFailed tells the parent that this child gave up before becoming
// ready, with reason as a human-readable explanation.
func (ch *ChildHandle) SetFailed(reason string) error {
	_, err := io.WriteString(ch.statusWrite, failedStatus+reason+string(eofChar))
	ch.statusWrite.Close()
	return err
}

func decodeString(r io.Reader) (string, error) {
	var l int64
	if err := binary.Read(r, binary.BigEndian, &l); err != nil {
		return "", err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
