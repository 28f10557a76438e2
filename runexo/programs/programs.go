// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package programs contains user environments that communicate through
// package ipc.
package programs

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/ipc"
	"exokern.dev/exokern/pkg/sentry/kernel"
)

const (
	ro = exo.PermU | exo.PermP
	rw = exo.PermU | exo.PermP | exo.PermW
)

// Env carries what every program needs besides its Task.
type Env struct {
	// Opts configures the IPC endpoint of each environment.
	Opts ipc.Opts

	// Out receives the program's output lines. It may be shared by many
	// environments.
	Out io.Writer
}

func (e *Env) endpoint(t *kernel.Task) *ipc.Endpoint {
	return ipc.New(t, t.Directory(), e.Opts)
}

func (e *Env) printf(format string, v ...any) {
	if e.Out != nil {
		fmt.Fprintf(e.Out, format+"\n", v...)
	}
}

// lockedWriter serializes writes to w.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Write implements io.Writer.Write.
func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

// lockOutput returns a copy of e whose output is safe for concurrent use by
// many environments.
func lockOutput(e Env) *Env {
	if e.Out != nil {
		if _, ok := e.Out.(*lockedWriter); !ok {
			e.Out = &lockedWriter{w: e.Out}
		}
	}
	return &e
}

// must halts the environment on a system call failure.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// mem returns the page mapped at va.
func mem(t *kernel.Task, va exo.Addr) []byte {
	b, _, err := t.Mem(va)
	must(err)
	return b
}

// readString returns the NUL-terminated string at the start of b.
func readString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// writeString stores s in b as a NUL-terminated string, truncating it to
// fit.
func writeString(b []byte, s string) {
	n := copy(b[:len(b)-1], s)
	b[n] = 0
}
