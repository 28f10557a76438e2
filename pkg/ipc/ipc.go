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

// Package ipc implements user-level inter-environment communication.
//
// An environment sends another environment a 32-bit value and, optionally,
// one page of memory. Delivery is a rendezvous mediated by the kernel: the
// receiver blocks in Recv until some sender's attempt lands, and the sender
// retries until the receiver is waiting. The kernel performs the handoff
// atomically, so a receiver never observes a value from one sender with a
// page from another.
//
// There is at most one outstanding receive per environment and no message
// buffering. Messages from different senders to the same receiver are not
// ordered; whichever attempt reaches the kernel first after the receiver
// blocks wins.
package ipc

import (
	"time"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/log"
)

// Syscalls is the set of kernel entry points used by the IPC routines.
type Syscalls interface {
	// GetEnvID returns the calling environment's ID.
	GetEnvID() exo.EnvID

	// IPCRecv blocks until a message is delivered to the calling
	// environment. If dstva is below exo.UTop, a page sent with the message
	// is mapped there. On success the kernel has filled in the IPC fields
	// of the caller's Env entry.
	IPCRecv(dstva exo.Addr) error

	// IPCTrySend attempts to deliver value, and the page at srcva if srcva
	// is below exo.UTop, to the environment to. It never blocks. It returns
	// kernerr.EIPCNOTRECV if to is not blocked in IPCRecv.
	IPCTrySend(to exo.EnvID, value uint32, srcva exo.Addr, perm exo.Perm) error

	// Yield gives up the rest of the calling environment's time slice.
	Yield()
}

// Directory is a read-only view of the kernel's environment table.
type Directory interface {
	// NumEnvs returns the number of table entries.
	NumEnvs() int

	// Env returns a copy of the entry at index.
	Env(index int) exo.Env
}

// Message is a received message.
type Message struct {
	// From is the sender, or 0 if the receive failed.
	From exo.EnvID

	// Value is the value sent.
	Value uint32

	// Perm is the permission of the page mapped at the receive slot. It is
	// 0 if no page was transferred.
	Perm exo.Perm
}

// HasPage returns true if a page was transferred with m.
func (m Message) HasPage() bool {
	return m.Perm != 0
}

// Opts configures an Endpoint.
type Opts struct {
	// Retry controls how Send and SendRetry wait for a receiver. The zero
	// value yields once per attempt and never gives up.
	Retry RetryPolicy

	// Logger receives debug logs. The global logger is used if nil.
	Logger log.Logger

	// Halt is called by Send with the fatal error. The default logs the
	// error and panics with it, which the kernel treats as the environment
	// halting.
	Halt func(err error)
}

// spinLogInterval bounds how often a spinning sender is logged.
const spinLogInterval = time.Second

// Endpoint performs IPC on behalf of one environment.
//
// An Endpoint must only be used by the environment whose Syscalls it was
// created with.
type Endpoint struct {
	sys  Syscalls
	dir  Directory
	self exo.EnvID

	retry RetryPolicy
	log   log.Logger
	spin  log.Logger
	halt  func(err error)
}

// New returns an Endpoint for the environment making system calls through
// sys. The environment's own entry is located in dir by its ID.
func New(sys Syscalls, dir Directory, opts Opts) *Endpoint {
	l := opts.Logger
	if l == nil {
		l = log.Log()
	}
	halt := opts.Halt
	if halt == nil {
		halt = defaultHalt
	}
	return &Endpoint{
		sys:   sys,
		dir:   dir,
		self:  sys.GetEnvID(),
		retry: opts.Retry,
		log:   l,
		spin:  log.RateLimitedLogger(l, spinLogInterval),
		halt:  halt,
	}
}

// ID returns the ID of the environment that owns e.
func (e *Endpoint) ID() exo.EnvID {
	return e.self
}

// FindByType returns the first environment of type t in e's directory, or 0.
func (e *Endpoint) FindByType(t exo.EnvType) exo.EnvID {
	return FindByType(e.dir, t)
}

func defaultHalt(err error) {
	log.Warningf("environment halting: %v", err)
	panic(err)
}
