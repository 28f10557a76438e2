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

package kernel

import (
	"sync/atomic"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/ipc"
)

// Task is the system call interface of one environment. It is only valid
// on the environment's own goroutine.
//
// Every system call first checks whether the environment has been killed;
// a killed environment unwinds instead of returning.
type Task struct {
	k  *Kernel
	id exo.EnvID

	// yieldCount is the number of times the task has yielded. Accessed
	// atomically.
	yieldCount uint64
}

var _ ipc.Syscalls = (*Task)(nil)

// Kernel returns the kernel the task runs in.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Directory returns the kernel's environment table.
func (t *Task) Directory() ipc.Directory {
	return t.k
}

// GetEnvID implements ipc.Syscalls.GetEnvID.
func (t *Task) GetEnvID() exo.EnvID {
	return t.id
}

// YieldCount returns the number of times t has yielded.
func (t *Task) YieldCount() uint64 {
	return atomic.LoadUint64(&t.yieldCount)
}

// Spawn creates a child environment of type typ running prog.
func (t *Task) Spawn(typ exo.EnvType, prog Program) (exo.EnvID, error) {
	t.checkAlive()
	return t.k.Spawn(t.id, typ, prog)
}

// Exit ends the environment. It does not return.
func (t *Task) Exit() {
	panic(exitSignal{})
}

// envLocked returns the task's table entry. If the environment has been
// killed, it panics with an exitSignal that Task.run recovers; callers
// must release k.mu in a deferred call.
//
// Preconditions: t.k.mu must be locked.
func (t *Task) envLocked() *env {
	e := &t.k.envs[t.id.Index()]
	if e.ID != t.id || e.Free() || e.killed {
		panic(exitSignal{killed: true})
	}
	return e
}

// checkAlive unwinds the task if its environment has been killed.
func (t *Task) checkAlive() {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	t.envLocked()
}
