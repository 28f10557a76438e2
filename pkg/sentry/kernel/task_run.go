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
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"exokern.dev/exokern/pkg/log"
)

// run is the body of a task goroutine. It runs prog, then frees the
// environment and records how it finished.
//
// A panic escaping prog halts the environment: the panic value becomes the
// exit status Reason and a *HaltError is returned to the kernel's errgroup.
func (t *Task) run(prog Program) (err error) {
	var es ExitStatus
	defer func() {
		switch r := recover().(type) {
		case nil:
		case exitSignal:
			es.Killed = r.killed
		default:
			reason, ok := r.(error)
			if !ok {
				reason = fmt.Errorf("%v", r)
			}
			es.Halted = true
			es.Reason = reason
			err = &HaltError{ID: t.id, Err: reason}
			log.Warningf("[%v] halted: %v", t.id, reason)
			if log.IsLogging(log.Debug) {
				log.Debugf("[%v] stack:\n%s", t.id, debug.Stack())
			}
		}
		t.k.exit(t.id, es)
	}()
	prog(t)
	return nil
}

// Yield implements ipc.Syscalls.Yield.
func (t *Task) Yield() {
	t.countYield()
	atomic.AddUint64(&t.yieldCount, 1)
	runtime.Gosched()
}

func (t *Task) countYield() {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	t.envLocked()
	t.k.stats.Yields++
}
