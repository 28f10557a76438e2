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
	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/errors/kernerr"
	"exokern.dev/exokern/pkg/log"
	"exokern.dev/exokern/pkg/sentry/mm"
)

// IPCRecv implements ipc.Syscalls.IPCRecv.
//
// The environment is marked not runnable and blocks until a sender's
// IPCTrySend delivers to it. On return the IPC fields of its table entry
// describe the message.
func (t *Task) IPCRecv(dstva exo.Addr) error {
	wake, err := t.prepareRecv(dstva)
	if err != nil {
		return err
	}
	<-wake
	// Destroy also closes wake.
	t.checkAlive()
	return nil
}

func (t *Task) prepareRecv(dstva exo.Addr) (<-chan struct{}, error) {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	e := t.envLocked()
	if dstva.Mappable() && !dstva.PageAligned() {
		return nil, kernerr.EINVAL
	}
	wake := make(chan struct{})
	e.IPCRecving = true
	e.IPCDstVA = dstva
	e.IPCFrom = 0
	e.IPCValue = 0
	e.IPCPerm = 0
	e.Status = exo.EnvNotRunnable
	e.wake = wake
	return wake, nil
}

// IPCTrySend implements ipc.Syscalls.IPCTrySend.
//
// Errors, in the order they are checked:
//   - kernerr.EBADENV: to does not exist.
//   - kernerr.EIPCNOTRECV: to is not blocked in IPCRecv.
//   - kernerr.EINVAL, only if srcva is below exo.UTop: srcva is not page
//     aligned, perm is not a valid user permission, srcva is not mapped in
//     the caller, or perm asks for write access to a read-only page.
//
// If the page is valid and the receiver asked for a page, the page is
// mapped at the receiver's slot with perm. The delivery, including the
// mapping, happens under the kernel lock.
func (t *Task) IPCTrySend(to exo.EnvID, value uint32, srcva exo.Addr, perm exo.Perm) error {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	self := t.envLocked()
	t.k.stats.SendAttempts++

	dst, err := t.k.envForIDLocked(to)
	if err != nil {
		return err
	}
	if !dst.IPCRecving {
		return kernerr.EIPCNOTRECV
	}

	var pg *mm.Page
	if srcva.Mappable() {
		if !srcva.PageAligned() || !perm.UserValid() {
			return kernerr.EINVAL
		}
		p, srcPerm, ok := self.as.Lookup(srcva)
		if !ok {
			return kernerr.EINVAL
		}
		if perm.Writable() && !srcPerm.Writable() {
			return kernerr.EINVAL
		}
		pg = p
	}

	dst.IPCPerm = 0
	if pg != nil && dst.IPCDstVA.Mappable() {
		dst.as.Insert(dst.IPCDstVA, pg, perm)
		dst.IPCPerm = perm
	}
	dst.IPCFrom = t.id
	dst.IPCValue = value
	dst.IPCRecving = false
	dst.Status = exo.EnvRunnable
	close(dst.wake)
	dst.wake = nil
	t.k.stats.Sends++

	if log.IsLogging(log.Debug) {
		log.Debugf("[%v] delivered value %d perm %v to %v at %v", t.id, value, dst.IPCPerm, to, dst.IPCDstVA)
	}
	return nil
}
