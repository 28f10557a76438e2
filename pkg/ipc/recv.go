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

package ipc

import (
	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/errors/kernerr"
	"exokern.dev/exokern/pkg/log"
)

// Recv receives a value.
//
// If pg is below exo.UTop, a page sent with the message is mapped at pg;
// pass exo.NoPage to refuse pages. If fromStore is non-nil the sender is
// stored there, and if permStore is non-nil the permission of the received
// page is stored there (nonzero iff a page was mapped at pg).
//
// If the kernel fails the receive, 0 is stored in both stores and the
// kernel's error is returned. Recv never retries.
func (e *Endpoint) Recv(pg exo.Addr, fromStore *exo.EnvID, permStore *exo.Perm) (uint32, error) {
	m, err := e.RecvMessage(pg)
	if fromStore != nil {
		*fromStore = m.From
	}
	if permStore != nil {
		*permStore = m.Perm
	}
	if err != nil {
		return 0, err
	}
	return m.Value, nil
}

// RecvMessage is like Recv, but returns the whole message. The zero Message
// is returned with any error.
func (e *Endpoint) RecvMessage(pg exo.Addr) (Message, error) {
	if !pg.Mappable() {
		pg = exo.NoPage
	}
	if err := e.sys.IPCRecv(pg); err != nil {
		if e.log.IsLogging(log.Debug) {
			e.log.Debugf("[%v] ipc recv at %v failed: %v", e.self, pg, err)
		}
		return Message{}, err
	}

	// The kernel wrote the result into our own entry before waking us, and
	// nobody else writes it until we receive again.
	env := e.dir.Env(e.self.Index())
	if env.ID != e.self {
		e.log.Warningf("[%v] directory entry %d belongs to %v", e.self, e.self.Index(), env.ID)
		return Message{}, kernerr.EBADENV
	}
	m := Message{
		From:  env.IPCFrom,
		Value: env.IPCValue,
		Perm:  env.IPCPerm,
	}
	if e.log.IsLogging(log.Debug) {
		e.log.Debugf("[%v] ipc recv from %v: value %d perm %v", e.self, m.From, m.Value, m.Perm)
	}
	return m, nil
}
