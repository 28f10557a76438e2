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

// env is an environment table entry. All fields are protected by Kernel.mu.
type env struct {
	// Env is the part of the entry visible through the directory.
	exo.Env

	// as is the environment's address space. It is nil for free entries.
	as *mm.AddressSpace

	// wake is non-nil while the environment is blocked in IPCRecv, and is
	// closed to wake it.
	wake chan struct{}

	// killed is set when the environment must unwind at its next kernel
	// entry.
	killed bool
}

// Program is the code of a user environment. It runs on its own goroutine
// and makes system calls through t. An environment exits when its Program
// returns, and halts if its Program panics.
type Program func(t *Task)

// envForIDLocked returns the live entry for id.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) envForIDLocked(id exo.EnvID) (*env, error) {
	i := id.Index()
	if id <= 0 || i >= len(k.envs) {
		return nil, kernerr.EBADENV
	}
	e := &k.envs[i]
	if e.Free() || e.ID != id {
		return nil, kernerr.EBADENV
	}
	return e, nil
}

// nextID returns the ID of the next environment to occupy the entry at
// index, whose previous occupant was prev.
func nextID(prev exo.EnvID, index int) exo.EnvID {
	gen := (prev + 1<<exo.EnvGenShift) &^ (exo.NEnv - 1)
	if gen <= 0 {
		gen = 1 << exo.EnvGenShift
	}
	return gen | exo.EnvID(index)
}

// Spawn creates an environment of type typ running prog. The new
// environment occupies the free table entry with the lowest index and gets
// an ID with a generation that differs from the entry's previous occupant.
//
// It returns kernerr.ENOFREEENV if the table is full.
func (k *Kernel) Spawn(parent exo.EnvID, typ exo.EnvType, prog Program) (exo.EnvID, error) {
	id, err := k.alloc(parent, typ)
	if err != nil {
		return 0, err
	}
	if log.IsLogging(log.Debug) {
		log.Debugf("[%v] spawned by %v, type %v", id, parent, typ)
	}
	t := &Task{k: k, id: id}
	k.g.Go(func() error {
		return t.run(prog)
	})
	return id, nil
}

// alloc claims a table entry for a new environment.
func (k *Kernel) alloc(parent exo.EnvID, typ exo.EnvType) (exo.EnvID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.shutdown {
		return 0, ErrShutdown
	}
	index := -1
	for i := range k.envs {
		if k.envs[i].Free() {
			index = i
			break
		}
	}
	if index < 0 {
		return 0, kernerr.ENOFREEENV
	}
	e := &k.envs[index]
	id := nextID(e.ID, index)
	*e = env{
		Env: exo.Env{
			ID:       id,
			ParentID: parent,
			Type:     typ,
			Status:   exo.EnvRunnable,
		},
		as: mm.NewAddressSpace(k.pages),
	}
	k.done[id] = make(chan struct{})
	k.stats.Spawned++
	return id, nil
}

// killLocked marks e killed and wakes it if it is blocked.
//
// Preconditions: k.mu must be locked. e must be live.
func (k *Kernel) killLocked(e *env) {
	if e.killed {
		return
	}
	e.killed = true
	e.Status = exo.EnvDying
	e.IPCRecving = false
	if e.wake != nil {
		close(e.wake)
		e.wake = nil
	}
	if log.IsLogging(log.Debug) {
		log.Debugf("[%v] killed", e.ID)
	}
}

// exit frees the entry of id and records its exit status.
func (k *Kernel) exit(id exo.EnvID, es ExitStatus) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if e, err := k.envForIDLocked(id); err == nil {
		if e.killed && !es.Halted {
			es.Killed = true
		}
		e.as.Release()
		if e.wake != nil {
			close(e.wake)
		}
		// The ID stays behind so the next occupant gets a new generation.
		*e = env{Env: exo.Env{ID: id}}
	}
	switch {
	case es.Halted:
		k.stats.Halted++
	case es.Killed:
		k.stats.Killed++
	default:
		k.stats.Exited++
	}
	k.exits[id] = es
	if ch, ok := k.done[id]; ok {
		close(ch)
		delete(k.done, id)
	}
	if log.IsLogging(log.Debug) {
		log.Debugf("[%v] exited: %v", id, es)
	}
}
