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

// Package kernel provides an in-process exokernel whose environments are
// goroutines.
//
// The kernel owns the environment table, every address space and the page
// allocator. An environment reaches the kernel only through the Task passed
// to its Program, which implements ipc.Syscalls.
//
// Lock order (outermost locks must be taken first):
//
//	Kernel.mu
//	  mm.Allocator.mu
package kernel

import (
	stderrors "errors"
	"fmt"
	"sync"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/ipc"
	"exokern.dev/exokern/pkg/log"
	"exokern.dev/exokern/pkg/sentry/mm"
	"golang.org/x/sync/errgroup"
)

// ErrShutdown is returned by Spawn after Shutdown has been called.
var ErrShutdown = stderrors.New("kernel is shut down")

// Config configures a Kernel.
type Config struct {
	// NEnv is the number of entries in the environment table. It must be a
	// power of two no larger than exo.NEnv. Zero means exo.NEnv.
	NEnv int

	// MaxPages is the number of physical pages available to all
	// environments. Zero means no limit.
	MaxPages int
}

// Stats are kernel-wide counters.
type Stats struct {
	Spawned uint64
	Exited  uint64
	Killed  uint64
	Halted  uint64

	// Sends is the number of successful IPC deliveries.
	Sends uint64

	// SendAttempts includes attempts that failed.
	SendAttempts uint64
	Yields       uint64

	PagesInUse int
}

// Kernel is an exokernel instance.
type Kernel struct {
	// pages is immutable. It is internally synchronized.
	pages *mm.Allocator

	// g tracks environment goroutines.
	g errgroup.Group

	mu sync.Mutex

	// envs is the environment table. Its length is a power of two and never
	// changes. Protected by mu.
	envs []env

	// exits holds the exit status of every environment that has finished,
	// for the life of the kernel, so that Await and ExitStatus answer after
	// the fact. Protected by mu.
	exits map[exo.EnvID]ExitStatus

	// done holds a channel per running environment that is closed and
	// removed when it finishes. Protected by mu.
	done map[exo.EnvID]chan struct{}

	// shutdown is set by Shutdown. Protected by mu.
	shutdown bool

	// stats is protected by mu.
	stats Stats
}

var _ ipc.Directory = (*Kernel)(nil)

// New returns a Kernel with an empty environment table.
func New(c Config) (*Kernel, error) {
	n := c.NEnv
	if n == 0 {
		n = exo.NEnv
	}
	if n < 0 || n > exo.NEnv || n&(n-1) != 0 {
		return nil, fmt.Errorf("invalid environment table size %d: must be a power of two no larger than %d", n, exo.NEnv)
	}
	if c.MaxPages < 0 {
		return nil, fmt.Errorf("invalid page limit %d", c.MaxPages)
	}
	log.Debugf("Kernel created: %d environments, page limit %d", n, c.MaxPages)
	return &Kernel{
		pages: mm.NewAllocator(c.MaxPages),
		envs:  make([]env, n),
		exits: make(map[exo.EnvID]ExitStatus),
		done:  make(map[exo.EnvID]chan struct{}),
	}, nil
}

// NumEnvs implements ipc.Directory.NumEnvs.
func (k *Kernel) NumEnvs() int {
	return len(k.envs)
}

// Env implements ipc.Directory.Env. An out of range index returns a free
// entry.
func (k *Kernel) Env(index int) exo.Env {
	if index < 0 || index >= len(k.envs) {
		return exo.Env{}
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.envs[index].Env
}

// Envs returns a copy of every live entry in the table, in index order.
func (k *Kernel) Envs() []exo.Env {
	k.mu.Lock()
	defer k.mu.Unlock()
	var envs []exo.Env
	for i := range k.envs {
		if e := &k.envs[i]; !e.Free() {
			envs = append(envs, e.Env)
		}
	}
	return envs
}

// Stats returns a snapshot of the kernel counters.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	s := k.stats
	k.mu.Unlock()
	s.PagesInUse = k.pages.InUse()
	return s
}

// PageAt returns the page mapped at va in the address space of id.
func (k *Kernel) PageAt(id exo.EnvID, va exo.Addr) (*mm.Page, exo.Perm, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.envForIDLocked(id)
	if err != nil {
		return nil, 0, false
	}
	return e.as.Lookup(va)
}

// Wait blocks until every environment has finished. It returns the
// *HaltError of the first environment that halted, if any.
func (k *Kernel) Wait() error {
	return k.g.Wait()
}

// Await blocks until the environment id finishes and returns its exit
// status. It returns false if id was never spawned.
func (k *Kernel) Await(id exo.EnvID) (ExitStatus, bool) {
	k.mu.Lock()
	if es, ok := k.exits[id]; ok {
		k.mu.Unlock()
		return es, true
	}
	ch, ok := k.done[id]
	k.mu.Unlock()
	if !ok {
		return ExitStatus{}, false
	}
	<-ch
	return k.ExitStatus(id)
}

// ExitStatus returns the exit status of id. It returns false if id has not
// finished.
func (k *Kernel) ExitStatus(id exo.EnvID) (ExitStatus, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	es, ok := k.exits[id]
	return es, ok
}

// Destroy kills the environment id. The environment's goroutine unwinds at
// its next kernel entry, or immediately if it is blocked in IPCRecv.
func (k *Kernel) Destroy(id exo.EnvID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.envForIDLocked(id)
	if err != nil {
		return err
	}
	k.killLocked(e)
	return nil
}

// Shutdown kills every environment and prevents new ones from being
// spawned. It does not wait for environments to finish; see Wait.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.shutdown = true
	for i := range k.envs {
		if e := &k.envs[i]; !e.Free() {
			k.killLocked(e)
		}
	}
	log.Infof("Kernel shut down")
}
