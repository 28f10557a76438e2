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
)

func checkUserVA(va exo.Addr) error {
	if !va.Mappable() || !va.PageAligned() {
		return kernerr.EINVAL
	}
	return nil
}

// PageAlloc maps a new zeroed page at va with permission perm, replacing
// any page already mapped there.
func (t *Task) PageAlloc(va exo.Addr, perm exo.Perm) error {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	e := t.envLocked()
	if err := checkUserVA(va); err != nil {
		return err
	}
	if !perm.UserValid() {
		return kernerr.EINVAL
	}
	p, err := t.k.pages.Alloc()
	if err != nil {
		return err
	}
	e.as.Insert(va, p, perm)
	return nil
}

// PageMap maps the page at srcva in the caller's address space at dstva in
// the address space of dst, with permission perm.
func (t *Task) PageMap(srcva exo.Addr, dst exo.EnvID, dstva exo.Addr, perm exo.Perm) error {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	e := t.envLocked()
	d, err := t.k.envForIDLocked(dst)
	if err != nil {
		return err
	}
	if err := checkUserVA(srcva); err != nil {
		return err
	}
	if err := checkUserVA(dstva); err != nil {
		return err
	}
	if !perm.UserValid() {
		return kernerr.EINVAL
	}
	p, srcPerm, ok := e.as.Lookup(srcva)
	if !ok {
		return kernerr.EINVAL
	}
	if perm.Writable() && !srcPerm.Writable() {
		return kernerr.EINVAL
	}
	d.as.Insert(dstva, p, perm)
	return nil
}

// PageUnmap unmaps the page at va, if any.
func (t *Task) PageUnmap(va exo.Addr) error {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	e := t.envLocked()
	if err := checkUserVA(va); err != nil {
		return err
	}
	e.as.Remove(va)
	return nil
}

// Mem returns the memory of the caller from va to the end of its page,
// together with the page's permission. The returned slice aliases the page,
// so writes are seen by every environment that maps it; the caller must not
// write unless the permission is writable.
//
// It returns kernerr.EFAULT if nothing is mapped at va.
func (t *Task) Mem(va exo.Addr) ([]byte, exo.Perm, error) {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	e := t.envLocked()
	if !va.Mappable() {
		return nil, 0, kernerr.EFAULT
	}
	p, perm, ok := e.as.Lookup(va)
	if !ok {
		return nil, 0, kernerr.EFAULT
	}
	return p.Bytes()[va-va.RoundDown():], perm, nil
}
