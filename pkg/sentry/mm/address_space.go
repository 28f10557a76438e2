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

package mm

import (
	"exokern.dev/exokern/pkg/abi/exo"
	"github.com/google/btree"
)

// btreeDegree is the degree of the mapping trees. Address spaces are small.
const btreeDegree = 8

// Mapping is a page mapped at a virtual address.
type Mapping struct {
	VA   exo.Addr
	Page *Page
	Perm exo.Perm
}

func mappingLess(a, b Mapping) bool {
	return a.VA < b.VA
}

// AddressSpace is the set of page mappings of one environment, ordered by
// virtual address.
//
// AddressSpace is not thread-safe; the kernel serializes access.
type AddressSpace struct {
	alloc    *Allocator
	mappings *btree.BTreeG[Mapping]
}

// NewAddressSpace returns an empty address space whose pages come from a.
func NewAddressSpace(a *Allocator) *AddressSpace {
	return &AddressSpace{
		alloc:    a,
		mappings: btree.NewG(btreeDegree, mappingLess),
	}
}

// Lookup returns the page mapped at va and its permission.
func (as *AddressSpace) Lookup(va exo.Addr) (*Page, exo.Perm, bool) {
	m, ok := as.mappings.Get(Mapping{VA: va.RoundDown()})
	if !ok {
		return nil, 0, false
	}
	return m.Page, m.Perm, true
}

// Insert maps p at the page-aligned address va with permission perm,
// replacing any previous mapping at va.
func (as *AddressSpace) Insert(va exo.Addr, p *Page, perm exo.Perm) {
	// Take the new reference first, so remapping a page at the address it
	// is already mapped at cannot free it.
	as.alloc.incRef(p)
	if old, ok := as.mappings.ReplaceOrInsert(Mapping{VA: va, Page: p, Perm: perm}); ok {
		as.alloc.decRef(old.Page)
	}
}

// Remove unmaps the page at va. It returns false if nothing was mapped.
func (as *AddressSpace) Remove(va exo.Addr) bool {
	old, ok := as.mappings.Delete(Mapping{VA: va})
	if ok {
		as.alloc.decRef(old.Page)
	}
	return ok
}

// Len returns the number of mappings.
func (as *AddressSpace) Len() int {
	return as.mappings.Len()
}

// ForEach calls fn for each mapping in ascending address order until fn
// returns false.
func (as *AddressSpace) ForEach(fn func(m Mapping) bool) {
	as.mappings.Ascend(btree.ItemIteratorG[Mapping](fn))
}

// Release removes all mappings.
func (as *AddressSpace) Release() {
	as.mappings.Ascend(func(m Mapping) bool {
		as.alloc.decRef(m.Page)
		return true
	})
	as.mappings.Clear(false)
}
