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

// Package mm provides physical pages and per-environment address spaces for
// the exokern kernel.
package mm

import (
	"sync"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/errors/kernerr"
)

// Page is a physical page. A page stays allocated while it is mapped in at
// least one address space.
type Page struct {
	data [exo.PageSize]byte

	// refs is the number of mappings of the page. It is protected by the
	// owning Allocator's mu.
	refs int
}

// Bytes returns the page contents. Writes through the returned slice are
// visible through every mapping of the page.
func (p *Page) Bytes() []byte {
	return p.data[:]
}

// Allocator hands out pages and tracks how many are in use.
type Allocator struct {
	// max is the page limit, or 0 for no limit. Immutable.
	max int

	// mu protects the fields below and Page.refs of every page it
	// allocated.
	mu sync.Mutex

	// inUse is the number of pages with at least one mapping, plus
	// allocated pages not yet mapped.
	inUse int
}

// NewAllocator returns an Allocator that allows at most max pages in use at
// once. A max of 0 means no limit.
func NewAllocator(max int) *Allocator {
	return &Allocator{max: max}
}

// Alloc returns a zeroed page with no mappings. It returns kernerr.ENOMEM
// when the page limit has been reached.
func (a *Allocator) Alloc() (*Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.max > 0 && a.inUse >= a.max {
		return nil, kernerr.ENOMEM
	}
	a.inUse++
	return &Page{}, nil
}

// InUse returns the number of pages in use.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Refs returns the number of mappings of p.
func (a *Allocator) Refs(p *Page) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return p.refs
}

func (a *Allocator) incRef(p *Page) {
	a.mu.Lock()
	p.refs++
	a.mu.Unlock()
}

func (a *Allocator) decRef(p *Page) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p.refs--
	switch {
	case p.refs == 0:
		a.inUse--
	case p.refs < 0:
		panic("page reference count underflow")
	}
}
