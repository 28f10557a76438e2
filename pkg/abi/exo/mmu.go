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


package exo

import (
	"fmt"
	"strings"
)

// PageSize is the size of a page in bytes.
const PageSize = 4096

// Addr is a user virtual address.
type Addr uintptr

// UTop is the top of the user-accessible address space. Addresses at or
// above UTop cannot be mapped by user environments.
const UTop Addr = 0xeec00000

// NoPage is passed to the IPC system calls in place of a page address when
// no page is offered or accepted. Zero cannot serve this purpose because it
// is a valid place to map a page.
const NoPage = UTop

// PageAligned returns true if a is a multiple of PageSize.
func (a Addr) PageAligned() bool {
	return a%PageSize == 0
}

// RoundDown returns a rounded down to a page boundary.
func (a Addr) RoundDown() Addr {
	return a &^ (PageSize - 1)
}

// Mappable returns true if a is below UTop.
func (a Addr) Mappable() bool {
	return a < UTop
}

// String implements fmt.Stringer.String.
func (a Addr) String() string {
	return fmt.Sprintf("%#08x", uintptr(a))
}

// Perm is a set of page permission bits.
type Perm uint32

// Page permission bits.
const (
	PermP     Perm = 0x001
	PermW     Perm = 0x002
	PermU     Perm = 0x004
	PermShare Perm = 0x400
	PermAvail Perm = 0xe00

	// PermSyscall is the set of bits user environments may pass to page
	// system calls.
	PermSyscall = PermAvail | PermP | PermW | PermU
)

// Writable returns true if p grants write access.
func (p Perm) Writable() bool {
	return p&PermW != 0
}

// UserValid returns true if p is acceptable for a user page mapping: it
// must include PermU and PermP and nothing outside PermSyscall.
func (p Perm) UserValid() bool {
	return p&(PermU|PermP) == PermU|PermP && p&^PermSyscall == 0
}

// String implements fmt.Stringer.String.
func (p Perm) String() string {
	if p == 0 {
		return "-"
	}
	var b strings.Builder
	for _, f := range []struct {
		bit  Perm
		name byte
	}{
		{PermShare, 'S'},
		{PermU, 'U'},
		{PermW, 'W'},
		{PermP, 'P'},
	} {
		if p&f.bit != 0 {
			b.WriteByte(f.name)
		} else {
			b.WriteByte('-')
		}
	}
	if rest := p &^ (PermShare | PermU | PermW | PermP); rest != 0 {
		fmt.Fprintf(&b, "|%#x", uint32(rest))
	}
	return b.String()
}
