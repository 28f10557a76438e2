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


// Package exo contains the kernel ABI shared between the exokern kernel and
// user environments: environment identifiers and control blocks, the user
// address space layout, and page permission bits.
package exo

import "fmt"

// LogNEnv is log2 of the maximum number of environments.
const LogNEnv = 10

// NEnv is the maximum number of environments.
const NEnv = 1 << LogNEnv

// EnvGenShift is the bit position of the generation counter in an EnvID.
const EnvGenShift = 12

// EnvID identifies an environment.
//
// The low LogNEnv bits hold the environment's index in the environment table
// and the bits from EnvGenShift up hold a generation number, so that an ID
// is never reused for a different environment occupying the same slot. The
// zero EnvID never names an environment.
type EnvID int32

// Index returns the environment table index encoded in id.
func (id EnvID) Index() int {
	return int(id) & (NEnv - 1)
}

// String implements fmt.Stringer.String.
func (id EnvID) String() string {
	return fmt.Sprintf("%08x", int32(id))
}

// EnvType classifies the role of an environment.
type EnvType uint32

// Environment types. Service environments are located by type.
const (
	EnvTypeUser EnvType = iota
	EnvTypeFS
	EnvTypeNS
)

// String implements fmt.Stringer.String.
func (t EnvType) String() string {
	switch t {
	case EnvTypeUser:
		return "user"
	case EnvTypeFS:
		return "fs"
	case EnvTypeNS:
		return "ns"
	default:
		return fmt.Sprintf("EnvType(%d)", uint32(t))
	}
}

// EnvStatus is the scheduling state of an environment table entry.
type EnvStatus uint32

// Environment states.
const (
	EnvFree EnvStatus = iota
	EnvDying
	EnvRunnable
	EnvRunning
	EnvNotRunnable
)

// String implements fmt.Stringer.String.
func (s EnvStatus) String() string {
	switch s {
	case EnvFree:
		return "free"
	case EnvDying:
		return "dying"
	case EnvRunnable:
		return "runnable"
	case EnvRunning:
		return "running"
	case EnvNotRunnable:
		return "not-runnable"
	default:
		return fmt.Sprintf("EnvStatus(%d)", uint32(s))
	}
}

// Env is the environment control block as exported to user environments.
//
// User code sees copies of Env; only the kernel mutates the table.
type Env struct {
	ID       EnvID
	ParentID EnvID
	Type     EnvType
	Status   EnvStatus

	// IPCRecving is set while the environment is blocked in IPCRecv.
	IPCRecving bool
	// IPCDstVA is where a page sent to the environment should be mapped.
	IPCDstVA Addr
	// IPCValue is the value sent by the last sender.
	IPCValue uint32
	// IPCFrom is the sender of the last message, or 0.
	IPCFrom EnvID
	// IPCPerm is the permission of the transferred page, or 0 if no page
	// was transferred.
	IPCPerm Perm
}

// Free returns true if the entry does not describe a live environment.
func (e Env) Free() bool {
	return e.Status == EnvFree
}
