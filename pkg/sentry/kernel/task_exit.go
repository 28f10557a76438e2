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

	"exokern.dev/exokern/pkg/abi/exo"
)

// ExitStatus describes how an environment finished. The zero value is a
// normal exit.
type ExitStatus struct {
	// Killed is set if the environment was destroyed by another party.
	Killed bool

	// Halted is set if the environment's program panicked.
	Halted bool

	// Reason is the panic value of a halted environment, as an error.
	Reason error
}

// String implements fmt.Stringer.String.
func (es ExitStatus) String() string {
	switch {
	case es.Halted:
		return fmt.Sprintf("halted: %v", es.Reason)
	case es.Killed:
		return "killed"
	default:
		return "exited"
	}
}

// HaltError is returned by Kernel.Wait when an environment halted.
type HaltError struct {
	ID  exo.EnvID
	Err error
}

// Error implements error.Error.
func (e *HaltError) Error() string {
	return fmt.Sprintf("environment %v halted: %v", e.ID, e.Err)
}

// Unwrap returns the reason the environment halted.
func (e *HaltError) Unwrap() error {
	return e.Err
}

// exitSignal is the panic value used to unwind a task goroutine without
// halting the environment.
type exitSignal struct {
	killed bool
}
