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


// Package errno holds the error numbers returned by the exokern system calls.
//
// System calls report failures as the negated errno, so a raw return value of
// -7 is EIPCNOTRECV.
package errno

import "strconv"

// Errno represents a kernel error number.
type Errno uint32

// Kernel error numbers.
const (
	NOERRNO      Errno = 0
	EUNSPECIFIED Errno = 1
	EBADENV      Errno = 2
	EINVAL       Errno = 3
	ENOMEM       Errno = 4
	ENOFREEENV   Errno = 5
	EFAULT       Errno = 6
	EIPCNOTRECV  Errno = 7
	EEOF         Errno = 8
)

// MaxErrno is one past the largest valid Errno.
const MaxErrno = EEOF + 1

var names = [MaxErrno]string{
	NOERRNO:      "NOERRNO",
	EUNSPECIFIED: "EUNSPECIFIED",
	EBADENV:      "EBADENV",
	EINVAL:       "EINVAL",
	ENOMEM:       "ENOMEM",
	ENOFREEENV:   "ENOFREEENV",
	EFAULT:       "EFAULT",
	EIPCNOTRECV:  "EIPCNOTRECV",
	EEOF:         "EEOF",
}

// String implements fmt.Stringer.String.
func (e Errno) String() string {
	if e < MaxErrno {
		return names[e]
	}
	return "Errno(" + strconv.FormatUint(uint64(e), 10) + ")"
}

// Code returns the raw system call return value for e.
func (e Errno) Code() int {
	return -int(e)
}
