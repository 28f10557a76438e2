// Copyright 2021 The gVisor Authors.
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

// Package kernerr contains the exokern system call errors exported as error
// interface pointers. Each errno has exactly one *errors.Error value, so
// errors returned by the kernel can be compared with ==.
package kernerr

import (
	"fmt"

	"exokern.dev/exokern/pkg/abi/exo/errno"
	"exokern.dev/exokern/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	noError      *errors.Error = nil
	EUNSPECIFIED               = errors.New(errno.EUNSPECIFIED, "unspecified or unknown problem")
	EBADENV                    = errors.New(errno.EBADENV, "bad environment")
	EINVAL                     = errors.New(errno.EINVAL, "invalid parameter")
	ENOMEM                     = errors.New(errno.ENOMEM, "out of memory")
	ENOFREEENV                 = errors.New(errno.ENOFREEENV, "out of environments")
	EFAULT                     = errors.New(errno.EFAULT, "segmentation fault")
	EIPCNOTRECV                = errors.New(errno.EIPCNOTRECV, "environment is not receiving")
	EEOF                       = errors.New(errno.EEOF, "unexpected end of file")
)

// errorSlice holds errors by errno for fast translation.
var errorSlice = [errno.MaxErrno]*errors.Error{
	errno.NOERRNO:      noError,
	errno.EUNSPECIFIED: EUNSPECIFIED,
	errno.EBADENV:      EBADENV,
	errno.EINVAL:       EINVAL,
	errno.ENOMEM:       ENOMEM,
	errno.ENOFREEENV:   ENOFREEENV,
	errno.EFAULT:       EFAULT,
	errno.EIPCNOTRECV:  EIPCNOTRECV,
	errno.EEOF:         EEOF,
}

// hostErrno maps each kernel errno to the closest host errno. The mapping is
// lossy: ENOFREEENV and EIPCNOTRECV both map to EAGAIN.
var hostErrno = [errno.MaxErrno]unix.Errno{
	errno.EUNSPECIFIED: unix.EIO,
	errno.EBADENV:      unix.ESRCH,
	errno.EINVAL:       unix.EINVAL,
	errno.ENOMEM:       unix.ENOMEM,
	errno.ENOFREEENV:   unix.EAGAIN,
	errno.EFAULT:       unix.EFAULT,
	errno.EIPCNOTRECV:  unix.EAGAIN,
	errno.EEOF:         unix.ENODATA,
}

// FromErrno returns the error for e, or nil for NOERRNO. It panics if e is
// not a valid errno.
func FromErrno(e errno.Errno) error {
	if e == errno.NOERRNO {
		return nil
	}
	if e >= errno.MaxErrno {
		panic(fmt.Sprintf("invalid error requested with errno: %v", e))
	}
	return errorSlice[e]
}

// FromCode converts a raw system call return value to an error. Non-negative
// codes are successes.
func FromCode(code int) error {
	if code >= 0 {
		return nil
	}
	e := errno.Errno(-code)
	if e >= errno.MaxErrno {
		return errors.New(e, fmt.Sprintf("unknown error %d", code))
	}
	return errorSlice[e]
}

// ToError converts a kernerr to an error type.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts a kernerr to the equivalent host unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	if e == noError || e.Errno() >= errno.MaxErrno {
		return 0
	}
	return hostErrno[e.Errno()]
}

// Equals compares a kernerr to a given error. The error matches if it is
// the same kernerr or the host errno that e maps to.
func Equals(e *errors.Error, err error) bool {
	unixErr := ToUnix(e)
	if err == nil {
		err = noError
	}
	return e == err || (unixErr != 0 && unixErr == err)
}
