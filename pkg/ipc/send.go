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

package ipc

import (
	stderrors "errors"
	"fmt"
	"time"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/errors"
	"exokern.dev/exokern/pkg/errors/kernerr"
	"exokern.dev/exokern/pkg/log"
	"github.com/cenkalti/backoff"
)

// ErrRetriesExhausted is wrapped by the error SendRetry returns when the
// retry policy gave up while the receiver was still not receiving.
var ErrRetriesExhausted = stderrors.New("retries exhausted")

// SendError is a send failure other than contention.
type SendError struct {
	// To is the target environment.
	To exo.EnvID

	// Value is the value that could not be sent.
	Value uint32

	// Attempts is the number of send attempts made.
	Attempts uint64

	// Err is the underlying error.
	Err error
}

// Error implements error.Error.
func (e *SendError) Error() string {
	var ke *errors.Error
	if stderrors.As(e.Err, &ke) {
		return fmt.Sprintf("ipc send to %v of value %d failed after %d attempts: %v (%v, code %d)", e.To, e.Value, e.Attempts, e.Err, ke.Errno(), ke.Code())
	}
	return fmt.Sprintf("ipc send to %v of value %d failed after %d attempts: %v", e.To, e.Value, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}

// IsContention returns true if err reports that the target was not blocked
// in a receive. It is the only send error that is worth retrying.
func IsContention(err error) bool {
	return kernerr.Equals(kernerr.EIPCNOTRECV, err) || stderrors.Is(err, kernerr.EIPCNOTRECV)
}

// TrySend makes a single attempt to send value, and the page at pg with
// permission perm if pg is below exo.UTop, to the environment to.
//
// The kernel's error is returned unchanged; see IsContention.
func (e *Endpoint) TrySend(to exo.EnvID, value uint32, pg exo.Addr, perm exo.Perm) error {
	if !pg.Mappable() {
		pg = exo.NoPage
	}
	return e.sys.IPCTrySend(to, value, pg, perm)
}

// SendRetry sends value, and the page at pg if pg is below exo.UTop, to the
// environment to, retrying while to is not receiving.
//
// Between attempts the caller yields the processor and then waits as the
// retry policy dictates. Any error other than contention stops the loop
// immediately. The returned error is nil or a *SendError.
func (e *Endpoint) SendRetry(to exo.EnvID, value uint32, pg exo.Addr, perm exo.Perm) error {
	var attempts uint64
	op := func() error {
		attempts++
		err := e.TrySend(to, value, pg, perm)
		if err == nil || IsContention(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		if e.spin.IsLogging(log.Debug) {
			e.spin.Debugf("[%v] ipc send to %v: %v after %d attempts, next in %v", e.self, to, err, attempts, wait)
		}
		e.sys.Yield()
	}

	err := backoff.RetryNotify(op, e.retry.backOff(), notify)
	if err == nil {
		if e.log.IsLogging(log.Debug) {
			e.log.Debugf("[%v] ipc send to %v: value %d page %v perm %v after %d attempts", e.self, to, value, pg, perm, attempts)
		}
		return nil
	}
	if p, ok := err.(*backoff.PermanentError); ok {
		err = p.Err
	}
	if IsContention(err) {
		err = fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
	}
	return &SendError{
		To:       to,
		Value:    value,
		Attempts: attempts,
		Err:      err,
	}
}

// Send sends value, and the page at pg with permission perm if pg is below
// exo.UTop, to the environment to. It keeps trying until the send succeeds.
//
// Any failure other than the target not yet receiving is a programming
// error: Send halts the environment through the Halt function it was
// configured with and never returns.
func (e *Endpoint) Send(to exo.EnvID, value uint32, pg exo.Addr, perm exo.Perm) {
	err := e.SendRetry(to, value, pg, perm)
	if err == nil {
		return
	}
	e.halt(err)
	panic(fmt.Sprintf("halt function returned after fatal send error: %v", err))
}
