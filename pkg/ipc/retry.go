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
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryKind selects the delay between send attempts.
type RetryKind int

const (
	// RetryYield only yields between attempts.
	RetryYield RetryKind = iota

	// RetryConstant yields and then sleeps for a fixed interval.
	RetryConstant

	// RetryExponential yields and then sleeps for an exponentially growing
	// interval.
	RetryExponential
)

// String implements fmt.Stringer.String.
func (k RetryKind) String() string {
	switch k {
	case RetryYield:
		return "yield"
	case RetryConstant:
		return "constant"
	case RetryExponential:
		return "exponential"
	default:
		return fmt.Sprintf("RetryKind(%d)", int(k))
	}
}

// ParseRetryKind parses the String form of a RetryKind.
func ParseRetryKind(s string) (RetryKind, error) {
	switch s {
	case "", "yield":
		return RetryYield, nil
	case "constant":
		return RetryConstant, nil
	case "exponential":
		return RetryExponential, nil
	default:
		return 0, fmt.Errorf("invalid retry policy %q", s)
	}
}

// DefaultRetryInterval is the delay used by RetryConstant and the initial
// delay used by RetryExponential when Interval is not set.
const DefaultRetryInterval = 100 * time.Microsecond

// RetryPolicy controls how a sender waits for its receiver.
//
// The zero value yields once per attempt and never gives up, so a sender
// whose target never receives spins forever.
type RetryPolicy struct {
	Kind RetryKind

	// Interval is the constant delay, or the initial exponential delay.
	Interval time.Duration

	// MaxInterval caps the exponential delay. Zero uses the backoff
	// package default.
	MaxInterval time.Duration

	// MaxRetries bounds the number of retries after the first attempt.
	// Zero means unbounded.
	MaxRetries uint64
}

func (p RetryPolicy) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return DefaultRetryInterval
}

// backOff returns a fresh backoff.BackOff implementing p.
func (p RetryPolicy) backOff() backoff.BackOff {
	var b backoff.BackOff
	switch p.Kind {
	case RetryConstant:
		b = backoff.NewConstantBackOff(p.interval())
	case RetryExponential:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.interval()
		if p.MaxInterval > 0 {
			eb.MaxInterval = p.MaxInterval
		}
		// Give up only through MaxRetries.
		eb.MaxElapsedTime = 0
		b = eb
	default:
		b = &backoff.ZeroBackOff{}
	}
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return b
}
