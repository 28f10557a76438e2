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

package programs

import (
	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/log"
	"exokern.dev/exokern/pkg/sentry/kernel"
)

// Primes spawns a concurrent prime sieve that prints every prime below n,
// one per line, in increasing order.
//
// A generator environment feeds 2..n-1 to a pipeline of filter
// environments, one per prime. Each filter prints the first number it
// receives, which is prime, and forwards the numbers it does not divide to
// the next filter, spawning that filter when it first has something to
// forward. A 0 ends the stream and every environment exits.
//
// The pipeline needs one environment per prime below n plus the generator;
// a full environment table halts the filter that could not spawn.
func Primes(k *kernel.Kernel, env Env, n uint32) (exo.EnvID, error) {
	e := lockOutput(env)
	return k.Spawn(0, exo.EnvTypeUser, func(t *kernel.Task) {
		ep := e.endpoint(t)
		first, err := t.Spawn(exo.EnvTypeUser, e.filter)
		must(err)
		for i := uint32(2); i < n; i++ {
			ep.Send(first, i, exo.NoPage, 0)
		}
		ep.Send(first, 0, exo.NoPage, 0)
	})
}

func (e *Env) filter(t *kernel.Task) {
	ep := e.endpoint(t)
	p, err := ep.Recv(exo.NoPage, nil, nil)
	must(err)
	if p == 0 {
		return
	}
	e.printf("%d", p)
	if log.IsLogging(log.Debug) {
		log.Debugf("[%v] filtering multiples of %d", ep.ID(), p)
	}

	var next exo.EnvID
	for {
		i, err := ep.Recv(exo.NoPage, nil, nil)
		must(err)
		if i == 0 {
			if next != 0 {
				ep.Send(next, 0, exo.NoPage, 0)
			}
			return
		}
		if i%p == 0 {
			continue
		}
		if next == 0 {
			next, err = t.Spawn(exo.EnvTypeUser, e.filter)
			must(err)
		}
		ep.Send(next, i, exo.NoPage, 0)
	}
}
