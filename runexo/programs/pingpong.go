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
	"fmt"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/sentry/kernel"
)

// pingPongVA is where the shared page lives in both environments.
const pingPongVA exo.Addr = 0x00800000

// PingPong spawns an environment that spawns a child and then bounces a
// counter back and forth with it, starting at 0, until the counter reaches
// rounds. Both environments then exit.
//
// With page set, the counter travels with a page that both environments
// map writable at the same address; each side reads the text the other
// left there and replaces it.
//
// Each received message prints one line:
//
//	<receiver> got <value> from <sender>
func PingPong(k *kernel.Kernel, env Env, rounds uint32, page bool) (exo.EnvID, error) {
	e := lockOutput(env)
	return k.Spawn(0, exo.EnvTypeUser, func(t *kernel.Task) {
		child, err := t.Spawn(exo.EnvTypeUser, func(t *kernel.Task) {
			e.bounce(t, 0, rounds, page)
		})
		must(err)
		e.bounce(t, child, rounds, page)
	})
}

// bounce runs one side of PingPong. A nonzero peer makes this side serve
// first.
func (e *Env) bounce(t *kernel.Task, peer exo.EnvID, rounds uint32, page bool) {
	ep := e.endpoint(t)
	va, perm := exo.NoPage, exo.Perm(0)
	if page {
		va, perm = pingPongVA, rw
	}

	if peer != 0 {
		if page {
			must(t.PageAlloc(va, rw))
			writeString(mem(t, va), fmt.Sprintf("serve from %v", ep.ID()))
		}
		ep.Send(peer, 0, va, perm)
	}
	for {
		var from exo.EnvID
		v, err := ep.Recv(va, &from, nil)
		must(err)
		if page {
			b := mem(t, va)
			e.printf("%v got %d from %v: %q", ep.ID(), v, from, readString(b))
			writeString(b, fmt.Sprintf("%d from %v", v+1, ep.ID()))
		} else {
			e.printf("%v got %d from %v", ep.ID(), v, from)
		}
		if v == rounds {
			return
		}
		v++
		ep.Send(from, v, va, perm)
		if v == rounds {
			return
		}
	}
}
