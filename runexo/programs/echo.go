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
	"strings"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/log"
	"exokern.dev/exokern/pkg/sentry/kernel"
)

// Addresses used by the echo protocol.
const (
	// echoReqVA is where the service receives request pages.
	echoReqVA exo.Addr = 0x00a00000

	// echoReplyVA is where the service builds reply pages.
	echoReplyVA exo.Addr = 0x00a01000

	// clientBufVA is where a client writes a request.
	clientBufVA exo.Addr = 0x00b00000

	// clientReplyVA is where a client receives a reply.
	clientReplyVA exo.Addr = 0x00b01000
)

// EchoService is the program of the echo service. It runs as an
// exo.EnvTypeFS environment so that clients can find it with FindByType.
//
// A request is a value n and a page holding n bytes of text. The reply
// carries the same value and a new read-only page with the text upper-cased.
// A request without a page is answered with its value and no page.
func (e *Env) EchoService(t *kernel.Task) {
	ep := e.endpoint(t)
	for {
		var from exo.EnvID
		var perm exo.Perm
		n, err := ep.Recv(echoReqVA, &from, &perm)
		must(err)
		if perm == 0 {
			ep.Send(from, n, exo.NoPage, 0)
			continue
		}

		req := mem(t, echoReqVA)
		if n > uint32(len(req)) {
			n = uint32(len(req))
		}
		must(t.PageAlloc(echoReplyVA, rw))
		copy(mem(t, echoReplyVA), strings.ToUpper(string(req[:n])))
		must(t.PageUnmap(echoReqVA))

		if log.IsLogging(log.Debug) {
			log.Debugf("[%v] echo %d bytes to %v", ep.ID(), n, from)
		}
		ep.Send(from, n, echoReplyVA, ro)
		// The client holds the only mapping of the reply from now on.
		must(t.PageUnmap(echoReplyVA))
	}
}

// EchoOpts configures the echo scenario.
type EchoOpts struct {
	// Clients is the number of client environments.
	Clients int

	// Requests is the number of requests each client makes.
	Requests int

	// Gate, if not nil, holds clients back until it is closed.
	Gate <-chan struct{}
}

// StartEcho spawns the echo service and its clients. Each client finds the
// service by type, sends Requests pages of text and checks every reply,
// halting on a wrong one. The service keeps running after the clients exit.
func StartEcho(k *kernel.Kernel, env Env, opts EchoOpts) (service exo.EnvID, clients []exo.EnvID, err error) {
	e := lockOutput(env)
	service, err = k.Spawn(0, exo.EnvTypeFS, e.EchoService)
	if err != nil {
		return 0, nil, fmt.Errorf("spawning echo service: %w", err)
	}
	for c := 0; c < opts.Clients; c++ {
		id, err := k.Spawn(0, exo.EnvTypeUser, func(t *kernel.Task) {
			if opts.Gate != nil {
				<-opts.Gate
			}
			e.echoClient(t, opts.Requests)
		})
		if err != nil {
			return service, clients, fmt.Errorf("spawning echo client %d: %w", c, err)
		}
		clients = append(clients, id)
	}
	return service, clients, nil
}

// Echo runs the echo scenario to completion: it starts it, waits for every
// client, and shuts the kernel down.
func Echo(k *kernel.Kernel, env Env, opts EchoOpts) error {
	_, clients, err := StartEcho(k, env, opts)
	if err == nil {
		for _, id := range clients {
			if es, _ := k.Await(id); es.Halted {
				err = fmt.Errorf("echo client %v failed: %w", id, es.Reason)
				break
			}
		}
	}
	k.Shutdown()
	if werr := k.Wait(); err == nil {
		err = werr
	}
	return err
}

func (e *Env) echoClient(t *kernel.Task, requests int) {
	ep := e.endpoint(t)
	var service exo.EnvID
	for service == 0 {
		service = ep.FindByType(exo.EnvTypeFS)
		if service == 0 {
			t.Yield()
		}
	}

	for i := 0; i < requests; i++ {
		msg := fmt.Sprintf("hello %d from %v", i, ep.ID())
		must(t.PageAlloc(clientBufVA, rw))
		n := copy(mem(t, clientBufVA), msg)
		ep.Send(service, uint32(n), clientBufVA, ro)

		var from exo.EnvID
		var perm exo.Perm
		got, err := ep.Recv(clientReplyVA, &from, &perm)
		must(err)
		if from != service || got != uint32(n) || perm == 0 {
			panic(fmt.Sprintf("bad echo reply: value %d perm %v from %v", got, perm, from))
		}
		reply := string(mem(t, clientReplyVA)[:n])
		if want := strings.ToUpper(msg); reply != want {
			panic(fmt.Sprintf("echo reply %q, want %q", reply, want))
		}
		e.printf("%v: %q -> %q", ep.ID(), msg, reply)
	}
}
