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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"exokern.dev/exokern/runexo/config"
	"exokern.dev/exokern/runexo/programs"
	"github.com/google/subcommands"
)

// Envs implements subcommands.Command for the "envs" command.
type Envs struct {
	clients int
}

// Name implements subcommands.Command.Name.
func (*Envs) Name() string {
	return "envs"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Envs) Synopsis() string {
	return "list the environment table of a running echo scenario"
}

// Usage implements subcommands.Command.Usage.
func (*Envs) Usage() string {
	return `envs [flags] - start the echo scenario, print the environment table, then let it finish.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *Envs) SetFlags(f *flag.FlagSet) {
	f.IntVar(&e.clients, "clients", 2, "number of echo clients.")
}

// Execute implements subcommands.Command.Execute.
func (e *Envs) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	k := newKernel(conf)
	gate := make(chan struct{})
	// Program output would interleave with the table.
	env := programEnv(conf)
	env.Out = nil
	_, clients, err := programs.StartEcho(k, env, programs.EchoOpts{
		Clients:  e.clients,
		Requests: 1,
		Gate:     gate,
	})
	if err != nil {
		close(gate)
		k.Shutdown()
		_ = k.Wait()
		Fatalf("error starting echo: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 12, 1, 3, ' ', 0)
	fmt.Fprint(w, "INDEX\tID\tPARENT\tTYPE\tSTATUS\n")
	for _, env := range k.Envs() {
		fmt.Fprintf(w, "%d\t%v\t%v\t%v\t%v\n", env.ID.Index(), env.ID, env.ParentID, env.Type, env.Status)
	}
	w.Flush()

	close(gate)
	for _, id := range clients {
		if es, _ := k.Await(id); es.Halted {
			fmt.Fprintf(os.Stderr, "client %v: %v\n", id, es)
		}
	}
	k.Shutdown()
	return wait(k)
}
