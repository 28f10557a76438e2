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

	"exokern.dev/exokern/runexo/config"
	"exokern.dev/exokern/runexo/programs"
	"github.com/google/subcommands"
)

// Echo implements subcommands.Command for the "echo" command.
type Echo struct {
	clients  int
	requests int
}

// Name implements subcommands.Command.Name.
func (*Echo) Name() string {
	return "echo"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Echo) Synopsis() string {
	return "run clients against an echo service found by type"
}

// Usage implements subcommands.Command.Usage.
func (*Echo) Usage() string {
	return `echo [flags] - clients look up the echo service and send it pages of text.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *Echo) SetFlags(f *flag.FlagSet) {
	f.IntVar(&e.clients, "clients", 4, "number of client environments.")
	f.IntVar(&e.requests, "requests", 3, "number of requests per client.")
}

// Execute implements subcommands.Command.Execute.
func (e *Echo) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if e.clients < 0 || e.requests < 0 {
		Fatalf("-clients and -requests must not be negative")
	}
	conf := args[0].(*config.Config)

	k := newKernel(conf)
	err := programs.Echo(k, programEnv(conf), programs.EchoOpts{
		Clients:  e.clients,
		Requests: e.requests,
	})
	return exitStatus(err)
}
