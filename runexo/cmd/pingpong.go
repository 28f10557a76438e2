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

// PingPong implements subcommands.Command for the "pingpong" command.
type PingPong struct {
	rounds uint
	page   bool
}

// Name implements subcommands.Command.Name.
func (*PingPong) Name() string {
	return "pingpong"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*PingPong) Synopsis() string {
	return "bounce a counter between two environments"
}

// Usage implements subcommands.Command.Usage.
func (*PingPong) Usage() string {
	return `pingpong [flags] - two environments send a counter back and forth until it reaches -rounds.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *PingPong) SetFlags(f *flag.FlagSet) {
	f.UintVar(&p.rounds, "rounds", 10, "value at which the counter stops.")
	f.BoolVar(&p.page, "page", false, "share a writable page along with the counter.")
}

// Execute implements subcommands.Command.Execute.
func (p *PingPong) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	k := newKernel(conf)
	if _, err := programs.PingPong(k, programEnv(conf), uint32(p.rounds), p.page); err != nil {
		Fatalf("error starting pingpong: %v", err)
	}
	return wait(k)
}
