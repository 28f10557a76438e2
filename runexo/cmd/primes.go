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

// Primes implements subcommands.Command for the "primes" command.
type Primes struct {
	n uint
}

// Name implements subcommands.Command.Name.
func (*Primes) Name() string {
	return "primes"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Primes) Synopsis() string {
	return "print primes with a pipeline of filter environments"
}

// Usage implements subcommands.Command.Usage.
func (*Primes) Usage() string {
	return `primes [flags] - print every prime below -n, one environment per prime.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Primes) SetFlags(f *flag.FlagSet) {
	f.UintVar(&p.n, "n", 100, "print primes below this number.")
}

// Execute implements subcommands.Command.Execute.
func (p *Primes) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	k := newKernel(conf)
	if _, err := programs.Primes(k, programEnv(conf), uint32(p.n)); err != nil {
		Fatalf("error starting primes: %v", err)
	}
	return wait(k)
}
