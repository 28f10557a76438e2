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
	"errors"
	"flag"
	"testing"

	"exokern.dev/exokern/runexo/config"
	"github.com/google/subcommands"
)

func testConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	conf, err := config.NewFromFlags(fs)
	if err != nil {
		t.Fatalf("NewFromFlags(%v): %v", args, err)
	}
	return conf
}

func execute(t *testing.T, c subcommands.Command, conf *config.Config, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return c.Execute(context.Background(), fs, conf)
}

func TestCommands(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  subcommands.Command
		conf []string
		args []string
		want subcommands.ExitStatus
	}{
		{
			name: "pingpong",
			cmd:  new(PingPong),
			args: []string{"-rounds=3", "-page"},
			want: subcommands.ExitSuccess,
		},
		{
			name: "primes",
			cmd:  new(Primes),
			args: []string{"-n=20"},
			want: subcommands.ExitSuccess,
		},
		{
			name: "primes table full",
			cmd:  new(Primes),
			conf: []string{"-nenv=4"},
			args: []string{"-n=20"},
			want: subcommands.ExitFailure,
		},
		{
			name: "echo",
			cmd:  new(Echo),
			conf: []string{"-retry-policy=constant", "-retry-interval=10us"},
			args: []string{"-clients=2", "-requests=2"},
			want: subcommands.ExitSuccess,
		},
		{
			name: "envs",
			cmd:  new(Envs),
			args: []string{"-clients=3"},
			want: subcommands.ExitSuccess,
		},
		{
			name: "extra argument",
			cmd:  new(Primes),
			args: []string{"extra"},
			want: subcommands.ExitUsageError,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := execute(t, tc.cmd, testConfig(t, tc.conf...), tc.args...); got != tc.want {
				t.Errorf("Execute() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExitStatus(t *testing.T) {
	if got := exitStatus(nil); got != subcommands.ExitSuccess {
		t.Errorf("exitStatus(nil) = %v, want %v", got, subcommands.ExitSuccess)
	}
	if got := exitStatus(errors.New("boom")); got != subcommands.ExitFailure {
		t.Errorf("exitStatus(boom) = %v, want %v", got, subcommands.ExitFailure)
	}
}
