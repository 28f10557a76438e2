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

// Package cmd holds implementations of the runexo commands.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"exokern.dev/exokern/pkg/ipc"
	"exokern.dev/exokern/pkg/log"
	"exokern.dev/exokern/pkg/sentry/kernel"
	"exokern.dev/exokern/runexo/config"
	"exokern.dev/exokern/runexo/programs"
	"github.com/google/subcommands"
)

// Fatalf logs to stderr and exits with a failure status code.
func Fatalf(s string, args ...any) {
	fmt.Fprintf(os.Stderr, s+"\n", args...)
	log.Warningf("FATAL ERROR: "+s, args...)
	os.Exit(128)
}

// newKernel creates a kernel configured by conf.
func newKernel(conf *config.Config) *kernel.Kernel {
	k, err := kernel.New(conf.KernelConfig())
	if err != nil {
		Fatalf("error creating kernel: %v", err)
	}
	return k
}

// programEnv returns the environment shared by the programs of a command.
func programEnv(conf *config.Config) programs.Env {
	return programs.Env{
		Opts: ipc.Opts{Retry: conf.Retry()},
		Out:  os.Stdout,
	}
}

// wait waits for every environment of k to exit and reports how it went.
func wait(k *kernel.Kernel) subcommands.ExitStatus {
	err := k.Wait()
	s := k.Stats()
	log.Infof("Environments spawned: %d, exited: %d, killed: %d, halted: %d; sends: %d in %d attempts, %d yields",
		s.Spawned, s.Exited, s.Killed, s.Halted, s.Sends, s.SendAttempts, s.Yields)
	return exitStatus(err)
}

func exitStatus(err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}
	var he *kernel.HaltError
	if errors.As(err, &he) {
		fmt.Fprintf(os.Stderr, "%v\n", he)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return subcommands.ExitFailure
}
