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

// Package config provides basic infrastructure to set configuration settings
// for runexo. Each setting can be changed from the command line or from a
// configuration file in TOML or YAML; a flag given on the command line wins
// over the file.
package config

import (
	"fmt"
	"time"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/ipc"
	"exokern.dev/exokern/pkg/log"
	"exokern.dev/exokern/pkg/sentry/kernel"
)

// Config holds configuration that is not part of a command's own flags.
//
// Field tags: "flag" names the command line flag, "toml" and "yaml" the key
// in a configuration file of that format.
type Config struct {
	// ConfigFile is the TOML or YAML file the rest of the settings were read
	// from.
	ConfigFile string `flag:"config" toml:"-" yaml:"-"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug" yaml:"debug"`

	// DebugLog is the path to log debug information to, if not empty. If it
	// ends with '/', a file is created in that directory with a default
	// name.
	DebugLog string `flag:"debug-log" toml:"debug-log" yaml:"debug-log"`

	// DebugLogFormat is the log format for debug: text or json.
	DebugLogFormat string `flag:"debug-log-format" toml:"debug-log-format" yaml:"debug-log-format"`

	// NEnv is the size of the environment table.
	NEnv int `flag:"nenv" toml:"nenv" yaml:"nenv"`

	// MaxPages is the number of physical pages. Zero means no limit.
	MaxPages int `flag:"max-pages" toml:"max-pages" yaml:"max-pages"`

	// RetryPolicy is how senders wait for busy receivers: yield, constant
	// or exponential.
	RetryPolicy string `flag:"retry-policy" toml:"retry-policy" yaml:"retry-policy"`

	// RetryInterval is the constant delay, or the initial exponential
	// delay, between send attempts.
	RetryInterval time.Duration `flag:"retry-interval" toml:"retry-interval" yaml:"retry-interval"`

	// RetryMax bounds the number of send retries. Zero means unbounded.
	RetryMax uint64 `flag:"retry-max" toml:"retry-max" yaml:"retry-max"`
}

func (c *Config) validate() error {
	switch c.DebugLogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid debug-log-format %q, must be 'text' or 'json'", c.DebugLogFormat)
	}
	if c.NEnv <= 0 || c.NEnv > exo.NEnv || c.NEnv&(c.NEnv-1) != 0 {
		return fmt.Errorf("invalid nenv %d, must be a power of two between 1 and %d", c.NEnv, exo.NEnv)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("invalid max-pages %d", c.MaxPages)
	}
	if _, err := ipc.ParseRetryKind(c.RetryPolicy); err != nil {
		return err
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("invalid retry-interval %v", c.RetryInterval)
	}
	return nil
}

// KernelConfig returns the kernel settings.
func (c *Config) KernelConfig() kernel.Config {
	return kernel.Config{
		NEnv:     c.NEnv,
		MaxPages: c.MaxPages,
	}
}

// Retry returns the send retry policy.
func (c *Config) Retry() ipc.RetryPolicy {
	// Validated in NewFromFlags.
	kind, _ := ipc.ParseRetryKind(c.RetryPolicy)
	return ipc.RetryPolicy{
		Kind:       kind,
		Interval:   c.RetryInterval,
		MaxRetries: c.RetryMax,
	}
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	if c.ConfigFile != "" {
		log.Infof("Config file: %s", c.ConfigFile)
	}
	log.Infof("Environments: %d, page limit: %d", c.NEnv, c.MaxPages)
	log.Infof("Retry policy: %s, interval: %v, max retries: %d", c.Retry().Kind, c.RetryInterval, c.RetryMax)
	log.Infof("Debug: %t, debug log: %q (%s)", c.Debug, c.DebugLog, c.DebugLogFormat)
}
