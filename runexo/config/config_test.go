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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/ipc"
	"github.com/google/go-cmp/cmp"
)

func newTestFlags() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	return writeConfigFile(t, "runexo.toml", contents)
}

func writeConfigFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newTestFlags())
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	want := ipc.RetryPolicy{Kind: ipc.RetryYield, Interval: ipc.DefaultRetryInterval}
	if diff := cmp.Diff(want, c.Retry()); diff != "" {
		t.Errorf("Retry() mismatch (-want +got):\n%s", diff)
	}
	if got := c.KernelConfig().NEnv; got != exo.NEnv {
		t.Errorf("KernelConfig().NEnv = %d, want %d", got, exo.NEnv)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newTestFlags()
	for name, val := range map[string]string{
		"debug":          "true",
		"nenv":           "64",
		"retry-policy":   "exponential",
		"retry-interval": "1ms",
		"retry-max":      "10",
	} {
		if err := testFlags.Set(name, val); err != nil {
			t.Errorf("Flag set: %v", err)
		}
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Debug {
		t.Errorf("Debug=false, want: true")
	}
	if want := 64; c.NEnv != want {
		t.Errorf("NEnv=%v, want: %v", c.NEnv, want)
	}
	want := ipc.RetryPolicy{Kind: ipc.RetryExponential, Interval: time.Millisecond, MaxRetries: 10}
	if diff := cmp.Diff(want, c.Retry()); diff != "" {
		t.Errorf("Retry() mismatch (-want +got):\n%s", diff)
	}

	// Round trip through ToFlags.
	flags := c.ToFlags()
	again := newTestFlags()
	if err := again.Parse(flags); err != nil {
		t.Fatalf("Parse(%v): %v", flags, err)
	}
	c2, err := NewFromFlags(again)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, c2); diff != "" {
		t.Errorf("config from ToFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
debug = true
nenv = 32
max-pages = 128
retry-policy = "constant"
retry-interval = "250us"
`)
	testFlags := newTestFlags()
	testFlags.Set("config", path)
	// Command line wins over the file.
	testFlags.Set("nenv", "16")

	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		ConfigFile:     path,
		Debug:          true,
		DebugLogFormat: "text",
		NEnv:           16,
		MaxPages:       128,
		RetryPolicy:    "constant",
		RetryInterval:  250 * time.Microsecond,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileUnknownKey(t *testing.T) {
	path := writeConfig(t, "nenv = 32\nplatform = \"kvm\"\n")
	testFlags := newTestFlags()
	testFlags.Set("config", path)
	_, err := NewFromFlags(testFlags)
	if err == nil || !strings.Contains(err.Error(), "platform") {
		t.Errorf("NewFromFlags() = %v, want error naming the unknown key", err)
	}
}

func TestConfigFileYAML(t *testing.T) {
	path := writeConfigFile(t, "runexo.yaml", `
debug-log-format: json
nenv: 64
retry-policy: exponential
retry-interval: 1ms
retry-max: 5
`)
	testFlags := newTestFlags()
	testFlags.Set("config", path)

	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		ConfigFile:     path,
		DebugLogFormat: "json",
		NEnv:           64,
		RetryPolicy:    "exponential",
		RetryInterval:  time.Millisecond,
		RetryMax:       5,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileYAMLUnknownKey(t *testing.T) {
	path := writeConfigFile(t, "runexo.yml", "nenv: 32\nplatform: kvm\n")
	testFlags := newTestFlags()
	testFlags.Set("config", path)
	_, err := NewFromFlags(testFlags)
	if err == nil || !strings.Contains(err.Error(), "platform") {
		t.Errorf("NewFromFlags() = %v, want error naming the unknown key", err)
	}
}

func TestConfigFileEmptyYAML(t *testing.T) {
	path := writeConfigFile(t, "runexo.yaml", "")
	testFlags := newTestFlags()
	testFlags.Set("config", path)
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if c.NEnv != exo.NEnv {
		t.Errorf("NEnv = %d, want default %d", c.NEnv, exo.NEnv)
	}
}

func TestConfigFileMissing(t *testing.T) {
	testFlags := newTestFlags()
	testFlags.Set("config", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := NewFromFlags(testFlags); err == nil {
		t.Errorf("NewFromFlags() succeeded with a missing config file")
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name, flag, value string
	}{
		{"format", "debug-log-format", "xml"},
		{"nenv not power of two", "nenv", "48"},
		{"nenv too large", "nenv", "4096"},
		{"nenv zero", "nenv", "0"},
		{"max pages", "max-pages", "-1"},
		{"retry policy", "retry-policy", "linear"},
		{"retry interval", "retry-interval", "-1ms"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newTestFlags()
			if err := testFlags.Set(tc.flag, tc.value); err != nil {
				t.Fatalf("Flag set: %v", err)
			}
			if _, err := NewFromFlags(testFlags); err == nil {
				t.Errorf("NewFromFlags() succeeded with --%s=%s", tc.flag, tc.value)
			}
		})
	}
}
