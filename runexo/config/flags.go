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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/ipc"
	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v2"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML or YAML (.yaml, .yml) file with default settings. Flags given on the command line override it.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("debug-log", "", "additional location for logs. If it ends with '/', log files are created inside the directory with default names. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("debug-log-format", "text", "log format: text (default) or json.")

	// Kernel flags.
	flagSet.Int("nenv", exo.NEnv, "size of the environment table; must be a power of two.")
	flagSet.Int("max-pages", 0, "number of physical pages available to environments. 0 means unlimited.")

	// IPC flags.
	flagSet.String("retry-policy", ipc.RetryYield.String(), "how a sender waits for a busy receiver: yield (default), constant, exponential.")
	flagSet.Duration("retry-interval", ipc.DefaultRetryInterval, "delay between send attempts for the constant policy, or the initial delay for the exponential one.")
	flagSet.Uint64("retry-max", 0, "maximum number of send retries before the sender halts. 0 retries forever.")
}

// get returns the value held by a flag registered with RegisterFlags.
func get(v flag.Value) any {
	return v.(flag.Getter).Get()
}

// NewFromFlags creates a new Config with values coming from command line
// flags, and from the file named by the "config" flag if it is set.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	fields := make(map[string]int)
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		obj.Field(i).Set(reflect.ValueOf(get(fl.Value)))
		fields[name] = i
	}

	if conf.ConfigFile != "" {
		if err := conf.load(conf.ConfigFile); err != nil {
			return nil, err
		}
		// Flags given explicitly take precedence over the file.
		flagSet.Visit(func(fl *flag.Flag) {
			if i, ok := fields[fl.Name]; ok {
				obj.Field(i).Set(reflect.ValueOf(get(fl.Value)))
			}
		})
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// load reads settings from a TOML file, or a YAML one if the name ends in
// .yaml or .yml. Keys that do not name a setting are an error.
func (c *Config) load(path string) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return c.loadYAML(path)
	default:
		return c.loadTOML(path)
	}
}

func (c *Config) loadTOML(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown settings in config file %q: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.SetStrict(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("error decoding config file %q: %w", path, err)
	}
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config. Flags
// at their default value are omitted.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))

		flag := flagSet.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == flag.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", flag.Name, val))
	}
	return rv
}

func getVal(field reflect.Value) string {
	if d, ok := field.Interface().(time.Duration); ok {
		return d.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
