// Copyright 2026 The rvos Authors.
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
	"reflect"

	"github.com/BurntSushi/toml"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file with configuration defaults. Flags given on the command line take precedence.")

	// Logging flags.
	flagSet.String("log", "", "file path where logs are written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default), json, or logrus.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("debug-log", "", "additional location for logs. The following variables are available: %TIMESTAMP%, %COMMAND%.")

	// Machine flags.
	flagSet.Uint64("ram-base", 0x80000000, "physical address of simulated RAM.")
	flagSet.Int("memory-frames", 2048, "number of 4 KiB frames of simulated RAM.")
	flagSet.Uint64("trap-return", 0x80201000, "kernel address of the return-to-user routine.")
	flagSet.Uint64("trap-handler", 0x80200000, "kernel address of the trap handler.")
}

// NewFromFlags creates a new Config with values coming from command line flags
// and, if --config is set, from a TOML file. Flags set explicitly on the command
// line override the file.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := setFromFlags(conf, flagSet, func(visit func(*flag.Flag)) { flagSet.VisitAll(visit) }); err != nil {
		return nil, err
	}
	if conf.ConfigFile != "" {
		if err := LoadFile(conf.ConfigFile, conf); err != nil {
			return nil, err
		}
		// Explicit flags win over the file.
		if err := setFromFlags(conf, flagSet, flagSet.Visit); err != nil {
			return nil, err
		}
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadFile decodes the TOML file at path into conf. Keys the file does not set
// keep their current values.
func LoadFile(path string, conf *Config) error {
	md, err := toml.DecodeFile(path, conf)
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %q: unknown keys %v", path, undecoded)
	}
	return nil
}

// setFromFlags copies the value of every flag passed to each into the field
// tagged with its name.
func setFromFlags(conf *Config, flagSet *flag.FlagSet, each func(func(*flag.Flag))) error {
	fields := make(map[string]reflect.Value)
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		if flagSet.Lookup(name) == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		fields[name] = obj.Field(i)
	}

	var err error
	each(func(fl *flag.Flag) {
		field, ok := fields[fl.Name]
		if !ok || err != nil {
			return
		}
		getter, ok := fl.Value.(flag.Getter)
		if !ok {
			err = fmt.Errorf("flag %q has no getter", fl.Name)
			return
		}
		x := reflect.ValueOf(getter.Get())
		if !x.Type().AssignableTo(field.Type()) {
			err = fmt.Errorf("flag %q of type %v cannot set field of type %v", fl.Name, x.Type(), field.Type())
			return
		}
		field.Set(x)
	})
	return err
}

// ToFlags returns a slice of flags that correspond to the given Config,
// omitting those with default values.
func (c *Config) ToFlags() []string {
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	var rv []string
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		fl := flagSet.Lookup(name)
		val := fmt.Sprint(obj.Field(i).Interface())
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", name, val))
	}
	return rv
}
