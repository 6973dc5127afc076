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

// Package config provides the rvsim configuration.
package config

import (
	"fmt"

	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/mm"
)

// Config holds the simulated machine's configuration. Fields tagged with
// "flag" are set from the command line; fields tagged with "toml" may also be
// set from a configuration file.
type Config struct {
	// ConfigFile is a TOML file with defaults for the fields below.
	ConfigFile string `flag:"config"`

	// LogFilename is the file to write logs to. Empty means stderr.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: text, json or logrus.
	LogFormat string `flag:"log-format" toml:"log_format"`

	// Debug enables debug logging.
	Debug bool `flag:"debug" toml:"debug"`

	// DebugLog is an additional log file. %COMMAND% and %TIMESTAMP% are
	// substituted.
	DebugLog string `flag:"debug-log" toml:"debug_log"`

	// RAMBase is the physical address of simulated RAM.
	RAMBase uint64 `flag:"ram-base" toml:"ram_base"`

	// MemoryFrames is the number of frames of simulated RAM.
	MemoryFrames int `flag:"memory-frames" toml:"memory_frames"`

	// TrapReturn is the address of the return-to-user routine written
	// into new task contexts.
	TrapReturn uint64 `flag:"trap-return" toml:"trap_return"`

	// TrapHandler is the address of the trap handler written into new
	// trap contexts.
	TrapHandler uint64 `flag:"trap-handler" toml:"trap_handler"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json", "logrus":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json' or 'logrus'", c.LogFormat)
	}
	if c.RAMBase%4096 != 0 {
		return fmt.Errorf("ram-base %#x is not page aligned", c.RAMBase)
	}
	if c.MemoryFrames < minFrames {
		return fmt.Errorf("memory-frames %d is below the minimum of %d", c.MemoryFrames, minFrames)
	}
	if c.MemoryFrames > maxFrames {
		return fmt.Errorf("memory-frames %d is above the maximum of %d", c.MemoryFrames, maxFrames)
	}
	return nil
}

const (
	// minFrames holds the trampoline and the kernel page table.
	minFrames = 8

	// maxFrames is 1 GiB of RAM.
	maxFrames = 1 << 18
)

// Log logs important aspects of the configuration.
func (c *Config) Log() {
	log.Infof("Config.LogFormat: %s", c.LogFormat)
	log.Infof("Config.Debug: %t", c.Debug)
	log.Infof("Config.RAM: %#x, %d frames", c.RAMBase, c.MemoryFrames)
	log.Infof("Config.TrapReturn: %#x", c.TrapReturn)
	log.Infof("Config.TrapHandler: %#x", c.TrapHandler)
	log.Debugf("Config.KernelStackSize: %#x", mm.KernelStackSize)
}
