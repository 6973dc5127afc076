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

//go:build linux
// +build linux

package cmd

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/google/subcommands"
	"rvos.dev/rvos/pkg/fatal"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/sbi"
	"rvos.dev/rvos/pkg/sbi/hostfw"
	"rvos.dev/rvos/pkg/timer"
)

// Crash implements subcommands.Command for the "crash" command.
type Crash struct {
	mode string
}

// Name implements subcommands.Command.Name.
func (*Crash) Name() string {
	return "crash"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Crash) Synopsis() string {
	return "boot the host firmware and take the kernel's fatal path"
}

// Usage implements subcommands.Command.Usage.
func (*Crash) Usage() string {
	return `crash [flags] <message>... - print a kernel panic on the console and power off.

Modes:
  panicf   explicit kernel panic, reported at its call site (default)
  panic    Go runtime panic recovered at the kernel entry
  unknown  report without a source location
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Crash) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.mode, "mode", "panicf", "how to enter the fatal path: panicf, panic or unknown.")
}

// Execute implements subcommands.Command.Execute.
func (c *Crash) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	msg := strings.Join(f.Args(), " ")
	if msg == "" {
		msg = "crash requested"
	}
	switch c.mode {
	case "panicf", "panic", "unknown":
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}

	fw := hostfw.New(int(os.Stdout.Fd()), int(os.Stdin.Fd()))
	sbi.Install(fw)
	timer.SetNextTrigger()
	log.Infof("Firmware up, first tick at %d", fw.Deadline())

	switch c.mode {
	case "panic":
		kernelEntry(func() { panic(msg) })
	case "unknown":
		fatal.Handle(fatal.Report{Message: msg})
	default:
		fatal.Panicf("%s", msg)
	}
	panic("unreachable")
}

// kernelEntry runs fn the way a trap handler runs kernel code.
func kernelEntry(fn func()) {
	defer fatal.Recover()
	fn()
}
