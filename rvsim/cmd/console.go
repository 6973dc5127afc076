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

	"github.com/google/subcommands"
	"golang.org/x/term"
	"rvos.dev/rvos/pkg/console"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/sbi"
	"rvos.dev/rvos/pkg/sbi/hostfw"
)

// eot ends an interactive console session.
const eot = 0x04

// Console implements subcommands.Command for the "console" command.
type Console struct {
	raw bool
}

// Name implements subcommands.Command.Name.
func (*Console) Name() string {
	return "console"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Console) Synopsis() string {
	return "echo the SBI console until ^D, then power off"
}

// Usage implements subcommands.Command.Usage.
func (*Console) Usage() string {
	return `console [flags] - attach the terminal to the simulated SBI console.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Console) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", true, "put the terminal in raw mode, as a serial line would be.")
}

// Execute implements subcommands.Command.Execute.
func (c *Console) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	in := int(os.Stdin.Fd())
	fw := hostfw.New(int(os.Stdout.Fd()), in)
	sbi.Install(fw)

	restore := func() {}
	if c.raw && term.IsTerminal(in) {
		state, err := term.MakeRaw(in)
		if err != nil {
			return Errorf("setting raw mode: %v", err)
		}
		restore = func() {
			if err := term.Restore(in, state); err != nil {
				log.Warningf("Restoring terminal: %v", err)
			}
		}
	}

	console.Print("rvsim console, ^D to power off\r\n")
	echo(fw)
	restore()
	sbi.Shutdown()
	panic("unreachable")
}

// echo copies console input back to the console until end of transmission or
// end of input.
func echo(fw *hostfw.Firmware) {
	for {
		ch, ok := console.Getchar()
		if !ok {
			if fw.InputClosed() {
				return
			}
			fw.Idle()
			continue
		}
		switch ch {
		case eot:
			return
		case '\r', '\n':
			console.Print("\r\n")
		default:
			sbi.ConsolePutchar(ch)
		}
	}
}
