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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/subcommands"
	"rvos.dev/rvos/rvsim/config"
	"rvos.dev/rvos/rvsim/sim"
)

// Brk implements subcommands.Command for the "brk" command.
type Brk struct {
	output outputFlag
}

// Name implements subcommands.Command.Name.
func (*Brk) Name() string {
	return "brk"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Brk) Synopsis() string {
	return "load an executable and move its program break"
}

// Usage implements subcommands.Command.Usage.
func (*Brk) Usage() string {
	return `brk [flags] <elf> <delta>... - apply each signed delta to the program break in turn.

Deltas accept Go integer syntax, e.g. 0x2000 or -4096.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Brk) SetFlags(f *flag.FlagSet) {
	b.output = "text"
	f.Var(&b.output, "o", "output format: text, json or yaml.")
}

type brkStep struct {
	Delta int32   `json:"delta" yaml:"delta"`
	OK    bool    `json:"ok" yaml:"ok"`
	Old   sim.Hex `json:"old" yaml:"old"`
	Brk   sim.Hex `json:"brk" yaml:"brk"`
}

type brkReport struct {
	Task  sim.TaskInfo `json:"task" yaml:"task"`
	Steps []brkStep    `json:"steps" yaml:"steps"`
}

func parseDeltas(args []string) ([]int32, error) {
	deltas := make([]int32, 0, len(args))
	for _, a := range args {
		d, err := strconv.ParseInt(a, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid delta %q: %w", a, err)
		}
		deltas = append(deltas, int32(d))
	}
	return deltas, nil
}

// Execute implements subcommands.Command.Execute.
func (b *Brk) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	deltas, err := parseDeltas(f.Args()[1:])
	if err != nil {
		return Errorf("%v", err)
	}
	image, err := os.ReadFile(f.Arg(0))
	if err != nil {
		return Errorf("reading image: %v", err)
	}
	m, err := sim.New(conf)
	if err != nil {
		return Errorf("creating machine: %v", err)
	}
	t, err := m.Tasks.New(image, 0)
	if err != nil {
		return Errorf("loading task: %v", err)
	}

	var r brkReport
	for _, d := range deltas {
		old, ok := t.ChangeProgramBrk(d)
		r.Steps = append(r.Steps, brkStep{Delta: d, OK: ok, Old: sim.Hex(old), Brk: sim.Hex(t.ProgramBrk())})
	}
	r.Task = sim.Describe(filepath.Base(f.Arg(0)), t)

	if err := writeReport(os.Stdout, b.output, r, func(w io.Writer) {
		fmt.Fprintf(w, "heap bottom\t%#x\n", t.HeapBottom())
		fmt.Fprintf(w, "DELTA\tOK\tOLD\tBRK\n")
		for _, s := range r.Steps {
			fmt.Fprintf(w, "%+d\t%t\t%v\t%v\n", s.Delta, s.OK, s.Old, s.Brk)
		}
	}); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}
