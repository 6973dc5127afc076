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

	"github.com/google/subcommands"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/rvsim/sim"
)

// Layout implements subcommands.Command for the "layout" command.
type Layout struct {
	slots  int
	output outputFlag
}

// Name implements subcommands.Command.Name.
func (*Layout) Name() string {
	return "layout"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Layout) Synopsis() string {
	return "print the kernel address space layout"
}

// Usage implements subcommands.Command.Usage.
func (*Layout) Usage() string {
	return `layout [flags] - print the trampoline, trap context and kernel stack slots.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *Layout) SetFlags(f *flag.FlagSet) {
	l.output = "text"
	f.IntVar(&l.slots, "slots", 4, "number of kernel stack slots to print.")
	f.Var(&l.output, "o", "output format: text, json or yaml.")
}

// slotLayout is the position of one kernel stack.
type slotLayout struct {
	Slot   int     `json:"slot" yaml:"slot"`
	Bottom sim.Hex `json:"bottom" yaml:"bottom"`
	Top    sim.Hex `json:"top" yaml:"top"`
	Guard  sim.Hex `json:"guard" yaml:"guard"`
}

type layoutReport struct {
	Trampoline      sim.Hex      `json:"trampoline" yaml:"trampoline"`
	TrapContextBase sim.Hex      `json:"trap_context_base" yaml:"trap_context_base"`
	UserStackSize   sim.Hex      `json:"user_stack_size" yaml:"user_stack_size"`
	KernelStackSize sim.Hex      `json:"kernel_stack_size" yaml:"kernel_stack_size"`
	Slots           []slotLayout `json:"slots" yaml:"slots"`
}

func newLayoutReport(slots int) layoutReport {
	r := layoutReport{
		Trampoline:      sim.Hex(mm.Trampoline),
		TrapContextBase: sim.Hex(mm.TrapContextBase),
		UserStackSize:   sim.Hex(mm.UserStackSize),
		KernelStackSize: sim.Hex(mm.KernelStackSize),
	}
	for i := 0; i < slots; i++ {
		bottom, top := mm.KernelStackPosition(i)
		r.Slots = append(r.Slots, slotLayout{
			Slot:   i,
			Bottom: sim.Hex(bottom),
			Top:    sim.Hex(top),
			Guard:  sim.Hex(bottom - riscv.PageSize),
		})
	}
	return r
}

// Execute implements subcommands.Command.Execute.
func (l *Layout) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if l.slots < 0 || l.slots > mm.MaxSlots {
		return Errorf("slots must be within [0, %d]", mm.MaxSlots)
	}
	r := newLayoutReport(l.slots)
	if err := writeReport(os.Stdout, l.output, r, func(w io.Writer) {
		fmt.Fprintf(w, "trampoline\t%v\n", r.Trampoline)
		fmt.Fprintf(w, "trap context\t%v\n", r.TrapContextBase)
		fmt.Fprintf(w, "SLOT\tBOTTOM\tTOP\tGUARD\n")
		for _, s := range r.Slots {
			fmt.Fprintf(w, "%d\t%v\t%v\t%v\n", s.Slot, s.Bottom, s.Top, s.Guard)
		}
	}); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}
