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

// Package sim assembles a simulated machine around the kernel core: RAM, a
// frame allocator, the kernel space and a task manager.
package sim

import (
	"fmt"

	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/task"
	"rvos.dev/rvos/rvsim/config"
)

// Machine is a simulated machine.
type Machine struct {
	Memory     *mm.SimulatedMemory
	Frames     *mm.FrameAllocator
	Trampoline riscv.PhysPageNum
	Kernel     *mm.KernelSpace
	Tasks      *task.Manager
}

// New builds a machine from conf and installs its kernel space as the
// process-wide one.
func New(conf *config.Config) (*Machine, error) {
	base := riscv.PhysAddr(conf.RAMBase).Floor()
	mem := mm.NewSimulatedMemory(base, conf.MemoryFrames)
	frames := mm.NewFrameAllocator(mem, mem.Base(), mem.End())

	tramp, err := frames.Alloc()
	if err != nil {
		return nil, fmt.Errorf("allocating trampoline: %w", err)
	}
	kms, err := mm.NewKernelMemorySet(frames, tramp.PPN, nil)
	if err != nil {
		return nil, fmt.Errorf("building kernel space: %w", err)
	}
	kernel := mm.NewKernelSpace(kms)
	mm.SetKernel(kernel)

	return &Machine{
		Memory:     mem,
		Frames:     frames,
		Trampoline: tramp.PPN,
		Kernel:     kernel,
		Tasks: task.NewManager(task.Config{
			Loader:      task.ELFLoader{Frames: frames, Trampoline: tramp.PPN},
			KernelSpace: kernel,
			Memory:      mem,
			TrapReturn:  uintptr(conf.TrapReturn),
			TrapHandler: uintptr(conf.TrapHandler),
		}),
	}, nil
}

// TaskInfo summarizes a task for reports.
type TaskInfo struct {
	Name        string     `json:"name" yaml:"name"`
	Slot        int        `json:"slot" yaml:"slot"`
	Status      string     `json:"status" yaml:"status"`
	Entry       Hex        `json:"entry" yaml:"entry"`
	UserSP      Hex        `json:"user_sp" yaml:"user_sp"`
	ProgramBrk  Hex        `json:"program_brk" yaml:"program_brk"`
	UserToken   Hex        `json:"user_token" yaml:"user_token"`
	KernelStack [2]Hex     `json:"kernel_stack" yaml:"kernel_stack,flow"`
	TrapContext Hex        `json:"trap_context_ppn" yaml:"trap_context_ppn"`
	Areas       []AreaInfo `json:"areas" yaml:"areas"`
}

// AreaInfo summarizes a mapped area.
type AreaInfo struct {
	Start  Hex    `json:"start" yaml:"start"`
	End    Hex    `json:"end" yaml:"end"`
	Perm   string `json:"perm" yaml:"perm"`
	Frames int    `json:"frames" yaml:"frames"`
}

// Hex is a number reported in hexadecimal.
type Hex uint64

// String implements fmt.Stringer.
func (h Hex) String() string {
	return fmt.Sprintf("%#x", uint64(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h Hex) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// Describe returns a report for t.
func Describe(name string, t *task.TaskControlBlock) TaskInfo {
	bottom, top := t.KernelStack()
	info := TaskInfo{
		Name:        name,
		Slot:        t.Slot(),
		Status:      t.Status().String(),
		ProgramBrk:  Hex(t.ProgramBrk()),
		UserToken:   Hex(t.UserToken()),
		KernelStack: [2]Hex{Hex(bottom), Hex(top)},
		TrapContext: Hex(t.TrapContextPPN()),
	}
	if cx := t.TrapContext(); cx != nil {
		info.Entry = Hex(cx.Sepc)
		info.UserSP = Hex(cx.Stack())
	}
	if ms, ok := t.Space().(*mm.MemorySet); ok {
		for _, a := range ms.Areas() {
			info.Areas = append(info.Areas, AreaInfo{
				Start:  Hex(a.Range.Start.Addr()),
				End:    Hex(a.Range.End.Addr()),
				Perm:   a.Perm.String(),
				Frames: a.Frames,
			})
		}
	}
	return info
}
