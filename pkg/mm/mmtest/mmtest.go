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

// Package mmtest provides helpers for tests that need address spaces.
package mmtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
)

// Segment is a PT_LOAD segment of a test executable.
type Segment struct {
	Vaddr uint64
	Data  []byte

	// Memsz is raised to len(Data) if smaller.
	Memsz uint64
	Flags elf.ProgFlag
}

const (
	ehdrSize = 64
	phdrSize = 56
)

// BuildELF returns a RISC-V executable with the given entry point and
// segments.
func BuildELF(entry uint64, segs ...Segment) []byte {
	return build(elf.EM_RISCV, entry, segs)
}

// BuildELFForMachine is BuildELF for another machine type.
func BuildELFForMachine(machine elf.Machine, entry uint64, segs ...Segment) []byte {
	return build(machine, entry, segs)
}

func build(machine elf.Machine, entry uint64, segs []Segment) []byte {
	var buf bytes.Buffer
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehdrSize,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	binary.Write(&buf, binary.LittleEndian, &hdr)

	off := uint64(ehdrSize + phdrSize*len(segs))
	for _, s := range segs {
		binary.Write(&buf, binary.LittleEndian, &elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(s.Flags),
			Off:    off,
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  max(s.Memsz, uint64(len(s.Data))),
			Align:  riscv.PageSize,
		})
		off += uint64(len(s.Data))
	}
	for _, s := range segs {
		buf.Write(s.Data)
	}
	return buf.Bytes()
}

// Env is a simulated machine: RAM, a frame allocator over it, a trampoline
// frame and a kernel space.
type Env struct {
	Memory     *mm.SimulatedMemory
	Frames     *mm.FrameAllocator
	Trampoline riscv.PhysPageNum
	Kernel     *mm.KernelSpace
}

// RAMBase is the first frame of simulated RAM.
const RAMBase = riscv.PhysPageNum(0x80000)

// NewEnv returns an Env with the given number of frames of RAM.
func NewEnv(t testing.TB, frames int) *Env {
	t.Helper()
	mem := mm.NewSimulatedMemory(RAMBase, frames)
	alloc := mm.NewFrameAllocator(mem, mem.Base(), mem.End())
	tramp, err := alloc.Alloc()
	if err != nil {
		t.Fatalf("allocating trampoline: %v", err)
	}
	kms, err := mm.NewKernelMemorySet(alloc, tramp.PPN, nil)
	if err != nil {
		t.Fatalf("NewKernelMemorySet: %v", err)
	}
	return &Env{
		Memory:     mem,
		Frames:     alloc,
		Trampoline: tramp.PPN,
		Kernel:     mm.NewKernelSpace(kms),
	}
}

// Exhaust allocates every remaining frame and returns a function that
// releases them again.
func Exhaust(alloc *mm.FrameAllocator) (restore func()) {
	var held []*mm.Frame
	for {
		f, err := alloc.Alloc()
		if err != nil {
			break
		}
		held = append(held, f)
	}
	return func() {
		for _, f := range held {
			f.Release()
		}
	}
}
