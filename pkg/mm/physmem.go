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

// Package mm manages physical frames and Sv39 address spaces.
//
// Physical memory is reached through a PhysicalMemory window. On hardware the
// kernel identity maps RAM, so the window is the Direct mapping; elsewhere a
// SimulatedMemory stands in for RAM.
//
// Lock order:
//
//	KernelSpace.mu
//		FrameAllocator.mu
package mm

import (
	"fmt"

	"rvos.dev/rvos/pkg/riscv"
)

// PhysicalMemory gives the kernel access to physical frames.
type PhysicalMemory interface {
	// Page returns the contents of the frame ppn. The slice aliases the
	// frame and is exactly riscv.PageSize bytes long.
	Page(ppn riscv.PhysPageNum) []byte
}

// Direct is the kernel's identity mapping of physical memory. It is only
// usable while running on the hart, with RAM identity mapped.
type Direct struct{}

// Page implements PhysicalMemory.Page.
func (Direct) Page(ppn riscv.PhysPageNum) []byte {
	return directPage(uintptr(ppn.Addr()))
}

// SimulatedMemory is a contiguous run of frames backed by Go memory, starting
// at physical page Base.
type SimulatedMemory struct {
	base  riscv.PhysPageNum
	words []uint64
}

// NewSimulatedMemory returns frames [base, base+frames) of simulated RAM.
func NewSimulatedMemory(base riscv.PhysPageNum, frames int) *SimulatedMemory {
	return &SimulatedMemory{
		base:  base,
		words: make([]uint64, frames*riscv.PageSize/8),
	}
}

// Base returns the first frame.
func (m *SimulatedMemory) Base() riscv.PhysPageNum {
	return m.base
}

// End returns the frame after the last one.
func (m *SimulatedMemory) End() riscv.PhysPageNum {
	return m.base + riscv.PhysPageNum(len(m.words)*8/riscv.PageSize)
}

// Page implements PhysicalMemory.Page.
func (m *SimulatedMemory) Page(ppn riscv.PhysPageNum) []byte {
	if ppn < m.base || ppn >= m.End() {
		panic(fmt.Sprintf("%v outside simulated memory [%v, %v)", ppn, m.base, m.End()))
	}
	off := int(ppn-m.base) * riscv.PageSize / 8
	return wordsAsPage(m.words[off : off+riscv.PageSize/8])
}
