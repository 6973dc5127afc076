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

// Package riscv describes the RISC-V Sv39 address model: physical and virtual
// addresses, page numbers, page table entries and satp tokens.
package riscv

import "fmt"

const (
	// PageShift is the binary log of the system page size.
	PageShift = 12

	// PageSize is the system page size.
	PageSize = 1 << PageShift

	// PhysAddrWidth is the Sv39 physical address width.
	PhysAddrWidth = 56

	// VirtAddrWidth is the Sv39 virtual address width.
	VirtAddrWidth = 39

	// PhysPageNumWidth is the width of a physical page number.
	PhysPageNumWidth = PhysAddrWidth - PageShift

	// VirtPageNumWidth is the width of a virtual page number.
	VirtPageNumWidth = VirtAddrWidth - PageShift
)

// PhysAddr is a physical address.
type PhysAddr uint64

// VirtAddr is a virtual address, truncated to the Sv39 width.
type VirtAddr uint64

// PhysPageNum identifies a physical frame.
type PhysPageNum uint64

// VirtPageNum identifies a virtual page.
type VirtPageNum uint64

// NewPhysAddr truncates v to the physical address width.
func NewPhysAddr(v uintptr) PhysAddr {
	return PhysAddr(uint64(v) & (1<<PhysAddrWidth - 1))
}

// NewVirtAddr truncates v to the Sv39 virtual address width.
//
// Addresses at the top of the 64-bit space (the trampoline and kernel stacks)
// become their 39-bit page table form.
func NewVirtAddr(v uintptr) VirtAddr {
	return VirtAddr(uint64(v) & (1<<VirtAddrWidth - 1))
}

// Floor returns the page containing a.
func (a PhysAddr) Floor() PhysPageNum { return PhysPageNum(a / PageSize) }

// Ceil returns the first page at or above a.
func (a PhysAddr) Ceil() PhysPageNum {
	if a == 0 {
		return 0
	}
	return PhysPageNum((a-1)/PageSize + 1)
}

// PageOffset returns the offset of a within its page.
func (a PhysAddr) PageOffset() uint64 { return uint64(a) & (PageSize - 1) }

// Aligned returns true if a is page aligned.
func (a PhysAddr) Aligned() bool { return a.PageOffset() == 0 }

// String implements fmt.Stringer.String.
func (a PhysAddr) String() string { return fmt.Sprintf("%#x", uint64(a)) }

// Floor returns the page containing a.
func (a VirtAddr) Floor() VirtPageNum { return VirtPageNum(a / PageSize) }

// Ceil returns the first page at or above a.
func (a VirtAddr) Ceil() VirtPageNum {
	if a == 0 {
		return 0
	}
	return VirtPageNum((a-1)/PageSize + 1)
}

// PageOffset returns the offset of a within its page.
func (a VirtAddr) PageOffset() uint64 { return uint64(a) & (PageSize - 1) }

// Aligned returns true if a is page aligned.
func (a VirtAddr) Aligned() bool { return a.PageOffset() == 0 }

// String implements fmt.Stringer.String.
func (a VirtAddr) String() string { return fmt.Sprintf("%#x", uint64(a)) }

// Addr returns the address of the first byte of p.
func (p PhysPageNum) Addr() PhysAddr { return PhysAddr(p << PageShift) }

// String implements fmt.Stringer.String.
func (p PhysPageNum) String() string { return fmt.Sprintf("ppn:%#x", uint64(p)) }

// Addr returns the address of the first byte of v.
func (v VirtPageNum) Addr() VirtAddr { return VirtAddr(v << PageShift) }

// Indexes returns the three 9-bit page table indexes of v, root level first.
func (v VirtPageNum) Indexes() [3]uint {
	var idx [3]uint
	for i := 2; i >= 0; i-- {
		idx[i] = uint(v & 0x1ff)
		v >>= 9
	}
	return idx
}

// String implements fmt.Stringer.String.
func (v VirtPageNum) String() string { return fmt.Sprintf("vpn:%#x", uint64(v)) }

// VPNRange is a half-open range of virtual pages [Start, End).
type VPNRange struct {
	Start VirtPageNum
	End   VirtPageNum
}

// Len returns the number of pages in r.
func (r VPNRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return uint64(r.End - r.Start)
}

// Contains returns true if v lies within r.
func (r VPNRange) Contains(v VirtPageNum) bool {
	return r.Start <= v && v < r.End
}

// Overlaps returns true if r and o share at least one page.
func (r VPNRange) Overlaps(o VPNRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// String implements fmt.Stringer.String.
func (r VPNRange) String() string {
	return fmt.Sprintf("[%#x, %#x)", uint64(r.Start), uint64(r.End))
}
