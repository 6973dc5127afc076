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

package mm

import (
	"fmt"

	"rvos.dev/rvos/pkg/riscv"
)

// EntriesPerPage is the number of entries in a page table page.
const EntriesPerPage = riscv.PageSize / 8

// PTEs is a page table page.
type PTEs [EntriesPerPage]riscv.PageTableEntry

// PageTable is a three level Sv39 page table.
type PageTable struct {
	mem   PhysicalMemory
	alloc *FrameAllocator
	root  riscv.PhysPageNum

	// dirs are the directory pages owned by this table in allocation
	// order, root first. It is empty for tables obtained from FromToken.
	dirs []directory
}

// directory is a directory page and the entry that links it into the tree.
// The root has no parent entry.
type directory struct {
	frame  *Frame
	parent riscv.PhysPageNum
	index  uint
}

// NewPageTable allocates an empty page table.
func NewPageTable(alloc *FrameAllocator) (*PageTable, error) {
	root, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return &PageTable{
		mem:   alloc.Memory(),
		alloc: alloc,
		root:  root.PPN,
		dirs:  []directory{{frame: root}},
	}, nil
}

// FromToken returns a read-only view of the page table installed by satp
// value token. It may only be used for translation.
func FromToken(mem PhysicalMemory, token uintptr) *PageTable {
	return &PageTable{
		mem:  mem,
		root: riscv.SatpRoot(token),
	}
}

// Token returns the satp value that installs this table.
func (pt *PageTable) Token() uintptr {
	return riscv.SatpToken(pt.root)
}

// Root returns the root directory page.
func (pt *PageTable) Root() riscv.PhysPageNum {
	return pt.root
}

func (pt *PageTable) lookupPTEs(ppn riscv.PhysPageNum) *PTEs {
	return ptesOf(pt.mem.Page(ppn))
}

// walk returns the leaf entry for vpn. If alloc is set, missing directories
// are allocated; otherwise a nil entry is returned when one is missing.
func (pt *PageTable) walk(vpn riscv.VirtPageNum, alloc bool) (*riscv.PageTableEntry, error) {
	idx := vpn.Indexes()
	ppn := pt.root
	for level := 0; ; level++ {
		entry := &pt.lookupPTEs(ppn)[idx[level]]
		if level == len(idx)-1 {
			return entry, nil
		}
		if !entry.IsValid() {
			if !alloc {
				return nil, nil
			}
			if pt.alloc == nil {
				panic("page table from token is read-only")
			}
			f, err := pt.alloc.Alloc()
			if err != nil {
				return nil, err
			}
			*entry = riscv.NewPageTableEntry(f.PPN, riscv.PTEValid)
			pt.dirs = append(pt.dirs, directory{frame: f, parent: ppn, index: idx[level]})
		}
		ppn = entry.PPN()
	}
}

// Map maps vpn to ppn with flags. The page must not already be mapped.
func (pt *PageTable) Map(vpn riscv.VirtPageNum, ppn riscv.PhysPageNum, flags riscv.PTEFlags) error {
	entry, err := pt.walk(vpn, true)
	if err != nil {
		return err
	}
	if entry.IsValid() {
		panic(fmt.Sprintf("%v is mapped before mapping", vpn))
	}
	*entry = riscv.NewPageTableEntry(ppn, flags|riscv.PTEValid)
	return nil
}

// Unmap removes the mapping of vpn, which must be mapped.
func (pt *PageTable) Unmap(vpn riscv.VirtPageNum) {
	entry, _ := pt.walk(vpn, false)
	if entry == nil || !entry.IsValid() {
		panic(fmt.Sprintf("%v is invalid before unmapping", vpn))
	}
	*entry = 0
}

// Translate returns the leaf entry of vpn if it is mapped.
func (pt *PageTable) Translate(vpn riscv.VirtPageNum) (riscv.PageTableEntry, bool) {
	entry, _ := pt.walk(vpn, false)
	if entry == nil || !entry.IsValid() {
		return 0, false
	}
	return *entry, true
}

// TranslateAddr returns the physical address va maps to.
func (pt *PageTable) TranslateAddr(va riscv.VirtAddr) (riscv.PhysAddr, bool) {
	entry, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return entry.PPN().Addr() + riscv.PhysAddr(va.PageOffset()), true
}

// Release frees the directory pages. Leaf frames belong to the map areas and
// are not touched.
func (pt *PageTable) Release() {
	for _, d := range pt.dirs {
		d.frame.Release()
	}
	pt.dirs = nil
}

// mark returns a point that trimTo can roll the directory pages back to.
func (pt *PageTable) mark() int {
	return len(pt.dirs)
}

// trimTo unlinks and frees the directory pages allocated since m. Every leaf
// mapped through them must already be unmapped.
func (pt *PageTable) trimTo(m int) {
	for i := len(pt.dirs) - 1; i >= m; i-- {
		d := pt.dirs[i]
		pt.lookupPTEs(d.parent)[d.index] = 0
		d.frame.Release()
	}
	pt.dirs = pt.dirs[:m]
}
