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

	"github.com/google/btree"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/riscv"
)

// MemorySet is an address space: a page table and the areas mapped in it.
//
// MemorySet is not safe for concurrent use. The kernel's own set is shared
// through KernelSpace.
type MemorySet struct {
	pt *PageTable

	// areas is ordered by start page.
	areas *btree.BTreeG[*MapArea]
}

func areaLess(a, b *MapArea) bool {
	return a.vpns.Start < b.vpns.Start
}

// NewMemorySet returns an empty address space.
func NewMemorySet(alloc *FrameAllocator) (*MemorySet, error) {
	pt, err := NewPageTable(alloc)
	if err != nil {
		return nil, err
	}
	return &MemorySet{
		pt:    pt,
		areas: btree.NewG(4, areaLess),
	}, nil
}

// Token returns the satp value for this space.
func (ms *MemorySet) Token() uintptr {
	return ms.pt.Token()
}

// PageTable returns the space's page table.
func (ms *MemorySet) PageTable() *PageTable {
	return ms.pt
}

// Translate returns the leaf entry of vpn if it is mapped.
func (ms *MemorySet) Translate(vpn riscv.VirtPageNum) (riscv.PageTableEntry, bool) {
	return ms.pt.Translate(vpn)
}

// conflict returns the area other than self that a would overlap, if any. An
// empty area conflicts with an area that contains its start.
func (ms *MemorySet) conflict(a, self *MapArea) *MapArea {
	var found *MapArea
	ms.areas.DescendLessOrEqual(a, func(prev *MapArea) bool {
		if prev == self {
			return true
		}
		if prev.vpns.Start == a.vpns.Start || prev.vpns.End > a.vpns.Start {
			found = prev
		}
		return false
	})
	if found != nil {
		return found
	}
	ms.areas.AscendGreaterOrEqual(a, func(next *MapArea) bool {
		if next == self {
			return true
		}
		if next.vpns.Start < a.vpns.End {
			found = next
		}
		return false
	})
	return found
}

// push maps a and copies data into it, starting offset bytes into its first
// page.
func (ms *MemorySet) push(a *MapArea, data []byte, offset uint64) error {
	if c := ms.conflict(a, nil); c != nil {
		return fmt.Errorf("area %v overlaps %v: %w", a.vpns, c.vpns, kerr.EEXIST)
	}
	if err := a.mapAll(ms.pt); err != nil {
		return err
	}
	if len(data) > 0 {
		a.copyData(data, offset)
	}
	ms.areas.ReplaceOrInsert(a)
	log.Debugf("Mapped %v %v area %v", a.perm, a.typ, a.vpns)
	return nil
}

// InsertFramedArea maps [start, end) onto fresh frames with perm. Either the
// whole range is mapped or nothing is.
func (ms *MemorySet) InsertFramedArea(start, end riscv.VirtAddr, perm MapPermission) error {
	return ms.push(newMapArea(start, end, Framed, perm), nil, 0)
}

// InsertIdenticalArea maps [start, end) onto the frames with the same
// numbers.
func (ms *MemorySet) InsertIdenticalArea(start, end riscv.VirtAddr, perm MapPermission) error {
	return ms.push(newMapArea(start, end, Identical, perm), nil, 0)
}

// MapTrampoline maps the trampoline page onto the frame holding the trap
// entry code. It is not an area and is never released with the space.
func (ms *MemorySet) MapTrampoline(ppn riscv.PhysPageNum) error {
	return ms.pt.Map(riscv.NewVirtAddr(Trampoline).Floor(), ppn, riscv.PTERead|riscv.PTEExecute)
}

func (ms *MemorySet) findArea(start riscv.VirtPageNum) (*MapArea, bool) {
	return ms.areas.Get(&MapArea{vpns: riscv.VPNRange{Start: start}})
}

// RemoveAreaWithStart unmaps and frees the area starting at page start.
func (ms *MemorySet) RemoveAreaWithStart(start riscv.VirtPageNum) bool {
	a, ok := ms.findArea(start)
	if !ok {
		return false
	}
	a.unmapAll(ms.pt)
	ms.areas.Delete(a)
	log.Debugf("Unmapped area %v", a.vpns)
	return true
}

// ShrinkTo moves the end of the area starting at start down to newEnd,
// unmapping the pages above it. It fails if there is no such area or newEnd
// lies below the area's start.
func (ms *MemorySet) ShrinkTo(start, newEnd riscv.VirtAddr) bool {
	a, ok := ms.findArea(start.Floor())
	if !ok || newEnd.Ceil() < a.vpns.Start {
		return false
	}
	a.shrinkTo(ms.pt, newEnd.Ceil())
	return true
}

// AppendTo moves the end of the area starting at start up to newEnd. The new
// pages are zero filled. Either every new page is mapped or, on failure, none
// are and the frame usage is unchanged.
func (ms *MemorySet) AppendTo(start, newEnd riscv.VirtAddr) bool {
	a, ok := ms.findArea(start.Floor())
	if !ok {
		return false
	}
	end := newEnd.Ceil()
	if end > a.vpns.End {
		if c := ms.conflict(&MapArea{vpns: riscv.VPNRange{Start: a.vpns.End, End: end}}, a); c != nil {
			log.Debugf("Growing %v to %v would overlap %v", a.vpns, end, c.vpns)
			return false
		}
	}
	if err := a.appendTo(ms.pt, end); err != nil {
		log.Debugf("Growing %v to %v: %v", a.vpns, end, err)
		return false
	}
	return true
}

// AreaInfo describes a mapped area.
type AreaInfo struct {
	Range  riscv.VPNRange
	Type   MapType
	Perm   MapPermission
	Frames int
}

// Areas returns the mapped areas in address order.
func (ms *MemorySet) Areas() []AreaInfo {
	var infos []AreaInfo
	ms.areas.Ascend(func(a *MapArea) bool {
		infos = append(infos, AreaInfo{
			Range:  a.vpns,
			Type:   a.typ,
			Perm:   a.perm,
			Frames: len(a.frames),
		})
		return true
	})
	return infos
}

// Release unmaps every area and frees all frames owned by the space. The
// space must not be used afterwards.
func (ms *MemorySet) Release() {
	ms.areas.Ascend(func(a *MapArea) bool {
		a.unmapAll(ms.pt)
		return true
	})
	ms.areas.Clear(false)
	ms.pt.Release()
}
