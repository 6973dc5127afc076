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

	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/riscv"
)

// MapPermission is the access granted by a mapping. Its bits coincide with
// the corresponding PTE flags.
type MapPermission uint8

// Permissions.
const (
	PermRead    = MapPermission(riscv.PTERead)
	PermWrite   = MapPermission(riscv.PTEWrite)
	PermExecute = MapPermission(riscv.PTEExecute)
	PermUser    = MapPermission(riscv.PTEUser)
)

// PTEFlags returns the leaf flags for p.
func (p MapPermission) PTEFlags() riscv.PTEFlags {
	return riscv.PTEFlags(p)
}

// String implements fmt.Stringer.
func (p MapPermission) String() string {
	b := []byte("----")
	for i, f := range []struct {
		perm MapPermission
		c    byte
	}{{PermRead, 'r'}, {PermWrite, 'w'}, {PermExecute, 'x'}, {PermUser, 'u'}} {
		if p&f.perm != 0 {
			b[i] = f.c
		}
	}
	return string(b)
}

// MapType selects how a MapArea obtains its frames.
type MapType int

const (
	// Identical maps every page onto the frame with the same number.
	Identical MapType = iota

	// Framed maps every page onto a freshly allocated frame owned by the
	// area.
	Framed
)

// String implements fmt.Stringer.
func (t MapType) String() string {
	switch t {
	case Identical:
		return "identical"
	case Framed:
		return "framed"
	default:
		return fmt.Sprintf("MapType(%d)", int(t))
	}
}

// MapArea is a contiguous range of pages with a single permission.
type MapArea struct {
	vpns   riscv.VPNRange
	frames map[riscv.VirtPageNum]*Frame
	typ    MapType
	perm   MapPermission
}

func newMapArea(start, end riscv.VirtAddr, typ MapType, perm MapPermission) *MapArea {
	return &MapArea{
		vpns:   riscv.VPNRange{Start: start.Floor(), End: end.Ceil()},
		frames: make(map[riscv.VirtPageNum]*Frame),
		typ:    typ,
		perm:   perm,
	}
}

// Range returns the pages covered by the area.
func (a *MapArea) Range() riscv.VPNRange {
	return a.vpns
}

func (a *MapArea) mapOne(pt *PageTable, vpn riscv.VirtPageNum) error {
	var ppn riscv.PhysPageNum
	switch a.typ {
	case Identical:
		ppn = riscv.PhysPageNum(vpn)
	case Framed:
		f, err := pt.alloc.Alloc()
		if err != nil {
			return err
		}
		ppn = f.PPN
		a.frames[vpn] = f
	}
	if err := pt.Map(vpn, ppn, a.perm.PTEFlags()); err != nil {
		if f, ok := a.frames[vpn]; ok {
			f.Release()
			delete(a.frames, vpn)
		}
		return err
	}
	return nil
}

func (a *MapArea) unmapOne(pt *PageTable, vpn riscv.VirtPageNum) {
	if f, ok := a.frames[vpn]; ok {
		f.Release()
		delete(a.frames, vpn)
	}
	pt.Unmap(vpn)
}

// mapRange maps every page of r or, on error, none of them. Directory pages
// allocated on the way are freed again on error.
func (a *MapArea) mapRange(pt *PageTable, r riscv.VPNRange) error {
	m := pt.mark()
	for vpn := r.Start; vpn < r.End; vpn++ {
		if err := a.mapOne(pt, vpn); err != nil {
			for back := r.Start; back < vpn; back++ {
				a.unmapOne(pt, back)
			}
			pt.trimTo(m)
			return fmt.Errorf("mapping %v of %v: %w", vpn, r, err)
		}
	}
	return nil
}

func (a *MapArea) mapAll(pt *PageTable) error {
	return a.mapRange(pt, a.vpns)
}

func (a *MapArea) unmapAll(pt *PageTable) {
	for vpn := a.vpns.Start; vpn < a.vpns.End; vpn++ {
		a.unmapOne(pt, vpn)
	}
}

// shrinkTo unmaps the pages at and above newEnd.
func (a *MapArea) shrinkTo(pt *PageTable, newEnd riscv.VirtPageNum) {
	for vpn := newEnd; vpn < a.vpns.End; vpn++ {
		a.unmapOne(pt, vpn)
	}
	if newEnd < a.vpns.End {
		a.vpns.End = newEnd
	}
}

// appendTo maps the pages between the current end and newEnd.
func (a *MapArea) appendTo(pt *PageTable, newEnd riscv.VirtPageNum) error {
	if newEnd <= a.vpns.End {
		return nil
	}
	if err := a.mapRange(pt, riscv.VPNRange{Start: a.vpns.End, End: newEnd}); err != nil {
		return err
	}
	log.Debugf("Area %v grown to %v", a.vpns, newEnd)
	a.vpns.End = newEnd
	return nil
}

// copyData copies data into the area's frames, starting offset bytes into
// the first page.
func (a *MapArea) copyData(data []byte, offset uint64) {
	if a.typ != Framed {
		panic(fmt.Sprintf("copying data into %v area %v", a.typ, a.vpns))
	}
	for vpn := a.vpns.Start; len(data) > 0 && vpn < a.vpns.End; vpn++ {
		n := copy(a.frames[vpn].Bytes()[offset:], data)
		data = data[n:]
		offset = 0
	}
	if len(data) > 0 {
		panic(fmt.Sprintf("%d bytes of data left past the end of %v", len(data), a.vpns))
	}
}
