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

package task

import (
	"bytes"
	"debug/elf"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rvos.dev/rvos/pkg/arch"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/mm/mmtest"
	"rvos.dev/rvos/pkg/riscv"
)

const (
	trapReturn  = 0x80201000
	trapHandler = 0x80202000
	entryPoint  = 0x10000

	// The image below ends at 0x11000; the stack follows a guard page.
	wantUserSP = 0x12000 + mm.UserStackSize
)

func appImage() []byte {
	return mmtest.BuildELF(entryPoint, mmtest.Segment{
		Vaddr: entryPoint,
		Data:  bytes.Repeat([]byte{0x13, 0, 0, 0}, 16),
		Flags: elf.PF_R | elf.PF_X,
	})
}

func newTestManager(t *testing.T, frames int) (*Manager, *mmtest.Env) {
	t.Helper()
	log.SetTestTarget(t)
	env := mmtest.NewEnv(t, frames)
	return NewManager(Config{
		Loader:      ELFLoader{Frames: env.Frames, Trampoline: env.Trampoline},
		KernelSpace: env.Kernel,
		Memory:      env.Memory,
		TrapReturn:  trapReturn,
		TrapHandler: trapHandler,
	}), env
}

func TestNewTask(t *testing.T) {
	m, env := newTestManager(t, 128)
	tcb, err := m.New(appImage(), 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tcb.Status() != Ready {
		t.Errorf("Status() = %v, want Ready", tcb.Status())
	}
	if tcb.HeapBottom() != wantUserSP || tcb.ProgramBrk() != wantUserSP || tcb.BaseSize() != wantUserSP {
		t.Errorf("heap bottom %#x, brk %#x, base size %#x; want all %#x", tcb.HeapBottom(), tcb.ProgramBrk(), tcb.BaseSize(), wantUserSP)
	}
	if m.Status(3) != Ready {
		t.Errorf("Manager.Status(3) = %v, want Ready", m.Status(3))
	}

	bottom, top := mm.KernelStackPosition(3)
	if b, tp := tcb.KernelStack(); b != bottom || tp != top {
		t.Errorf("KernelStack() = [%#x, %#x), want [%#x, %#x)", b, tp, bottom, top)
	}
	if diff := cmp.Diff(arch.GotoTrapReturn(top, trapReturn), *tcb.TaskContext()); diff != "" {
		t.Errorf("task context mismatch (-want +got):\n%s", diff)
	}

	// The kernel stack is mapped read-write, kernel only.
	var pte riscv.PageTableEntry
	var ok bool
	env.Kernel.Do(func(ks *mm.MemorySet) error {
		pte, ok = ks.Translate(riscv.NewVirtAddr(bottom).Floor())
		return nil
	})
	if !ok || !pte.Readable() || !pte.Writable() || pte.User() {
		t.Errorf("kernel stack mapping = %v, %v; want rw kernel only", pte.Flags(), ok)
	}

	if got, want := tcb.UserToken(), tcb.Space().Token(); got != want || got>>60 != riscv.SatpModeSv39 {
		t.Errorf("UserToken() = %#x, want Sv39 token %#x", got, want)
	}
	trapPTE, ok := tcb.Space().Translate(riscv.NewVirtAddr(mm.TrapContextBase).Floor())
	if !ok || trapPTE.PPN() != tcb.TrapContextPPN() {
		t.Errorf("trap context frame = %v, want %v", tcb.TrapContextPPN(), trapPTE.PPN())
	}
}

func TestTrapContextImage(t *testing.T) {
	m, env := newTestManager(t, 128)
	tcb, err := m.New(appImage(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, top := mm.KernelStackPosition(0)
	want := arch.AppInitContext(entryPoint, wantUserSP, env.Kernel.Token(), top, trapHandler)
	if diff := cmp.Diff(want, *tcb.TrapContext()); diff != "" {
		t.Errorf("TrapContext() mismatch (-want +got):\n%s", diff)
	}

	// The frame holds exactly the serialized image.
	img := make([]byte, want.SizeBytes())
	want.MarshalBytes(img)
	frame := env.Memory.Page(tcb.TrapContextPPN())
	if !bytes.Equal(frame[:len(img)], img) {
		t.Errorf("trap context frame = %x, want %x", frame[:len(img)], img)
	}

	// And reading it back yields the same context.
	var back arch.TrapContext
	back.UnmarshalBytes(frame)
	if diff := cmp.Diff(want, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTwoSlots(t *testing.T) {
	m, _ := newTestManager(t, 128)
	tasks, err := m.Populate([][]byte{appImage(), appImage()})
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Populate returned %d tasks, want 2", len(tasks))
	}
	b0, t0 := tasks[0].KernelStack()
	b1, t1 := tasks[1].KernelStack()
	if b0 < t1 && b1 < t0 {
		t.Errorf("kernel stacks [%#x, %#x) and [%#x, %#x) overlap", b0, t0, b1, t1)
	}
	for i, tcb := range tasks {
		if tcb.Slot() != i || tcb.Status() != Ready {
			t.Errorf("task %d = %v, want slot %d Ready", i, tcb, i)
		}
	}
	if tasks[0].UserToken() == tasks[1].UserToken() {
		t.Errorf("tasks share an address space")
	}
	if tasks[0].TrapContextPPN() == tasks[1].TrapContextPPN() {
		t.Errorf("tasks share a trap context frame")
	}
}

func TestPopulateFailureDiscards(t *testing.T) {
	m, env := newTestManager(t, 128)
	// Warm the kernel page table so its directories are not counted.
	if _, err := m.Populate([][]byte{appImage()}); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	tcb, _ := m.Task(0)
	tcb.Dispatch()
	if err := m.Retire(tcb); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	free := env.Frames.Free()

	if _, err := m.Populate([][]byte{appImage(), []byte("not an executable")}); !errors.Is(err, kerr.ENOEXEC) {
		t.Fatalf("Populate = %v, want ENOEXEC", err)
	}
	if m.Status(0) != UnInit || m.Status(1) != UnInit {
		t.Errorf("slots after failed Populate = %v, %v; want UnInit", m.Status(0), m.Status(1))
	}
	if got := env.Frames.Free(); got != free {
		t.Errorf("failed Populate leaked %d frames", free-got)
	}
}

func TestNewRejectsSlot(t *testing.T) {
	m, _ := newTestManager(t, 128)
	for _, slot := range []int{-1, mm.MaxSlots} {
		if _, err := m.New(appImage(), slot); !errors.Is(err, kerr.EINVAL) {
			t.Errorf("New(slot %d) = %v, want EINVAL", slot, err)
		}
	}
	if _, err := m.New(appImage(), 1); err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.New(appImage(), 1); !errors.Is(err, kerr.EBUSY) {
		t.Errorf("New on an occupied slot = %v, want EBUSY", err)
	}
}

func TestNewFailureLeavesNothing(t *testing.T) {
	m, env := newTestManager(t, 128)
	free := env.Frames.Free()

	if _, err := m.New([]byte{0x7f, 'E', 'L', 'F'}, 0); !errors.Is(err, kerr.ENOEXEC) {
		t.Fatalf("New(truncated ELF) = %v, want ENOEXEC", err)
	}
	if got := env.Frames.Free(); got != free {
		t.Errorf("failed New leaked %d frames", free-got)
	}
	if m.Status(0) != UnInit {
		t.Errorf("slot 0 = %v after failed New, want UnInit", m.Status(0))
	}

	// Occupy the kernel stack range so the mapping step fails after the
	// address space has been built.
	bottom, top := mm.KernelStackPosition(0)
	if err := env.Kernel.Do(func(ks *mm.MemorySet) error {
		return ks.InsertFramedArea(riscv.NewVirtAddr(bottom), riscv.NewVirtAddr(top), mm.PermRead)
	}); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	free = env.Frames.Free()
	if _, err := m.New(appImage(), 0); !errors.Is(err, kerr.EEXIST) {
		t.Fatalf("New over a mapped kernel stack = %v, want EEXIST", err)
	}
	if got := env.Frames.Free(); got != free {
		t.Errorf("failed New leaked %d frames", free-got)
	}
}

func TestChangeProgramBrk(t *testing.T) {
	m, _ := newTestManager(t, 128)
	tcb, err := m.New(appImage(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := tcb.HeapBottom()
	space := tcb.Space()

	old, ok := tcb.ChangeProgramBrk(0x1800)
	if !ok || old != h {
		t.Fatalf("ChangeProgramBrk(0x1800) = %#x, %v; want %#x, true", old, ok, h)
	}
	if tcb.ProgramBrk() != h+0x1800 {
		t.Errorf("ProgramBrk() = %#x, want %#x", tcb.ProgramBrk(), h+0x1800)
	}
	for va := h; va < h+0x1800; va += riscv.PageSize {
		pte, ok := space.Translate(riscv.NewVirtAddr(va).Floor())
		if !ok || !pte.Readable() || !pte.Writable() || !pte.User() {
			t.Errorf("heap page %#x = %v, %v; want rw user", va, pte.Flags(), ok)
		}
	}

	old, ok = tcb.ChangeProgramBrk(-0x1000)
	if !ok || old != h+0x1800 {
		t.Fatalf("ChangeProgramBrk(-0x1000) = %#x, %v; want %#x, true", old, ok, h+0x1800)
	}
	if _, ok := space.Translate(riscv.NewVirtAddr(h + 0x1000).Floor()); ok {
		t.Errorf("page above the new break still mapped")
	}
	if _, ok := space.Translate(riscv.NewVirtAddr(h).Floor()); !ok {
		t.Errorf("page below the new break unmapped")
	}

	// Below the heap bottom.
	before := tcb.ProgramBrk()
	if old, ok := tcb.ChangeProgramBrk(-0x1000); ok {
		t.Errorf("ChangeProgramBrk below heap bottom = %#x, true; want failure", old)
	}
	if tcb.ProgramBrk() != before {
		t.Errorf("ProgramBrk() = %#x after rejected change, want %#x", tcb.ProgramBrk(), before)
	}

	// Back to exactly the bottom.
	if _, ok := tcb.ChangeProgramBrk(-0x800); !ok || tcb.ProgramBrk() != h {
		t.Errorf("ChangeProgramBrk to heap bottom: brk %#x, ok %v", tcb.ProgramBrk(), ok)
	}
	if _, ok := tcb.ChangeProgramBrk(0); !ok {
		t.Errorf("ChangeProgramBrk(0) failed")
	}
}

func TestChangeProgramBrkOutOfMemory(t *testing.T) {
	m, env := newTestManager(t, 128)
	tcb, err := m.New(appImage(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	restore := mmtest.Exhaust(env.Frames)
	defer restore()

	h := tcb.ProgramBrk()
	if _, ok := tcb.ChangeProgramBrk(0x1000); ok {
		t.Fatalf("ChangeProgramBrk succeeded with no free frames")
	}
	if tcb.ProgramBrk() != h {
		t.Errorf("ProgramBrk() = %#x after failed growth, want %#x", tcb.ProgramBrk(), h)
	}
	if _, ok := tcb.Space().Translate(riscv.NewVirtAddr(h).Floor()); ok {
		t.Errorf("failed growth left a mapping")
	}
}

func TestChangeProgramBrkFailureKeepsFrames(t *testing.T) {
	m, env := newTestManager(t, 640)
	tcb, err := m.New(appImage(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := tcb.ProgramBrk()
	free := env.Frames.Free()

	// The heap grows past the 2 MiB boundary before memory runs out.
	if _, ok := tcb.ChangeProgramBrk(0x300000); ok {
		t.Fatalf("ChangeProgramBrk(0x300000) succeeded with %d free frames", free)
	}
	if got := env.Frames.Free(); got != free {
		t.Errorf("Free() = %d after failed growth, want %d", got, free)
	}
	if tcb.ProgramBrk() != h {
		t.Errorf("ProgramBrk() = %#x after failed growth, want %#x", tcb.ProgramBrk(), h)
	}

	if old, ok := tcb.ChangeProgramBrk(0x1000); !ok || old != h {
		t.Errorf("ChangeProgramBrk(0x1000) = %#x, %t, want %#x, true", old, ok, h)
	}
}

// fakeSpace is an AddressSpace that records resize requests.
type fakeSpace struct {
	trapCx  riscv.PhysPageNum
	result  bool
	calls   []string
	starts  []riscv.VirtAddr
	ends    []riscv.VirtAddr
	release int
}

func (s *fakeSpace) Token() uintptr { return riscv.SatpToken(1) }

func (s *fakeSpace) Translate(vpn riscv.VirtPageNum) (riscv.PageTableEntry, bool) {
	if vpn != riscv.NewVirtAddr(mm.TrapContextBase).Floor() {
		return 0, false
	}
	return riscv.NewPageTableEntry(s.trapCx, riscv.PTEValid|riscv.PTERead|riscv.PTEWrite), true
}

func (s *fakeSpace) ShrinkTo(start, newEnd riscv.VirtAddr) bool {
	s.calls = append(s.calls, "shrink")
	s.starts = append(s.starts, start)
	s.ends = append(s.ends, newEnd)
	return s.result
}

func (s *fakeSpace) AppendTo(start, newEnd riscv.VirtAddr) bool {
	s.calls = append(s.calls, "append")
	s.starts = append(s.starts, start)
	s.ends = append(s.ends, newEnd)
	return s.result
}

func (s *fakeSpace) Release() { s.release++ }

type fakeLoader struct {
	space *fakeSpace
	err   error
}

func (l fakeLoader) Load([]byte) (AddressSpace, uintptr, uintptr, error) {
	if l.err != nil {
		return nil, 0, 0, l.err
	}
	return l.space, 0x20000, 0x1000, nil
}

func newFakeManager(t *testing.T, space *fakeSpace) (*Manager, *mmtest.Env) {
	t.Helper()
	env := mmtest.NewEnv(t, 64)
	f, err := env.Frames.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	space.trapCx = f.PPN
	return NewManager(Config{
		Loader:      fakeLoader{space: space},
		KernelSpace: env.Kernel,
		Memory:      env.Memory,
	}), env
}

func TestChangeProgramBrkDirection(t *testing.T) {
	space := &fakeSpace{result: true}
	m, _ := newFakeManager(t, space)
	tcb, err := m.New(nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tcb.ChangeProgramBrk(0x3000)
	tcb.ChangeProgramBrk(0)
	tcb.ChangeProgramBrk(-0x1000)

	if diff := cmp.Diff([]string{"append", "append", "shrink"}, space.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]riscv.VirtAddr{0x20000, 0x20000, 0x20000}, space.starts); diff != "" {
		t.Errorf("starts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]riscv.VirtAddr{0x23000, 0x23000, 0x22000}, space.ends); diff != "" {
		t.Errorf("ends mismatch (-want +got):\n%s", diff)
	}
}

func TestChangeProgramBrkSpaceRefuses(t *testing.T) {
	space := &fakeSpace{}
	m, _ := newFakeManager(t, space)
	tcb, err := m.New(nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, delta := range []int32{0x1000, 0} {
		if old, ok := tcb.ChangeProgramBrk(delta); ok || old != 0 {
			t.Errorf("ChangeProgramBrk(%#x) = %#x, %v; want 0, false", delta, old, ok)
		}
	}
	if tcb.ProgramBrk() != 0x20000 {
		t.Errorf("ProgramBrk() = %#x, want unchanged 0x20000", tcb.ProgramBrk())
	}
}

func TestLoaderError(t *testing.T) {
	env := mmtest.NewEnv(t, 16)
	m := NewManager(Config{
		Loader:      fakeLoader{err: kerr.ENOMEM},
		KernelSpace: env.Kernel,
		Memory:      env.Memory,
	})
	if _, err := m.New(nil, 0); !errors.Is(err, kerr.ENOMEM) {
		t.Errorf("New = %v, want ENOMEM", err)
	}
}

func TestTrapContextUnmapped(t *testing.T) {
	space := &fakeSpace{}
	m, _ := newFakeManager(t, space)
	m.cfg.Loader = loaderFunc(func([]byte) (AddressSpace, uintptr, uintptr, error) {
		return noTrapSpace{space}, 0, 0, nil
	})
	if _, err := m.New(nil, 0); !errors.Is(err, kerr.EFAULT) {
		t.Fatalf("New = %v, want EFAULT", err)
	}
	if space.release != 1 {
		t.Errorf("space released %d times, want 1", space.release)
	}
	if m.Status(0) != UnInit {
		t.Errorf("slot 0 = %v, want UnInit", m.Status(0))
	}
}

type loaderFunc func([]byte) (AddressSpace, uintptr, uintptr, error)

func (f loaderFunc) Load(image []byte) (AddressSpace, uintptr, uintptr, error) {
	return f(image)
}

type noTrapSpace struct {
	*fakeSpace
}

func (noTrapSpace) Translate(riscv.VirtPageNum) (riscv.PageTableEntry, bool) {
	return 0, false
}

func TestRetire(t *testing.T) {
	m, env := newTestManager(t, 128)
	// The first task warms the kernel page table so its directories are
	// not counted.
	tcb, err := m.New(appImage(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Retire(tcb); !errors.Is(err, kerr.EINVAL) {
		t.Errorf("Retire(Ready) = %v, want EINVAL", err)
	}
	tcb.Dispatch()
	if err := m.Retire(tcb); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	free := env.Frames.Free()

	tcb, err = m.New(appImage(), 0)
	if err != nil {
		t.Fatalf("New in a retired slot: %v", err)
	}
	if _, ok := tcb.ChangeProgramBrk(0x2000); !ok {
		t.Fatalf("ChangeProgramBrk failed")
	}
	if err := tcb.Dispatch(); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := tcb.Exit(); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if err := m.Retire(tcb); err != nil {
		t.Fatalf("Retire: %v", err)
	}

	if tcb.Status() != Exited || m.Status(0) != UnInit {
		t.Errorf("status after Retire = %v, slot %v; want Exited, UnInit", tcb.Status(), m.Status(0))
	}
	if tcb.TrapContext() != nil || tcb.UserToken() != 0 || tcb.Space() != nil {
		t.Errorf("retired task still references its address space")
	}
	if _, ok := tcb.ChangeProgramBrk(0x1000); ok {
		t.Errorf("ChangeProgramBrk on a retired task succeeded")
	}
	if got := env.Frames.Free(); got != free {
		t.Errorf("Free() = %d after retirement, want %d", got, free)
	}
	if err := m.Retire(tcb); !errors.Is(err, kerr.EINVAL) {
		t.Errorf("second Retire = %v, want EINVAL", err)
	}
}
