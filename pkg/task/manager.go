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
	"fmt"
	"sync"

	"rvos.dev/rvos/pkg/arch"
	"rvos.dev/rvos/pkg/cleanup"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
)

// Config describes the environment tasks are built in.
type Config struct {
	// Loader builds task address spaces.
	Loader Loader

	// KernelSpace is the shared kernel space that holds kernel stacks.
	KernelSpace *mm.KernelSpace

	// Memory is the kernel's window onto physical memory.
	Memory mm.PhysicalMemory

	// TrapReturn is the kernel address of the return-to-user routine.
	TrapReturn uintptr

	// TrapHandler is the kernel address of the trap handler.
	TrapHandler uintptr
}

// Manager owns the task slots.
type Manager struct {
	cfg Config

	// mu protects slots.
	mu sync.Mutex

	// slots maps a slot to its live task. Free slots are absent.
	slots map[int]*TaskControlBlock
}

// NewManager returns a Manager with every slot free.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:   cfg,
		slots: make(map[int]*TaskControlBlock),
	}
}

// New builds a task for image in slot. The returned task is Ready, with its
// kernel stack mapped in the kernel space and its trap context set up to
// enter image's entry point.
//
// On failure no part of the task survives. A slot holding a live task fails
// with EBUSY and a slot outside [0, mm.MaxSlots) with EINVAL.
func (m *Manager) New(image []byte, slot int) (*TaskControlBlock, error) {
	if slot < 0 || slot >= mm.MaxSlots {
		return nil, fmt.Errorf("slot %d: %w", slot, kerr.EINVAL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot]; ok {
		return nil, fmt.Errorf("slot %d: %w", slot, kerr.EBUSY)
	}

	space, userSP, entry, err := m.cfg.Loader.Load(image)
	if err != nil {
		return nil, fmt.Errorf("loading image for slot %d: %w", slot, err)
	}
	cu := cleanup.Make(space.Release)
	defer cu.Clean()

	pte, ok := space.Translate(riscv.NewVirtAddr(mm.TrapContextBase).Floor())
	if !ok {
		return nil, fmt.Errorf("slot %d: trap context not mapped: %w", slot, kerr.EFAULT)
	}

	bottom, top := mm.KernelStackPosition(slot)
	var kernelToken uintptr
	if err := m.cfg.KernelSpace.Do(func(ks *mm.MemorySet) error {
		if err := ks.InsertFramedArea(riscv.NewVirtAddr(bottom), riscv.NewVirtAddr(top), mm.PermRead|mm.PermWrite); err != nil {
			return err
		}
		kernelToken = ks.Token()
		return nil
	}); err != nil {
		return nil, fmt.Errorf("mapping kernel stack for slot %d: %w", slot, err)
	}
	cu.Add(func() { m.unmapKernelStack(bottom) })

	t := &TaskControlBlock{
		slot:         slot,
		ctx:          arch.GotoTrapReturn(top, m.cfg.TrapReturn),
		status:       UnInit,
		space:        space,
		mem:          m.cfg.Memory,
		trapCxPPN:    pte.PPN(),
		baseSize:     userSP,
		heapBottom:   userSP,
		programBrk:   userSP,
		kstackBottom: bottom,
		kstackTop:    top,
	}
	*t.TrapContext() = arch.AppInitContext(entry, userSP, kernelToken, top, m.cfg.TrapHandler)
	if err := t.Transition(Ready); err != nil {
		return nil, err
	}

	m.slots[slot] = t
	cu.Release()
	log.Infof("Task %d: entry %#x, user sp %#x, kernel stack [%#x, %#x)", slot, entry, userSP, bottom, top)
	return t, nil
}

func (m *Manager) unmapKernelStack(bottom uintptr) {
	m.cfg.KernelSpace.Do(func(ks *mm.MemorySet) error {
		if !ks.RemoveAreaWithStart(riscv.NewVirtAddr(bottom).Floor()) {
			panic(fmt.Sprintf("kernel stack at %#x not mapped", bottom))
		}
		return nil
	})
}

// Populate builds a task for every image, image i in slot i. If any image
// fails, the tasks built so far are discarded and the error is returned.
func (m *Manager) Populate(images [][]byte) ([]*TaskControlBlock, error) {
	tasks := make([]*TaskControlBlock, 0, len(images))
	cu := cleanup.Make(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, t := range tasks {
			m.release(t)
		}
	})
	defer cu.Clean()
	for i, image := range images {
		t, err := m.New(image, i)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	cu.Release()
	log.Infof("Populated %d tasks", len(tasks))
	return tasks, nil
}

// Retire ends t: a running task is marked Exited, then its address space is
// released, its kernel stack unmapped and its slot freed. Retiring a task
// that is neither running nor exited fails with EINVAL.
func (m *Manager) Retire(t *TaskControlBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slots[t.slot] != t {
		return fmt.Errorf("%v does not own its slot: %w", t, kerr.EINVAL)
	}
	if t.status == Running {
		if err := t.Exit(); err != nil {
			return err
		}
	}
	if t.status != Exited {
		return fmt.Errorf("retiring %v: %w", t, kerr.EINVAL)
	}
	m.release(t)
	log.Infof("Task %d retired", t.slot)
	return nil
}

// release frees everything t owns. m.mu must be held.
func (m *Manager) release(t *TaskControlBlock) {
	t.status = Exited
	t.space.Release()
	t.space = nil
	m.unmapKernelStack(t.kstackBottom)
	delete(m.slots, t.slot)
}

// Task returns the live task in slot, if any.
func (m *Manager) Task(slot int) (*TaskControlBlock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.slots[slot]
	return t, ok
}

// Status returns the status of the task in slot, or UnInit for a free slot.
func (m *Manager) Status(slot int) TaskStatus {
	if t, ok := m.Task(slot); ok {
		return t.status
	}
	return UnInit
}
