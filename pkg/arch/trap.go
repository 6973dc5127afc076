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

// Package arch describes the register images the kernel shares with its
// trap entry and context switch assembly.
//
// The layouts of TrapContext and TaskContext are fixed: the assembly indexes
// them by word offset, so fields may not be reordered.
package arch

import (
	"encoding/binary"
	"fmt"
)

// Register indices into TrapContext.X.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegTP   = 4
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA7   = 17
)

// Bits of the sstatus CSR.
const (
	SstatusSIE  uintptr = 1 << 1
	SstatusSPIE uintptr = 1 << 5
	SstatusSPP  uintptr = 1 << 8
)

// wordSize is the size of a native register.
const wordSize = 8

// TrapContextWords is the number of registers in a TrapContext.
const TrapContextWords = 32 + 5

// TrapContextSize is the size of the TrapContext image in bytes.
const TrapContextSize = TrapContextWords * wordSize

// TrapContext is the user register state saved by the trap entry. One lives in
// the trap context page of every user address space.
type TrapContext struct {
	// X holds the general purpose registers x0..x31.
	X [32]uintptr

	// Sstatus is restored into sstatus on return to user mode.
	Sstatus uintptr

	// Sepc is the user program counter.
	Sepc uintptr

	// KernelSatp is the satp token of the kernel space, installed by the
	// trap entry before it jumps to TrapHandler.
	KernelSatp uintptr

	// KernelSP is the top of the task's kernel stack.
	KernelSP uintptr

	// TrapHandler is the kernel address of the trap handler.
	TrapHandler uintptr
}

// AppInitContext returns the trap context with which a new task enters user
// mode for the first time: sepc at the entry point, sp at the user stack and
// the previous privilege mode set to user.
func AppInitContext(entry, sp, kernelSatp, kernelSP, trapHandler uintptr) TrapContext {
	cx := TrapContext{
		Sstatus:     readSstatus() &^ SstatusSPP,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSP:    kernelSP,
		TrapHandler: trapHandler,
	}
	cx.SetStack(sp)
	return cx
}

// Stack returns the user stack pointer.
func (cx *TrapContext) Stack() uintptr {
	return cx.X[RegSP]
}

// SetStack sets the user stack pointer.
func (cx *TrapContext) SetStack(sp uintptr) {
	cx.X[RegSP] = sp
}

// Return returns the value of a0.
func (cx *TrapContext) Return() uintptr {
	return cx.X[RegA0]
}

// SetReturn sets a0.
func (cx *TrapContext) SetReturn(v uintptr) {
	cx.X[RegA0] = v
}

// words returns the context in its in-memory order.
func (cx *TrapContext) words() []*uintptr {
	w := make([]*uintptr, 0, TrapContextWords)
	for i := range cx.X {
		w = append(w, &cx.X[i])
	}
	return append(w, &cx.Sstatus, &cx.Sepc, &cx.KernelSatp, &cx.KernelSP, &cx.TrapHandler)
}

// SizeBytes returns the size of the serialized context.
func (cx *TrapContext) SizeBytes() int {
	return TrapContextSize
}

// MarshalBytes serializes cx into dst, which must be at least SizeBytes long,
// and returns the remainder of dst.
func (cx *TrapContext) MarshalBytes(dst []byte) []byte {
	for _, w := range cx.words() {
		binary.LittleEndian.PutUint64(dst, uint64(*w))
		dst = dst[wordSize:]
	}
	return dst
}

// UnmarshalBytes deserializes src into cx and returns the remainder of src.
func (cx *TrapContext) UnmarshalBytes(src []byte) []byte {
	for _, w := range cx.words() {
		*w = uintptr(binary.LittleEndian.Uint64(src))
		src = src[wordSize:]
	}
	return src
}

// String implements fmt.Stringer.
func (cx *TrapContext) String() string {
	return fmt.Sprintf("sepc=%#x sp=%#x sstatus=%#x ksatp=%#x ksp=%#x handler=%#x",
		cx.Sepc, cx.Stack(), cx.Sstatus, cx.KernelSatp, cx.KernelSP, cx.TrapHandler)
}
