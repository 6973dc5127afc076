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

//go:build tamago && riscv64
// +build tamago,riscv64

package sbi

// ecall places which in a7, zero in a6 and the arguments in a0-a2, executes
// ecall, and returns a0.
//
//go:nosplit
func ecall(which, arg0, arg1, arg2 uintptr) uintptr

// wfi executes the wait-for-interrupt instruction.
//
//go:nosplit
func wfi()

type native struct{}

// Call implements Firmware.Call.
//
//go:nosplit
func (native) Call(which, arg0, arg1, arg2 uintptr) uintptr {
	return ecall(which, arg0, arg1, arg2)
}

// Idle implements Firmware.Idle.
//
//go:nosplit
func (native) Idle() {
	wfi()
}

// Native returns the firmware reached through the ecall instruction.
func Native() Firmware {
	return native{}
}
