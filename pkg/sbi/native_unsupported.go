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

//go:build !(tamago && riscv64)
// +build !tamago !riscv64

package sbi

import "time"

// unavailable stands in for firmware on architectures without an SBI. Every
// call is refused; a host firmware must be installed to do anything useful.
type unavailable struct{}

// Call implements Firmware.Call.
func (unavailable) Call(which, arg0, arg1, arg2 uintptr) uintptr {
	return ErrNotSupported.Word()
}

// Idle implements Firmware.Idle.
func (unavailable) Idle() {
	time.Sleep(time.Second)
}

// Native returns a firmware that refuses every call.
func Native() Firmware {
	return unavailable{}
}
