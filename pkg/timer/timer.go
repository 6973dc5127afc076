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

// Package timer reads the RISC-V time CSR and arms the next timer interrupt
// through SBI.
package timer

import "rvos.dev/rvos/pkg/sbi"

const (
	// ClockFreq is the frequency of the time CSR on the QEMU virt machine.
	ClockFreq = 12_500_000

	// TicksPerSec is the number of timer interrupts per second.
	TicksPerSec = 100

	// MSecPerSec is the number of milliseconds per second.
	MSecPerSec = 1000
)

// GetTime returns the current value of the time CSR.
func GetTime() uint64 {
	return readTime()
}

// GetTimeMS returns the current time in milliseconds.
func GetTimeMS() uint64 {
	return readTime() / (ClockFreq / MSecPerSec)
}

// NextTrigger returns the deadline of the tick following now.
func NextTrigger(now uint64) uint64 {
	return now + ClockFreq/TicksPerSec
}

// SetNextTrigger arms the timer for one tick from now.
func SetNextTrigger() {
	sbi.SetTimer(NextTrigger(readTime()))
}
