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

package timer

import "time"

// boot is the simulated power-on time.
var boot = time.Now()

// readTime derives a time CSR value from the host's monotonic clock.
func readTime() uint64 {
	return uint64(time.Since(boot) / (time.Second / ClockFreq))
}
