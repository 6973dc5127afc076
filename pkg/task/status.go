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
)

// TaskStatus is the scheduling state of a task.
type TaskStatus int

const (
	// UnInit is the state of a slot with no task in it.
	UnInit TaskStatus = iota

	// Ready tasks may be dispatched.
	Ready

	// Running is the state of the task on the hart.
	Running

	// Exited tasks never run again.
	Exited
)

// String implements fmt.Stringer.
func (s TaskStatus) String() string {
	switch s {
	case UnInit:
		return "UnInit"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Exited:
		return "Exited"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TaskStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// validTransitions lists the permitted successors of every status.
var validTransitions = map[TaskStatus][]TaskStatus{
	UnInit:  {Ready},
	Ready:   {Running},
	Running: {Ready, Exited},
}

// CanTransition returns true if a task may move from status from to status to.
func CanTransition(from, to TaskStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
