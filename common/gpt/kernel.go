//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
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
//
package gpt

import "fmt"

type KernelUpdate int

const (
	// UpdateActive makes the entry the preferred, known-good boot target.
	UpdateActive KernelUpdate = iota
	// UpdateInvalid makes the entry unbootable.
	UpdateInvalid
)

func (u KernelUpdate) String() string {
	switch u {
	case UpdateActive:
		return "active"
	case UpdateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("???(%d)", int(u))
	}
}

// UpdateKernel changes the boot attributes of a kernel entry of this table.
func (t *Table) UpdateKernel(e *Entry, u KernelUpdate) {
	switch u {
	case UpdateActive:
		e.SetPriority(MaxPriority)
		e.SetSuccessful(true)
		e.SetTries(0)
	case UpdateInvalid:
		e.SetPriority(0)
		e.SetSuccessful(false)
		e.SetTries(0)
	default:
		return
	}
	t.modified = true
}
