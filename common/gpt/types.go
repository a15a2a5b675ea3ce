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

import (
	"github.com/google/uuid"
	partgpt "github.com/siderolabs/go-blockdevice/v2/partitioning/gpt"
)

// Well-known partition type GUIDs.
var (
	TypeUnused         = uuid.Nil
	TypeChromeOSKernel = uuid.MustParse("fe3a2a5d-4f32-41a7-b725-accc3285a309")
	TypeChromeOSRootFS = uuid.MustParse("3cb8e202-3b7e-47dd-8a3c-7ff2a13cfcec")
	TypeLinuxFS        = uuid.MustParse("0fc63daf-8483-4772-8e79-3d69d8477de4")
	TypeBasicData      = uuid.MustParse("ebd0a0a2-b9e5-4433-87c0-68b6b72699c7")
	TypeEFISystem      = uuid.MustParse("c12a7328-f81f-11d2-ba4b-00a0c93ec93b")
)

// ChromeOS kernel entries keep their boot state in the upper attribute bits.
const (
	attrPriorityOffset   = 48
	attrPriorityMask     = 0xf << attrPriorityOffset
	attrTriesOffset      = 52
	attrTriesMask        = 0xf << attrTriesOffset
	attrSuccessfulOffset = 56
	attrSuccessfulMask   = 1 << attrSuccessfulOffset

	MaxPriority = 15
	MaxTries    = 15
)

// Entry is one used partition entry. Changes to it go to the table it was
// taken from.
type Entry struct {
	*partgpt.Partition
}

// SizeLBA is the number of blocks the entry spans, ends inclusive.
func (e *Entry) SizeLBA() uint64 {
	if e.LastLBA < e.FirstLBA {
		return 0
	}
	return e.LastLBA - e.FirstLBA + 1
}

func (e *Entry) Priority() int {
	return int((e.Flags & attrPriorityMask) >> attrPriorityOffset)
}

func (e *Entry) SetPriority(p int) {
	e.Flags &^= attrPriorityMask
	e.Flags |= (uint64(p) << attrPriorityOffset) & attrPriorityMask
}

func (e *Entry) Tries() int {
	return int((e.Flags & attrTriesMask) >> attrTriesOffset)
}

func (e *Entry) SetTries(n int) {
	e.Flags &^= attrTriesMask
	e.Flags |= (uint64(n) << attrTriesOffset) & attrTriesMask
}

func (e *Entry) Successful() bool {
	return e.Flags&attrSuccessfulMask != 0
}

func (e *Entry) SetSuccessful(s bool) {
	e.Flags &^= attrSuccessfulMask
	if s {
		e.Flags |= attrSuccessfulMask
	}
}
