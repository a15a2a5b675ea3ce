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
package backend

import (
	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/common/blockdev"
	"github.com/mongoose-os/fbflash/common/gpt"
)

// Table is an open partition table. Changes made through its entries are
// written out by Close.
type Table interface {
	// NthEntry returns the n-th (zero-based) entry of the given type, or nil.
	NthEntry(typ uuid.UUID, n int) TableEntry
	Close() error
}

type TableEntry interface {
	StartLBA() uint64
	SizeLBA() uint64

	Priority() int
	Tries() int
	Successful() bool

	// MarkActive makes the entry the preferred, known-good boot target.
	MarkActive()
	// MarkInvalid makes the entry unbootable.
	MarkInvalid()
}

// OpenGPT is the default Config.OpenTable.
func OpenGPT(dev blockdev.Device) (Table, error) {
	t, err := gpt.Open(dev)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &gptTable{t: t}, nil
}

type gptTable struct {
	t *gpt.Table
}

func (gt *gptTable) NthEntry(typ uuid.UUID, n int) TableEntry {
	e := gt.t.NthEntry(typ, n)
	if e == nil {
		return nil
	}
	return &gptEntry{t: gt.t, e: e}
}

func (gt *gptTable) Close() error {
	return gt.t.Close()
}

type gptEntry struct {
	t *gpt.Table
	e *gpt.Entry
}

func (ge *gptEntry) StartLBA() uint64 { return ge.e.FirstLBA }
func (ge *gptEntry) SizeLBA() uint64  { return ge.e.SizeLBA() }
func (ge *gptEntry) Priority() int    { return ge.e.Priority() }
func (ge *gptEntry) Tries() int       { return ge.e.Tries() }
func (ge *gptEntry) Successful() bool { return ge.e.Successful() }

func (ge *gptEntry) MarkActive() {
	ge.t.UpdateKernel(ge.e, gpt.UpdateActive)
}

func (ge *gptEntry) MarkInvalid() {
	ge.t.UpdateKernel(ge.e, gpt.UpdateInvalid)
}
