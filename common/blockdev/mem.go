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
package blockdev

import (
	"fmt"

	"github.com/juju/errors"
)

type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
	OpFill
	OpErase
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFill:
		return "fill"
	case OpErase:
		return "erase"
	default:
		return fmt.Sprintf("???(%d)", int(k))
	}
}

// Op is a record of one device call.
type Op struct {
	Kind    OpKind
	LBA     uint64
	Count   uint64
	Pattern uint32
}

// Mem is a RAM-backed device. It records every call, which makes it the
// device of choice in tests.
type Mem struct {
	name      string
	blockSize uint64
	data      []byte
	removable bool
	ops       []Op

	// WriteLimit, if non-zero, caps the number of blocks a single write or
	// fill call processes; the call then reports a short count.
	WriteLimit uint64
}

func NewMem(name string, blockSize, blockCount uint64) *Mem {
	return &Mem{
		name:      name,
		blockSize: blockSize,
		data:      make([]byte, blockSize*blockCount),
	}
}

// NewRemovableMem returns a Mem that reports itself as removable.
func NewRemovableMem(name string, blockSize, blockCount uint64) *Mem {
	m := NewMem(name, blockSize, blockCount)
	m.removable = true
	return m
}

func (m *Mem) Name() string       { return m.name }
func (m *Mem) BlockSize() uint64  { return m.blockSize }
func (m *Mem) BlockCount() uint64 { return uint64(len(m.data)) / m.blockSize }
func (m *Mem) Removable() bool    { return m.removable }

// Bytes returns the backing store. Modifications are visible to the device.
func (m *Mem) Bytes() []byte { return m.data }

// Ops returns the calls made since creation or the last ResetOps.
func (m *Mem) Ops() []Op {
	return append([]Op(nil), m.ops...)
}

// OpsOfKind returns the recorded calls of one kind.
func (m *Mem) OpsOfKind(kind OpKind) []Op {
	var res []Op
	for _, op := range m.ops {
		if op.Kind == kind {
			res = append(res, op)
		}
	}
	return res
}

func (m *Mem) ResetOps() { m.ops = nil }

func (m *Mem) limit(count uint64) uint64 {
	if m.WriteLimit > 0 && count > m.WriteLimit {
		return m.WriteLimit
	}
	return count
}

func (m *Mem) ReadBlocks(lba, count uint64, buf []byte) (uint64, error) {
	m.ops = append(m.ops, Op{Kind: OpRead, LBA: lba, Count: count})
	if err := checkRange(m, lba, count, buf); err != nil {
		return 0, errors.Trace(err)
	}
	copy(buf, m.data[lba*m.blockSize:(lba+count)*m.blockSize])
	return count, nil
}

func (m *Mem) WriteBlocks(lba, count uint64, buf []byte) (uint64, error) {
	m.ops = append(m.ops, Op{Kind: OpWrite, LBA: lba, Count: count})
	if err := checkRange(m, lba, count, buf); err != nil {
		return 0, errors.Trace(err)
	}
	n := m.limit(count)
	copy(m.data[lba*m.blockSize:(lba+n)*m.blockSize], buf)
	return n, nil
}

func (m *Mem) FillWrite(lba, count uint64, pattern uint32) (uint64, error) {
	m.ops = append(m.ops, Op{Kind: OpFill, LBA: lba, Count: count, Pattern: pattern})
	if err := checkRange(m, lba, count, nil); err != nil {
		return 0, errors.Trace(err)
	}
	n := m.limit(count)
	fillPattern(m.data[lba*m.blockSize:(lba+n)*m.blockSize], pattern)
	return n, nil
}

// ErasableMem adds a native erase to Mem. Erased blocks read back as 0xff.
type ErasableMem struct {
	*Mem

	// EraseLimit, if non-zero, caps the number of blocks one erase covers.
	EraseLimit uint64
}

func NewErasableMem(name string, blockSize, blockCount uint64) *ErasableMem {
	return &ErasableMem{Mem: NewMem(name, blockSize, blockCount)}
}

func (m *ErasableMem) Erase(lba, count uint64) (uint64, error) {
	m.ops = append(m.ops, Op{Kind: OpErase, LBA: lba, Count: count})
	if err := checkRange(m, lba, count, nil); err != nil {
		return 0, errors.Trace(err)
	}
	n := count
	if m.EraseLimit > 0 && n > m.EraseLimit {
		n = m.EraseLimit
	}
	fillPattern(m.data[lba*m.blockSize:(lba+n)*m.blockSize], 0xffffffff)
	return n, nil
}
