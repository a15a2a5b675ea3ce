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
	"encoding/binary"
	"io"
	"sort"

	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/common/blockdev"
)

// journal is the partgpt.Device the table library works on. Reads go to the
// device, writes are kept in memory until commit.
type journal struct {
	dev    blockdev.Device
	staged map[uint64][]byte
}

func newJournal(dev blockdev.Device) *journal {
	return &journal{dev: dev, staged: map[uint64][]byte{}}
}

func (j *journal) GetSectorSize() uint      { return uint(j.dev.BlockSize()) }
func (j *journal) GetSize() uint64          { return j.dev.BlockCount() * j.dev.BlockSize() }
func (j *journal) GetIOSize() (uint, error) { return uint(j.dev.BlockSize()), nil }

// Sync is a no-op, nothing reaches the device before commit.
func (j *journal) Sync() error { return nil }

// block returns the current contents of a block, staged or on the device.
func (j *journal) block(lba uint64) ([]byte, error) {
	if b, ok := j.staged[lba]; ok {
		return b, nil
	}
	buf := make([]byte, j.dev.BlockSize())
	n, err := j.dev.ReadBlocks(lba, 1, buf)
	if err != nil {
		return nil, errors.Annotatef(err, "read %d", lba)
	}
	if n != 1 {
		return nil, errors.Errorf("short read at %d", lba)
	}
	return buf, nil
}

func (j *journal) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.NotValidf("offset %d", off)
	}
	bs, size := j.dev.BlockSize(), j.GetSize()
	done := 0
	for done < len(p) {
		pos := uint64(off) + uint64(done)
		if pos >= size {
			return done, io.EOF
		}
		b, err := j.block(pos / bs)
		if err != nil {
			return done, errors.Trace(err)
		}
		done += copy(p[done:], b[pos%bs:])
	}
	return done, nil
}

func (j *journal) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.NotValidf("offset %d", off)
	}
	bs, size := j.dev.BlockSize(), j.GetSize()
	done := 0
	for done < len(p) {
		pos := uint64(off) + uint64(done)
		if pos >= size {
			return done, errors.Errorf("%s: write past the end at %d", j.dev.Name(), pos)
		}
		lba := pos / bs
		b, err := j.block(lba)
		if err != nil {
			return done, errors.Trace(err)
		}
		done += copy(b[pos%bs:], p[done:])
		j.staged[lba] = b
	}
	return done, nil
}

// primaryEntriesLBA returns the entry array location recorded in the
// primary header, if there is one.
func (j *journal) primaryEntriesLBA() (uint64, bool) {
	b, err := j.block(primaryHeaderLBA)
	if err != nil || len(b) < 80 || string(b[0:8]) != Signature {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b[72:80]), true
}

// rank orders staged blocks for commit: everything in the first half of
// the device except the primary header, the primary header, everything else
// except the backup header, the backup header.
func (j *journal) rank(lba uint64) int {
	last := j.dev.BlockCount() - 1
	switch {
	case lba == primaryHeaderLBA:
		return 1
	case lba == last:
		return 3
	case lba < last/2:
		return 0
	default:
		return 2
	}
}

// commit writes the staged blocks to the device. A header is written only
// after the entries it covers, and the backup copy only after the primary
// one, so whichever write fails, one copy on the device verifies.
func (j *journal) commit() error {
	lbas := make([]uint64, 0, len(j.staged))
	for lba := range j.staged {
		lbas = append(lbas, lba)
	}
	sort.Slice(lbas, func(a, b int) bool {
		ra, rb := j.rank(lbas[a]), j.rank(lbas[b])
		if ra != rb {
			return ra < rb
		}
		return lbas[a] < lbas[b]
	})
	bs := j.dev.BlockSize()
	for i := 0; i < len(lbas); {
		// Runs of consecutive blocks of the same rank go in one write.
		k := i + 1
		for k < len(lbas) && lbas[k] == lbas[k-1]+1 && j.rank(lbas[k]) == j.rank(lbas[i]) {
			k++
		}
		count := uint64(k - i)
		buf := make([]byte, 0, count*bs)
		for _, lba := range lbas[i:k] {
			buf = append(buf, j.staged[lba]...)
		}
		n, err := j.dev.WriteBlocks(lbas[i], count, buf)
		if err != nil {
			return errors.Annotatef(err, "write %d@%d", count, lbas[i])
		}
		if n != count {
			return errors.Errorf("short write %d@%d: %d", count, lbas[i], n)
		}
		for _, lba := range lbas[i:k] {
			delete(j.staged, lba)
		}
		i = k
	}
	if s, ok := j.dev.(interface{ Sync() error }); ok {
		return errors.Trace(s.Sync())
	}
	return nil
}
