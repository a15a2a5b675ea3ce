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
	"hash/crc32"
	"testing"

	"github.com/juju/errors"
	partgpt "github.com/siderolabs/go-blockdevice/v2/partitioning/gpt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/fbflash/common/blockdev"
)

const testBlocks = 32768

func newTestDisk(t *testing.T) *blockdev.Mem {
	t.Helper()
	dev := blockdev.NewMem("emmc", 512, testBlocks)
	tbl, err := New(dev)
	require.NoError(t, err)
	for _, p := range []struct {
		name   string
		blocks uint64
	}{
		{"KERN-A", 64},
		{"ROOT-A", 128},
		{"KERN-B", 64},
		{"data", 256},
	} {
		typ := TypeLinuxFS
		switch p.name[:4] {
		case "KERN":
			typ = TypeChromeOSKernel
		case "ROOT":
			typ = TypeChromeOSRootFS
		}
		e, err := tbl.Add(p.name, typ, p.blocks)
		require.NoError(t, err, p.name)
		assert.Equal(t, p.blocks, e.SizeLBA(), p.name)
	}
	require.NoError(t, tbl.Close())
	dev.ResetOps()
	return dev
}

// cutDevice fails every write after the first left ones.
type cutDevice struct {
	*blockdev.Mem
	left int
}

func (d *cutDevice) WriteBlocks(lba, count uint64, buf []byte) (uint64, error) {
	if d.left == 0 {
		return 0, errors.New("power lost")
	}
	d.left--
	return d.Mem.WriteBlocks(lba, count, buf)
}

func TestKernelAttributes(t *testing.T) {
	e := &Entry{&partgpt.Partition{Flags: 1}}
	e.SetPriority(7)
	e.SetTries(3)
	e.SetSuccessful(true)
	assert.Equal(t, 7, e.Priority())
	assert.Equal(t, 3, e.Tries())
	assert.True(t, e.Successful())
	assert.Equal(t, uint64(1), e.Flags&0xffffffffffff, "low attribute bits must be preserved")

	e.SetPriority(16)
	assert.Equal(t, 0, e.Priority(), "priority is a 4-bit field")
	e.SetSuccessful(false)
	assert.False(t, e.Successful())
	assert.Equal(t, 3, e.Tries())
}

func TestRoundTrip(t *testing.T) {
	dev := newTestDisk(t)
	tbl, err := Open(dev)
	require.NoError(t, err)
	assert.False(t, tbl.Modified())

	var names []string
	for _, e := range tbl.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"KERN-A", "ROOT-A", "KERN-B", "data"}, names)

	kb := tbl.NthEntry(TypeChromeOSKernel, 1)
	require.NotNil(t, kb)
	assert.Equal(t, "KERN-B", kb.Name)
	assert.Equal(t, uint64(64), kb.SizeLBA())
	assert.Nil(t, tbl.NthEntry(TypeChromeOSKernel, 2))
	assert.Nil(t, tbl.NthEntry(TypeChromeOSKernel, -1))
	data := tbl.NthEntry(TypeLinuxFS, 0)
	require.NotNil(t, data)
	assert.Equal(t, "data", data.Name)
	assert.Equal(t, uint64(256), data.SizeLBA())
	require.NoError(t, tbl.Close())
	assert.Error(t, tbl.Close())
	assert.Empty(t, dev.OpsOfKind(blockdev.OpWrite), "an unmodified table is not written")
}

func TestUpdateKernelPersists(t *testing.T) {
	dev := newTestDisk(t)
	tbl, err := Open(dev)
	require.NoError(t, err)
	tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 1), UpdateActive)
	tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 0), UpdateInvalid)
	assert.True(t, tbl.Modified())
	require.NoError(t, tbl.Close())

	tbl, err = Open(dev)
	require.NoError(t, err)
	ka, kb := tbl.NthEntry(TypeChromeOSKernel, 0), tbl.NthEntry(TypeChromeOSKernel, 1)
	assert.Equal(t, MaxPriority, kb.Priority())
	assert.True(t, kb.Successful())
	assert.Equal(t, 0, kb.Tries())
	assert.Equal(t, 0, ka.Priority())
	assert.False(t, ka.Successful())
	require.NoError(t, tbl.Close())
}

func TestBackupFallback(t *testing.T) {
	dev := newTestDisk(t)
	copy(dev.Bytes()[512:520], "XXXXXXXX")

	tbl, err := Open(dev)
	require.NoError(t, err)
	require.NotNil(t, tbl.NthEntry(TypeChromeOSKernel, 1))
	require.NoError(t, tbl.Close())
}

func TestCorruptEntries(t *testing.T) {
	dev := newTestDisk(t)
	// The primary entry CRC no longer matches, the backup copy is used.
	dev.Bytes()[2*512+32] ^= 0xff
	tbl, err := Open(dev)
	require.NoError(t, err)
	require.NotNil(t, tbl.NthEntry(TypeLinuxFS, 0))
	require.NoError(t, tbl.Close())

	copy(dev.Bytes()[512:520], "XXXXXXXX")
	copy(dev.Bytes()[(testBlocks-1)*512:(testBlocks-1)*512+8], "XXXXXXXX")
	_, err = Open(dev)
	assert.Error(t, err)
}

func TestNoTable(t *testing.T) {
	_, err := Open(blockdev.NewMem("blank", 512, 128))
	assert.Error(t, err)
	_, err = Open(blockdev.NewMem("tiny", 512, 2))
	assert.Error(t, err)
}

func TestAddValidation(t *testing.T) {
	tbl, err := New(blockdev.NewMem("emmc", 512, testBlocks))
	require.NoError(t, err)

	_, err = tbl.Add("untyped", TypeUnused, 1)
	assert.Error(t, err)
	_, err = tbl.Add("empty", TypeLinuxFS, 0)
	assert.Error(t, err)
	_, err = tbl.Add("a-name-that-is-way-too-long-for-a-gpt-entry-xxxxxxxxx", TypeLinuxFS, 1)
	assert.Error(t, err)
	_, err = tbl.Add("huge", TypeLinuxFS, testBlocks)
	assert.Error(t, err)
	_, err = tbl.Add("ok", TypeLinuxFS, 16)
	assert.NoError(t, err)
	assert.Len(t, tbl.Entries(), 1)
}

func TestCommitOrder(t *testing.T) {
	dev := newTestDisk(t)
	tbl, err := Open(dev)
	require.NoError(t, err)
	tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 0), UpdateActive)
	require.NoError(t, tbl.Close())

	ws := dev.OpsOfKind(blockdev.OpWrite)
	require.NotEmpty(t, ws)
	hdr := -1
	for i, op := range ws {
		if op.LBA == primaryHeaderLBA {
			hdr = i
		}
	}
	require.True(t, hdr > 0, "primary header written after its entries")
	for i, op := range ws {
		switch {
		case i < hdr:
			assert.True(t, op.LBA+op.Count <= testBlocks/2, "write %d: %+v before the primary header", i, op)
		case i > hdr:
			assert.True(t, op.LBA >= testBlocks/2, "write %d: %+v after the primary header", i, op)
		}
	}
	last := ws[len(ws)-1]
	assert.Equal(t, uint64(testBlocks-1), last.LBA, "backup header goes last")
}

func TestInterruptedCommit(t *testing.T) {
	// Slot A active, then switched to B with the power lost after n writes.
	prepare := func(t *testing.T) *blockdev.Mem {
		dev := newTestDisk(t)
		tbl, err := Open(dev)
		require.NoError(t, err)
		tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 0), UpdateActive)
		tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 1), UpdateInvalid)
		require.NoError(t, tbl.Close())
		dev.ResetOps()
		return dev
	}
	switchToB := func(dev blockdev.Device) error {
		tbl, err := Open(dev)
		if err != nil {
			return err
		}
		tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 1), UpdateActive)
		tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 0), UpdateInvalid)
		return tbl.Close()
	}

	ref := prepare(t)
	require.NoError(t, switchToB(ref))
	ws := ref.OpsOfKind(blockdev.OpWrite)
	hdr := -1
	for i, op := range ws {
		if op.LBA == primaryHeaderLBA {
			hdr = i
		}
	}
	require.True(t, hdr >= 0)

	for n := 0; n < len(ws); n++ {
		dev := prepare(t)
		assert.Error(t, switchToB(&cutDevice{Mem: dev, left: n}), "cut after %d writes", n)

		tbl, err := Open(dev)
		require.NoError(t, err, "cut after %d writes", n)
		ka, kb := tbl.NthEntry(TypeChromeOSKernel, 0), tbl.NthEntry(TypeChromeOSKernel, 1)
		if n > hdr {
			assert.True(t, kb.Successful() && !ka.Successful(), "cut after %d writes: new slot", n)
		} else {
			assert.True(t, ka.Successful() && !kb.Successful(), "cut after %d writes: old slot", n)
		}
		require.NoError(t, tbl.Close())
	}
}

func TestEntriesElsewhereNotMoved(t *testing.T) {
	dev := newTestDisk(t)
	const moved = 8192
	img := dev.Bytes()
	copy(img[moved*512:(moved+32)*512], img[2*512:34*512])
	h := img[512 : 512+92]
	binary.LittleEndian.PutUint64(h[72:80], moved)
	binary.LittleEndian.PutUint32(h[16:20], 0)
	binary.LittleEndian.PutUint32(h[16:20], crc32.ChecksumIEEE(h))

	tbl, err := Open(dev)
	require.NoError(t, err)
	before := append([]byte(nil), img...)
	tbl.UpdateKernel(tbl.NthEntry(TypeChromeOSKernel, 0), UpdateActive)
	assert.Error(t, tbl.Close())
	assert.Equal(t, before, dev.Bytes())
}
