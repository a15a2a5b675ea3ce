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
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemReadWrite(t *testing.T) {
	m := NewMem("mem0", 512, 8)
	data := bytes.Repeat([]byte{0x5a}, 1024)
	n, err := m.WriteBlocks(2, 2, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	buf := make([]byte, 1024)
	n, err = m.ReadBlocks(2, 2, buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, data, buf)

	assert.Equal(t, []Op{
		{Kind: OpWrite, LBA: 2, Count: 2},
		{Kind: OpRead, LBA: 2, Count: 2},
	}, m.Ops())
}

func TestMemOutOfRange(t *testing.T) {
	m := NewMem("mem0", 512, 8)
	if _, err := m.WriteBlocks(7, 2, make([]byte, 1024)); err == nil {
		t.Fatalf("expected to fail")
	}
	if _, err := m.WriteBlocks(0, 2, make([]byte, 512)); err == nil {
		t.Fatalf("expected short buffer to fail")
	}
	if _, err := m.FillWrite(9, 0, 0); err == nil {
		t.Fatalf("expected lba past the end to fail")
	}
}

func TestMemFillPattern(t *testing.T) {
	m := NewMem("mem0", 16, 4)
	n, err := m.FillWrite(1, 2, 0x11223344)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, make([]byte, 16), m.Bytes()[:16])
	assert.Equal(t, bytes.Repeat([]byte{0x44, 0x33, 0x22, 0x11}, 8), m.Bytes()[16:48])
	assert.Equal(t, make([]byte, 16), m.Bytes()[48:])
}

func TestMemWriteLimit(t *testing.T) {
	m := NewMem("mem0", 512, 8)
	m.WriteLimit = 3
	n, err := m.FillWrite(0, 8, 0)
	require.NoError(t, err)
	if got, want := n, uint64(3); got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func TestErasableMem(t *testing.T) {
	m := NewErasableMem("mem0", 512, 8)
	n, err := m.Erase(0, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), n)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 4096), m.Bytes())

	m.EraseLimit = 4
	n, err = m.Erase(0, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
	assert.Len(t, m.OpsOfKind(OpErase), 2)
}

func TestFixedAndControllers(t *testing.T) {
	emmc := NewMem("/dev/mmcblk0", 512, 8)
	sd := NewRemovableMem("/dev/mmcblk1", 512, 8)
	spi := NewMem("spi-nor", 4096, 8)

	fixed := Fixed([]Device{emmc, sd, spi})
	assert.Equal(t, []Device{emmc, spi}, fixed)

	c := &NameController{Pattern: "mmcblk*"}
	assert.True(t, c.Owns(emmc))
	assert.False(t, c.Owns(spi))
	assert.True(t, (&NameController{Pattern: "/dev/mmc*"}).Owns(emmc))

	cf := ControllerFunc(func(d Device) bool { return d.BlockSize() == 4096 })
	assert.True(t, cf.Owns(spi))
	assert.False(t, cf.Owns(emmc))

	devs, err := Static(emmc, spi)()
	require.NoError(t, err)
	assert.Len(t, devs, 2)
}

func TestFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "blockdev")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	fname := filepath.Join(dir, "disk.img")
	// Trailing partial block is not addressable.
	require.NoError(t, ioutil.WriteFile(fname, make([]byte, 4*512+100), 0644))

	d, err := OpenFile(fname, 512, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), d.BlockCount())
	assert.Equal(t, uint64(512), d.BlockSize())

	_, err = OpenFile(fname, 512, false)
	assert.Error(t, err, "second open must fail while the image is locked")

	n, err := d.WriteBlocks(1, 1, bytes.Repeat([]byte{0xaa}, 512))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	n, err = d.FillWrite(2, 2, 0xdeadbeef)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	_, err = d.WriteBlocks(4, 1, make([]byte, 512))
	assert.Error(t, err)

	buf := make([]byte, 512)
	_, err = d.ReadBlocks(3, 1, buf)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xef, 0xbe, 0xad, 0xde}, 128), buf)
	require.NoError(t, d.Close())

	data, err := ioutil.ReadFile(fname)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 512), data[512:1024])

	d, err = OpenFile(fname, 512, false)
	require.NoError(t, err, "lock must be released on close")
	require.NoError(t, d.Close())

	_, err = OpenFile(filepath.Join(dir, "missing.img"), 512, false)
	assert.Error(t, err)
}
