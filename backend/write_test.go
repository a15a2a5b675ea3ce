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
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/fbflash/common/blockdev"
	"github.com/mongoose-os/fbflash/common/sparse"
)

func TestWriteRaw(t *testing.T) {
	f := newFixture(t, 4)
	img := bytes.Repeat([]byte{0x5a}, 10*512)
	require.NoError(t, f.b.WritePartition("data", img))

	want := []blockdev.Op{{Kind: blockdev.OpWrite, LBA: f.dataStart(), Count: 10}}
	assert.Equal(t, want, writes(f.emmc))
	off := f.dataStart() * 512
	assert.Equal(t, img, f.emmc.Bytes()[off:off+uint64(len(img))])
}

func TestWriteRawFillsPartition(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.b.WritePartition("firmware", make([]byte, 64*4096)))
	assert.Equal(t, []blockdev.Op{{Kind: blockdev.OpWrite, LBA: 16, Count: 64}}, writes(f.flash.Mem))
}

func TestWriteRawErrors(t *testing.T) {
	f := newFixture(t, 4)
	for i, c := range []struct {
		part string
		size int
		want Status
	}{
		{"data", 513, StatusSizeAlignment},
		{"data", 511, StatusSizeAlignment},
		{"firmware", 4096 + 512, StatusSizeAlignment},
		{"firmware", 65 * 4096, StatusOverflow},
		{"data", (dataSize + 1) * 512, StatusOverflow},
		{"missing", 512, StatusPartitionNotFound},
	} {
		err := f.b.WritePartition(c.part, make([]byte, c.size))
		if got := StatusOf(err); got != c.want {
			t.Errorf("%d: got %q (%v), want %q", i, got, err, c.want)
		}
	}
	assert.Empty(t, writes(f.emmc))
	assert.Empty(t, writes(f.flash.Mem))

	f.emmc.WriteLimit = 3
	assertStatus(t, StatusWrite, f.b.WritePartition("data", make([]byte, 4*512)))
}

func TestWriteSparse(t *testing.T) {
	f := newFixture(t, 4)
	raw := bytes.Repeat([]byte{0xab}, 2*4096)
	img, err := sparse.NewBuilder(4096).
		AddRaw(raw).
		AddDontCare(3).
		AddFill(4, 0x55aa1234).
		AddCRC32(0xdeadbeef).
		Bytes()
	require.NoError(t, err)

	// Pre-existing contents of the don't-care range must survive.
	start := f.dataStart()
	dc := f.emmc.Bytes()[(start+16)*512 : (start+40)*512]
	copy(dc, bytes.Repeat([]byte{0x77}, len(dc)))

	require.NoError(t, f.b.WritePartition("data", img))
	want := []blockdev.Op{
		{Kind: blockdev.OpWrite, LBA: start, Count: 16},
		{Kind: blockdev.OpFill, LBA: start + 40, Count: 32, Pattern: 0x55aa1234},
	}
	assert.Equal(t, want, writes(f.emmc))

	mem := f.emmc.Bytes()
	assert.Equal(t, raw, mem[start*512:(start+16)*512])
	assert.Equal(t, bytes.Repeat([]byte{0x77}, 24*512), mem[(start+16)*512:(start+40)*512])
	fill := mem[(start+40)*512 : (start+72)*512]
	assert.Equal(t, uint32(0x55aa1234), binary.LittleEndian.Uint32(fill[0:4]))
	assert.Equal(t, uint32(0x55aa1234), binary.LittleEndian.Uint32(fill[len(fill)-4:]))
}

func TestWriteSparseOverflow(t *testing.T) {
	f := newFixture(t, 4)
	img, err := sparse.NewBuilder(4096).
		AddRaw(make([]byte, 32*4096)).
		AddFill(40, 1).
		Bytes()
	require.NoError(t, err)
	assertStatus(t, StatusOverflow, f.b.WritePartition("firmware", img))
	// The first chunk landed, the offending one was never dispatched.
	assert.Equal(t, []blockdev.Op{{Kind: blockdev.OpWrite, LBA: 16, Count: 32}}, writes(f.flash.Mem))

	// Overflow is detected before the chunk payload is looked at.
	img, err = sparse.NewBuilder(4096).
		AddChunk(sparse.ChunkHeader{Type: sparse.ChunkRaw, Blocks: 65, TotalSize: 12}, nil).
		Bytes()
	require.NoError(t, err)
	assertStatus(t, StatusOverflow, f.b.WritePartition("firmware", img))

	// A partition filled exactly is fine.
	img, err = sparse.NewBuilder(4096).AddDontCare(60).AddFill(4, 0).Bytes()
	require.NoError(t, err)
	require.NoError(t, f.b.WritePartition("firmware", img))
}

func TestWriteSparseUnknownChunk(t *testing.T) {
	f := newFixture(t, 4)
	img, err := sparse.NewBuilder(512).
		AddFill(1, 0x01010101).
		AddChunk(sparse.ChunkHeader{Type: 0xcac5, Blocks: 1, TotalSize: 12}, nil).
		AddFill(1, 0x02020202).
		Bytes()
	require.NoError(t, err)
	assertStatus(t, StatusChunkHeader, f.b.WritePartition("data", img))
	assert.Equal(t, []blockdev.Op{
		{Kind: blockdev.OpFill, LBA: f.dataStart(), Count: 1, Pattern: 0x01010101},
	}, writes(f.emmc))
}

func TestWriteSparseErrors(t *testing.T) {
	good, err := sparse.NewBuilder(4096).AddFill(1, 0).Bytes()
	require.NoError(t, err)
	patch := func(off int, v uint32, size int) []byte {
		img := append([]byte(nil), good...)
		if size == 2 {
			binary.LittleEndian.PutUint16(img[off:], uint16(v))
		} else {
			binary.LittleEndian.PutUint32(img[off:], v)
		}
		return img
	}
	for _, c := range []struct {
		name string
		part string
		img  []byte
		want Status
	}{
		{"short header", "data", good[:20], StatusInsufficientData},
		{"file header size", "data", patch(8, 32, 2), StatusSparseHeader},
		{"chunk header size", "data", patch(10, 16, 2), StatusChunkHeader},
		{"zero block size", "data", patch(12, 0, 4), StatusSizeAlignment},
		{"block size below device block", "firmware", patch(12, 512, 4), StatusSizeAlignment},
		{"block size not a multiple", "data", patch(12, 1000, 4), StatusSizeAlignment},
		{"block size checked before chunk header size", "firmware", func() []byte {
			img := patch(12, 512, 4)
			binary.LittleEndian.PutUint16(img[10:], 16)
			return img
		}(), StatusSizeAlignment},
		{"truncated chunk header", "data", good[:34], StatusInsufficientData},
		{"truncated payload", "data", good[:len(good)-2], StatusInsufficientData},
		{"fill total size", "data", patch(36, 20, 4), StatusChunkHeader},
	} {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, 4)
			require.True(t, sparse.IsSparse(c.img))
			assertStatus(t, c.want, f.b.WritePartition(c.part, c.img))
			assert.Empty(t, writes(f.emmc))
			assert.Empty(t, writes(f.flash.Mem))
		})
	}

	t.Run("missing chunk", func(t *testing.T) {
		f := newFixture(t, 4)
		assertStatus(t, StatusInsufficientData, f.b.WritePartition("data", patch(20, 2, 4)))
		// No rollback of the chunk that was written.
		assert.Len(t, writes(f.emmc), 1)
	})

	t.Run("wrong total sizes", func(t *testing.T) {
		for _, ch := range []sparse.ChunkHeader{
			{Type: sparse.ChunkRaw, Blocks: 1, TotalSize: 12 + 4095},
			{Type: sparse.ChunkDontCare, Blocks: 1, TotalSize: 16},
			{Type: sparse.ChunkCRC32, TotalSize: 12},
		} {
			f := newFixture(t, 4)
			img, err := sparse.NewBuilder(4096).AddChunk(ch, make([]byte, ch.TotalSize-12)).Bytes()
			require.NoError(t, err)
			assertStatus(t, StatusChunkHeader, f.b.WritePartition("data", img))
		}
	})

	t.Run("short device write", func(t *testing.T) {
		f := newFixture(t, 4)
		f.emmc.WriteLimit = 4
		img, err := sparse.NewBuilder(4096).AddFill(1, 0).Bytes()
		require.NoError(t, err)
		assertStatus(t, StatusWrite, f.b.WritePartition("data", img))
		img, err = sparse.NewBuilder(4096).AddRaw(make([]byte, 4096)).Bytes()
		require.NoError(t, err)
		assertStatus(t, StatusWrite, f.b.WritePartition("data", img))
	})
}

func TestWriteShortBufferIsRaw(t *testing.T) {
	f := newFixture(t, 4)
	// Starts with the magic but is too short to carry a version: raw, and
	// not block aligned.
	assertStatus(t, StatusSizeAlignment, f.b.WritePartition("data", []byte{0x3a, 0xff, 0x26, 0xed}))
}

func TestWriteOverride(t *testing.T) {
	f := newFixture(t, 4)
	var seen []string
	f.cfg.Override = func(name string, data []byte) error {
		seen = append(seen, name)
		switch name {
		case "firmware":
			return nil
		case "bootloader":
			return errors.Annotatef(StatusWrite, "board says no")
		default:
			return errors.Annotatef(StatusNotHandled, "%s", name)
		}
	}
	b := New(f.cfg)
	require.NoError(t, b.WritePartition("firmware", []byte("anything")))
	assertStatus(t, StatusWrite, b.WritePartition("bootloader", nil))
	assert.Empty(t, writes(f.flash.Mem))

	require.NoError(t, b.WritePartition("data", make([]byte, 512)))
	assert.Len(t, writes(f.emmc), 1)
	assert.Equal(t, []string{"firmware", "bootloader", "data"}, seen)
}
