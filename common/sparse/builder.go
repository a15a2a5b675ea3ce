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
package sparse

import (
	"bytes"
	"encoding/binary"

	"github.com/juju/errors"
)

// Builder assembles a sparse image chunk by chunk.
type Builder struct {
	blockSize uint32
	blocks    uint32
	chunks    uint32
	body      bytes.Buffer
	err       error
}

func NewBuilder(blockSize uint32) *Builder {
	b := &Builder{blockSize: blockSize}
	if blockSize == 0 || blockSize%4 != 0 {
		b.err = errors.Errorf("invalid block size %d", blockSize)
	}
	return b
}

func (b *Builder) BlockSize() uint32 { return b.blockSize }

// AddChunk appends a chunk with an arbitrary header. Nothing is checked, so
// this can produce images that do not decode.
func (b *Builder) AddChunk(ch ChunkHeader, payload []byte) *Builder {
	var hb [ChunkHeaderSize]byte
	binary.LittleEndian.PutUint16(hb[0:2], ch.Type)
	binary.LittleEndian.PutUint16(hb[2:4], ch.Reserved)
	binary.LittleEndian.PutUint32(hb[4:8], ch.Blocks)
	binary.LittleEndian.PutUint32(hb[8:12], ch.TotalSize)
	b.body.Write(hb[:])
	b.body.Write(payload)
	b.chunks++
	b.blocks += ch.Blocks
	return b
}

// AddRaw appends data verbatim. Its length must be a multiple of the block
// size.
func (b *Builder) AddRaw(data []byte) *Builder {
	if b.err != nil {
		return b
	}
	if len(data) == 0 || uint64(len(data))%uint64(b.blockSize) != 0 {
		b.err = errors.Errorf("raw chunk of %d bytes is not a multiple of %d", len(data), b.blockSize)
		return b
	}
	return b.AddChunk(ChunkHeader{
		Type:      ChunkRaw,
		Blocks:    uint32(uint64(len(data)) / uint64(b.blockSize)),
		TotalSize: uint32(ChunkHeaderSize) + uint32(len(data)),
	}, data)
}

// AddFill appends blocks filled with a repeated 32-bit little endian pattern.
func (b *Builder) AddFill(blocks, pattern uint32) *Builder {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], pattern)
	return b.AddChunk(ChunkHeader{Type: ChunkFill, Blocks: blocks, TotalSize: uint32(ChunkHeaderSize) + 4}, p[:])
}

// AddDontCare skips blocks.
func (b *Builder) AddDontCare(blocks uint32) *Builder {
	return b.AddChunk(ChunkHeader{Type: ChunkDontCare, Blocks: blocks, TotalSize: uint32(ChunkHeaderSize)}, nil)
}

func (b *Builder) AddCRC32(crc uint32) *Builder {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], crc)
	return b.AddChunk(ChunkHeader{Type: ChunkCRC32, TotalSize: uint32(ChunkHeaderSize) + 4}, p[:])
}

func (b *Builder) header() Header {
	return Header{
		Magic:           Magic,
		MajorVersion:    MajorVersion,
		FileHeaderSize:  FileHeaderSize,
		ChunkHeaderSize: ChunkHeaderSize,
		BlockSize:       b.blockSize,
		TotalBlocks:     b.blocks,
		TotalChunks:     b.chunks,
	}
}

// Bytes returns the complete image.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, errors.Trace(b.err)
	}
	var out bytes.Buffer
	out.Grow(int(FileHeaderSize) + b.body.Len())
	if err := binary.Write(&out, binary.LittleEndian, b.header()); err != nil {
		return nil, errors.Trace(err)
	}
	out.Write(b.body.Bytes())
	return out.Bytes(), nil
}

// FromRaw converts a raw image into a sparse one. Runs of blocks consisting
// of a single repeated 32-bit word become fill chunks, everything else is
// stored as raw chunks. A trailing partial block is padded with zeroes.
func FromRaw(data []byte, blockSize uint32) ([]byte, error) {
	b := NewBuilder(blockSize)
	if b.err != nil {
		return nil, errors.Trace(b.err)
	}
	bs := int(blockSize)
	if rem := len(data) % bs; rem != 0 {
		padded := make([]byte, len(data)+bs-rem)
		copy(padded, data)
		data = padded
	}
	rawStart := -1
	flushRaw := func(end int) {
		if rawStart >= 0 {
			b.AddRaw(data[rawStart:end])
			rawStart = -1
		}
	}
	for off := 0; off < len(data); {
		pattern, uniform := uniformBlock(data[off : off+bs])
		if !uniform {
			if rawStart < 0 {
				rawStart = off
			}
			off += bs
			continue
		}
		flushRaw(off)
		n := uint32(0)
		for off < len(data) {
			p, ok := uniformBlock(data[off : off+bs])
			if !ok || p != pattern {
				break
			}
			n++
			off += bs
		}
		b.AddFill(n, pattern)
	}
	flushRaw(len(data))
	return b.Bytes()
}

func uniformBlock(blk []byte) (uint32, bool) {
	p := binary.LittleEndian.Uint32(blk[0:4])
	for i := 4; i < len(blk); i += 4 {
		if binary.LittleEndian.Uint32(blk[i:i+4]) != p {
			return 0, false
		}
	}
	return p, true
}
