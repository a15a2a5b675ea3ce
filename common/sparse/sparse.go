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

// Package sparse decodes and encodes Android sparse images.
//
// An image is a 28-byte file header followed by chunks, each a 12-byte chunk
// header and a type-specific payload. All fields are little endian.
package sparse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/juju/errors"
)

const (
	Magic           uint32 = 0xed26ff3a
	MajorVersion    uint16 = 1
	FileHeaderSize  uint16 = 28
	ChunkHeaderSize uint16 = 12

	ChunkRaw      uint16 = 0xcac1
	ChunkFill     uint16 = 0xcac2
	ChunkDontCare uint16 = 0xcac3
	ChunkCRC32    uint16 = 0xcac4
)

var (
	// ErrShortData means the buffer ended before the structure being read.
	ErrShortData = errors.New("insufficient data")
	// ErrHeader means the file header does not have the expected layout.
	ErrHeader = errors.New("bad sparse header")
	// ErrChunkHeader means a chunk header is inconsistent or of unknown type.
	ErrChunkHeader = errors.New("bad chunk header")
)

type Header struct {
	Magic           uint32
	MajorVersion    uint16
	MinorVersion    uint16
	FileHeaderSize  uint16
	ChunkHeaderSize uint16
	// Size of a block in bytes.
	BlockSize uint32
	// Blocks in the expanded image.
	TotalBlocks uint32
	TotalChunks uint32
	Checksum    uint32
}

type ChunkHeader struct {
	Type     uint16
	Reserved uint16
	// Chunk size in blocks of the expanded image.
	Blocks uint32
	// Chunk size in bytes, header included.
	TotalSize uint32
}

func ChunkTypeName(t uint16) string {
	switch t {
	case ChunkRaw:
		return "raw"
	case ChunkFill:
		return "fill"
	case ChunkDontCare:
		return "dont-care"
	case ChunkCRC32:
		return "crc32"
	default:
		return fmt.Sprintf("0x%04x", t)
	}
}

// IsSparse reports whether data starts with a sparse header of a supported
// major version.
func IsSparse(data []byte) bool {
	if len(data) < 6 {
		return false
	}
	return binary.LittleEndian.Uint32(data[0:4]) == Magic &&
		binary.LittleEndian.Uint16(data[4:6]) == MajorVersion
}

// Reader walks the chunks of an image held in memory. The cursor only moves
// forward and the buffer is never modified; payloads are sub-slices of it.
type Reader struct {
	data   []byte
	off    int
	hdr    Header
	chunks uint32
}

// ParseHeader decodes the file header and checks magic, version and the
// declared header size.
func ParseHeader(data []byte) (Header, error) {
	var hdr Header
	if len(data) < int(FileHeaderSize) {
		return hdr, errors.Annotatef(ErrShortData, "file header: %d bytes", len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:FileHeaderSize]), binary.LittleEndian, &hdr); err != nil {
		return hdr, errors.Trace(err)
	}
	if hdr.Magic != Magic || hdr.MajorVersion != MajorVersion {
		return hdr, errors.Annotatef(ErrHeader, "magic 0x%08x version %d", hdr.Magic, hdr.MajorVersion)
	}
	if hdr.FileHeaderSize != FileHeaderSize {
		return hdr, errors.Annotatef(ErrHeader, "file header size %d", hdr.FileHeaderSize)
	}
	return hdr, nil
}

// NewReader parses the file header and checks its declared layout.
func NewReader(data []byte) (*Reader, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if hdr.ChunkHeaderSize != ChunkHeaderSize {
		return nil, errors.Annotatef(ErrChunkHeader, "chunk header size %d", hdr.ChunkHeaderSize)
	}
	return &Reader{data: data, off: int(FileHeaderSize), hdr: hdr}, nil
}

func (r *Reader) Header() Header { return r.hdr }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) advance(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.off < n {
		return nil, errors.Annotatef(ErrShortData, "need %d bytes at offset %d, have %d", n, r.off, len(r.data)-r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Next reads the next chunk header. It returns io.EOF once all chunks
// declared in the file header have been read. The payload must be consumed
// with Payload before calling Next again.
func (r *Reader) Next() (ChunkHeader, error) {
	var ch ChunkHeader
	if r.chunks >= r.hdr.TotalChunks {
		return ch, io.EOF
	}
	b, err := r.advance(int(ChunkHeaderSize))
	if err != nil {
		return ch, errors.Annotatef(err, "chunk %d header", r.chunks)
	}
	r.chunks++
	ch.Type = binary.LittleEndian.Uint16(b[0:2])
	ch.Reserved = binary.LittleEndian.Uint16(b[2:4])
	ch.Blocks = binary.LittleEndian.Uint32(b[4:8])
	ch.TotalSize = binary.LittleEndian.Uint32(b[8:12])
	return ch, nil
}

// DataSize returns the payload size implied by the chunk type and block
// count, without looking at TotalSize.
func (r *Reader) DataSize(ch ChunkHeader) (uint64, error) {
	switch ch.Type {
	case ChunkRaw:
		return uint64(ch.Blocks) * uint64(r.hdr.BlockSize), nil
	case ChunkFill, ChunkCRC32:
		return 4, nil
	case ChunkDontCare:
		return 0, nil
	default:
		return 0, errors.Annotatef(ErrChunkHeader, "unknown chunk type %s", ChunkTypeName(ch.Type))
	}
}

// Payload checks the chunk's total size against its type and consumes the
// payload. Raw chunks yield the data to write, fill chunks the 4-byte
// pattern, CRC32 chunks the 4-byte checksum and don't-care chunks nothing.
func (r *Reader) Payload(ch ChunkHeader) ([]byte, error) {
	size, err := r.DataSize(ch)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if uint64(ChunkHeaderSize)+size != uint64(ch.TotalSize) {
		return nil, errors.Annotatef(ErrChunkHeader, "%s chunk: total size %d, expected %d",
			ChunkTypeName(ch.Type), ch.TotalSize, uint64(ChunkHeaderSize)+size)
	}
	if size > uint64(r.Remaining()) {
		return nil, errors.Annotatef(ErrShortData, "%s chunk: need %d bytes, have %d",
			ChunkTypeName(ch.Type), size, r.Remaining())
	}
	b, err := r.advance(int(size))
	return b, errors.Trace(err)
}
