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
	"encoding/binary"
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/fbflash/common/sparse"
)

// WritePartition writes an image to the named partition. Sparse images are
// expanded on the fly, anything else is written as is. Nothing is rolled
// back on failure: a partially written partition must be rewritten.
func (b *Backend) WritePartition(name string, data []byte) error {
	if err := b.init(); err != nil {
		return errors.Trace(err)
	}
	if b.cfg.Override != nil {
		err := b.cfg.Override(name, data)
		if StatusOf(err) != StatusNotHandled {
			return err
		}
		glog.V(1).Infof("%s: not handled by board override", name)
	}
	ext, err := b.Resolve(name)
	if err != nil {
		return errors.Trace(err)
	}
	if sparse.IsSparse(data) {
		glog.Infof("Writing sparse image to %s...", name)
		return errors.Annotatef(b.writeSparse(ext, data), "%s", name)
	}
	glog.Infof("Writing raw image to %s...", name)
	return errors.Annotatef(b.writeRaw(ext, data), "%s", name)
}

func (b *Backend) writeRaw(ext *Extent, data []byte) error {
	bs := ext.Device.BlockSize()
	if uint64(len(data))%bs != 0 {
		return errors.Annotatef(StatusSizeAlignment, "image size %d is not a multiple of %d", len(data), bs)
	}
	blocks := uint64(len(data)) / bs
	if blocks > ext.Length {
		return errors.Annotatef(StatusOverflow, "image is %d blocks, partition is %d", blocks, ext.Length)
	}
	n, err := ext.Device.WriteBlocks(ext.Start, blocks, data)
	if err != nil {
		return errors.Annotatef(StatusWrite, "%s", err)
	}
	if n != blocks {
		return errors.Annotatef(StatusWrite, "wrote %d blocks of %d", n, blocks)
	}
	return nil
}

func (b *Backend) writeSparse(ext *Extent, data []byte) error {
	dev := ext.Device
	bs := dev.BlockSize()

	hdr, err := sparse.ParseHeader(data)
	if err != nil {
		return errors.Trace(err)
	}
	glog.V(1).Infof("sparse: version %d.%d, block size %d, %d blocks in %d chunks, checksum 0x%08x",
		hdr.MajorVersion, hdr.MinorVersion, hdr.BlockSize, hdr.TotalBlocks, hdr.TotalChunks, hdr.Checksum)
	if hdr.BlockSize == 0 || uint64(hdr.BlockSize)%bs != 0 {
		return errors.Annotatef(StatusSizeAlignment, "sparse block size %d is not a multiple of %d", hdr.BlockSize, bs)
	}
	r, err := sparse.NewReader(data)
	if err != nil {
		return errors.Trace(err)
	}

	lba, remaining := ext.Start, ext.Length
	for i := 0; ; i++ {
		ch, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Trace(err)
		}
		lbas := uint64(ch.Blocks) * uint64(hdr.BlockSize) / bs
		glog.V(2).Infof("chunk %d: %s, %d blocks (%d LBAs), total size %d, at %d",
			i, sparse.ChunkTypeName(ch.Type), ch.Blocks, lbas, ch.TotalSize, lba)
		if remaining < lbas {
			return errors.Annotatef(StatusOverflow, "chunk %d: %d LBAs, %d left in partition", i, lbas, remaining)
		}
		payload, err := r.Payload(ch)
		if err != nil {
			return errors.Annotatef(err, "chunk %d", i)
		}
		switch ch.Type {
		case sparse.ChunkRaw:
			n, err := dev.WriteBlocks(lba, lbas, payload)
			if err != nil {
				return errors.Annotatef(StatusWrite, "chunk %d: %s", i, err)
			}
			if n != lbas {
				return errors.Annotatef(StatusWrite, "chunk %d: wrote %d blocks of %d", i, n, lbas)
			}
		case sparse.ChunkFill:
			pattern := binary.LittleEndian.Uint32(payload)
			n, err := dev.FillWrite(lba, lbas, pattern)
			if err != nil {
				return errors.Annotatef(StatusWrite, "chunk %d: %s", i, err)
			}
			if n != lbas {
				return errors.Annotatef(StatusWrite, "chunk %d: filled %d blocks of %d", i, n, lbas)
			}
		case sparse.ChunkDontCare, sparse.ChunkCRC32:
			// CRC32 chunks are not verified.
		}
		lba += lbas
		remaining -= lbas
	}
	return nil
}
